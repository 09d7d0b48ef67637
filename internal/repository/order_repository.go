package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/observability"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderReference means the order names a user or product that does not exist.
	ErrOrderReference = errors.New("user or product not found")
)

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	// ListSummaries joins orders with their user and product. A nil userID
	// lists every order.
	ListSummaries(ctx context.Context, userID *uint) ([]domain.OrderSummary, error)
	UpdateStatus(ctx context.Context, id uint, status domain.OrderStatus) (*domain.Order, error)
}

type GormOrderRepository struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	if err := r.db.WithContext(ctx).Omit("User", "Product").Create(order).Error; err != nil {
		if isForeignKeyViolation(err) {
			observability.RecordRepositoryOperation(ctx, "order", "create", "bad_reference")
			return ErrOrderReference
		}
		observability.RecordRepositoryOperation(ctx, "order", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "order", "create", "success")
	return nil
}

func (r *GormOrderRepository) ListSummaries(ctx context.Context, userID *uint) ([]domain.OrderSummary, error) {
	q := r.db.WithContext(ctx).
		Table("orders").
		Select("orders.id, users.email AS user_email, products.name AS product_name, orders.quantity, orders.status").
		Joins("JOIN users ON orders.id_user = users.id").
		Joins("JOIN products ON orders.id_product = products.id").
		Order("orders.id asc")
	if userID != nil {
		q = q.Where("orders.id_user = ?", *userID)
	}
	out := []domain.OrderSummary{}
	if err := q.Scan(&out).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "order", "list_summaries", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "order", "list_summaries", "success")
	return out, nil
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id uint, status domain.OrderStatus) (*domain.Order, error) {
	res := r.db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "order", "update_status", "error")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "order", "update_status", "not_found")
		return nil, ErrOrderNotFound
	}
	var order domain.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "order", "update_status", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "order", "update_status", "success")
	return &order, nil
}
