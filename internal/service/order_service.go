package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/observability"
	"github.com/mahamart/commerce-backend/internal/repository"
)

type CreateOrderInput struct {
	// UserID is optional; zero means the caller.
	UserID    uint
	ProductID uint
	Quantity  int
}

type OrderService struct {
	repo repository.OrderRepository
}

func NewOrderService(repo repository.OrderRepository) *OrderService {
	return &OrderService{repo: repo}
}

// Create places an order on behalf of callerID. Orders can only be placed for
// the authenticated account.
func (s *OrderService) Create(ctx context.Context, callerID uint, in CreateOrderInput) (order *domain.Order, err error) {
	start := time.Now()
	defer func() { observability.RecordOrderOperation(ctx, "create", operationOutcome(err), time.Since(start)) }()

	if in.UserID == 0 {
		in.UserID = callerID
	}
	switch {
	case in.UserID != callerID:
		return nil, apperr.Forbidden("Orders can only be placed for the authenticated user")
	case in.ProductID == 0:
		return nil, apperr.InvalidInput("Product ID is required")
	case in.Quantity < 1:
		return nil, apperr.InvalidInput("Quantity must be positive")
	}

	order = &domain.Order{UserID: in.UserID, ProductID: in.ProductID, Quantity: in.Quantity, Status: domain.OrderStatusPending}
	if err := s.repo.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderReference) {
			return nil, apperr.Wrap(apperr.KindInvalidInput, "User or product not found", err)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to create order", err)
	}
	return order, nil
}

// List returns order summaries, optionally only those of one user. No orders
// is a NotFound.
func (s *OrderService) List(ctx context.Context, userID *uint) (out []domain.OrderSummary, err error) {
	start := time.Now()
	defer func() { observability.RecordOrderOperation(ctx, "list", operationOutcome(err), time.Since(start)) }()

	out, err = s.repo.ListSummaries(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to fetch orders", err)
	}
	if len(out) == 0 {
		return nil, apperr.NotFound("Orders not found")
	}
	return out, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, id uint, status string) (order *domain.Order, err error) {
	start := time.Now()
	defer func() { observability.RecordOrderOperation(ctx, "update_status", operationOutcome(err), time.Since(start)) }()

	next := domain.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if next == "" {
		return nil, apperr.InvalidInput("id and status are required")
	}
	if !next.Valid() {
		return nil, apperr.InvalidInput("Invalid order status")
	}
	order, err = s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "Order not found", err)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to update order status", err)
	}
	return order, nil
}
