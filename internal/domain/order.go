package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

type Order struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	UserID    uint        `gorm:"column:id_user;not null;index" json:"id_user"`
	ProductID uint        `gorm:"column:id_product;not null;index" json:"id_product"`
	Quantity  int         `gorm:"not null" json:"quantity"`
	Status    OrderStatus `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Product Product `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
}

// OrderSummary is the joined listing row: the order with its buyer's email
// and the product name.
type OrderSummary struct {
	ID          uint        `json:"id"`
	UserEmail   string      `json:"user_email"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	Status      OrderStatus `json:"status"`
}
