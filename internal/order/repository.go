package order

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/model"
)

type Repository interface {
	// CreateOrder writes the order and its line items in one transaction.
	CreateOrder(ctx context.Context, o *model.Order, items []model.OrderItem) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	// UpdateOrderStatus moves a PENDING order to a terminal status.
	// It returns ErrInvalidTransition when the order is no longer PENDING.
	UpdateOrderStatus(ctx context.Context, id string, to model.OrderStatus) error
	// MarkPaid records the payment and sets PAID in one transaction.
	MarkPaid(ctx context.Context, p *model.Payment) error
}
