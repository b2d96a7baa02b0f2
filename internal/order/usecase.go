package order

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/order/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue"
)

const (
	OrdersTable     = "orders"
	OrderItemsTable = "order_items"
	PaymentsTable   = "payments"
)

type UseCase interface {
	CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*dto.OrderResult, error)
	CancelOrder(ctx context.Context, input *dto.CancelOrderInput) (*dto.OrderResult, error)
	ConfirmPayment(ctx context.Context, input *dto.PaymentInput) (*dto.OrderResult, error)
	// RejectPayment releases the order's reservation and abandons it on behalf of the system.
	RejectPayment(ctx context.Context, orderID, reason string) (*dto.OrderResult, error)

	syncqueue.Reconciler
}
