package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/idempotency"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	orderdto "github.com/fekuna/omnipos-offline-sync/internal/order/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/payment/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrders struct {
	confirmed []*orderdto.PaymentInput
	actors    []auth.Actor
	rejected  []string
	err       error
}

func (s *stubOrders) CreateOrder(context.Context, *orderdto.CreateOrderInput) (*orderdto.OrderResult, error) {
	return nil, errors.New("not used")
}

func (s *stubOrders) CancelOrder(context.Context, *orderdto.CancelOrderInput) (*orderdto.OrderResult, error) {
	return nil, errors.New("not used")
}

func (s *stubOrders) ConfirmPayment(ctx context.Context, in *orderdto.PaymentInput) (*orderdto.OrderResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.confirmed = append(s.confirmed, in)
	s.actors = append(s.actors, auth.GetActor(ctx))
	return &orderdto.OrderResult{OrderID: in.OrderID, Status: model.OrderStatusPaid}, nil
}

func (s *stubOrders) RejectPayment(_ context.Context, orderID, reason string) (*orderdto.OrderResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.rejected = append(s.rejected, orderID+":"+reason)
	return &orderdto.OrderResult{OrderID: orderID, Status: model.OrderStatusAbandoned}, nil
}

func (s *stubOrders) Reconcile(context.Context, *model.QueueEntry, syncqueue.Outcome) error {
	return nil
}

func newUseCase(orders *stubOrders) *paymentUseCase {
	return NewPaymentUseCase(orders, idempotency.NewMemoryGuard(time.Minute), "tenant-1", "loc-1", logger.NewNop()).(*paymentUseCase)
}

func TestApprovedConfirmsAsSystem(t *testing.T) {
	orders := &stubOrders{}
	uc := newUseCase(orders)

	res, err := uc.ProcessNotification(context.Background(), &dto.Notification{
		PaymentID: "mp-1", OrderID: "o-1", Status: "APPROVED", Amount: decimal.NewFromInt(25), Method: "CARD",
	})
	require.NoError(t, err)
	assert.Equal(t, dto.ActionConfirmed, res.Action)

	require.Len(t, orders.confirmed, 1)
	in := orders.confirmed[0]
	assert.Equal(t, "o-1", in.OrderID)
	assert.Equal(t, "CARD", in.Method)
	assert.Equal(t, providerPaymentType, in.Type)
	require.NotNil(t, in.ExternalID)
	assert.Equal(t, "mp-1", *in.ExternalID)

	actor := orders.actors[0]
	assert.Equal(t, auth.RoleSystem, actor.Role)
	assert.Equal(t, "tenant-1", actor.TenantID)
	assert.Empty(t, actor.UserID)
}

func TestRevertingStatusesAbandon(t *testing.T) {
	for _, status := range []string{"rejected", "cancelled", "refunded", "charged_back"} {
		t.Run(status, func(t *testing.T) {
			orders := &stubOrders{}
			uc := newUseCase(orders)

			res, err := uc.ProcessNotification(context.Background(), &dto.Notification{PaymentID: "mp-1", OrderID: "o-1", Status: status})
			require.NoError(t, err)
			assert.Equal(t, dto.ActionAbandoned, res.Action)
			assert.Equal(t, []string{"o-1:" + status}, orders.rejected)
		})
	}
}

func TestOtherStatusesAreIgnored(t *testing.T) {
	orders := &stubOrders{}
	uc := newUseCase(orders)

	res, err := uc.ProcessNotification(context.Background(), &dto.Notification{PaymentID: "mp-1", OrderID: "o-1", Status: "in_process"})
	require.NoError(t, err)
	assert.Equal(t, dto.ActionIgnored, res.Action)
	assert.Empty(t, orders.confirmed)
	assert.Empty(t, orders.rejected)
}

func TestDuplicateNotificationIsRejected(t *testing.T) {
	orders := &stubOrders{}
	uc := newUseCase(orders)
	n := &dto.Notification{PaymentID: "mp-1", OrderID: "o-1", Status: "approved"}

	_, err := uc.ProcessNotification(context.Background(), n)
	require.NoError(t, err)

	_, err = uc.ProcessNotification(context.Background(), n)
	assert.ErrorIs(t, err, apperror.ErrDuplicate)
	assert.Len(t, orders.confirmed, 1)

	// A different status for the same payment is a new event.
	_, err = uc.ProcessNotification(context.Background(), &dto.Notification{PaymentID: "mp-1", OrderID: "o-1", Status: "refunded"})
	require.NoError(t, err)
}

func TestInfrastructureFailureAllowsRedelivery(t *testing.T) {
	orders := &stubOrders{err: &apperror.NetworkError{Op: "mark paid", Err: errors.New("connection refused")}}
	uc := newUseCase(orders)
	n := &dto.Notification{PaymentID: "mp-1", OrderID: "o-1", Status: "approved"}

	_, err := uc.ProcessNotification(context.Background(), n)
	require.Error(t, err)

	orders.err = nil
	_, err = uc.ProcessNotification(context.Background(), n)
	require.NoError(t, err)
}

func TestOfflineFailureAllowsRedelivery(t *testing.T) {
	orders := &stubOrders{err: fmt.Errorf("order o-1 is not known on this terminal: %w", apperror.ErrOffline)}
	uc := newUseCase(orders)
	n := &dto.Notification{PaymentID: "mp-1", OrderID: "o-1", Status: "approved"}

	_, err := uc.ProcessNotification(context.Background(), n)
	require.ErrorIs(t, err, apperror.ErrOffline)

	orders.err = nil
	res, err := uc.ProcessNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, dto.ActionConfirmed, res.Action)
}

func TestBusinessFailureKeepsKey(t *testing.T) {
	orders := &stubOrders{err: apperror.ErrInvalidTransition}
	uc := newUseCase(orders)
	n := &dto.Notification{PaymentID: "mp-1", OrderID: "o-1", Status: "approved"}

	_, err := uc.ProcessNotification(context.Background(), n)
	require.ErrorIs(t, err, apperror.ErrInvalidTransition)

	_, err = uc.ProcessNotification(context.Background(), n)
	assert.ErrorIs(t, err, apperror.ErrDuplicate)
}

func TestNotificationValidation(t *testing.T) {
	uc := newUseCase(&stubOrders{})
	var verr *apperror.ValidationError

	_, err := uc.ProcessNotification(context.Background(), &dto.Notification{OrderID: "o-1", Status: "approved"})
	assert.ErrorAs(t, err, &verr)

	_, err = uc.ProcessNotification(context.Background(), &dto.Notification{PaymentID: "mp-1", Status: "approved"})
	assert.ErrorAs(t, err, &verr)

	_, err = uc.ProcessNotification(context.Background(), &dto.Notification{PaymentID: "mp-1", OrderID: "o-1"})
	assert.ErrorAs(t, err, &verr)
}
