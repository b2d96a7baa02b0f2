package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/idempotency"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/order"
	orderdto "github.com/fekuna/omnipos-offline-sync/internal/order/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/payment"
	"github.com/fekuna/omnipos-offline-sync/internal/payment/dto"
	"go.uber.org/zap"
)

const providerPaymentType = "mercadopago"

// Provider statuses that undo the sale.
var reverting = map[string]bool{
	"rejected":     true,
	"cancelled":    true,
	"refunded":     true,
	"charged_back": true,
}

type paymentUseCase struct {
	orders     order.UseCase
	guard      idempotency.Guard
	tenantID   string
	locationID string
	logger     logger.ZapLogger
}

func NewPaymentUseCase(orders order.UseCase, guard idempotency.Guard, tenantID, locationID string, log logger.ZapLogger) payment.UseCase {
	return &paymentUseCase{
		orders:     orders,
		guard:      guard,
		tenantID:   tenantID,
		locationID: locationID,
		logger:     log,
	}
}

func (uc *paymentUseCase) ProcessNotification(ctx context.Context, n *dto.Notification) (*dto.NotificationResult, error) {
	switch {
	case n.PaymentID == "":
		return nil, apperror.NewValidation(order.PaymentsTable, "payment_id", "required")
	case n.OrderID == "":
		return nil, apperror.NewValidation(order.PaymentsTable, "order_id", "required")
	case n.Status == "":
		return nil, apperror.NewValidation(order.PaymentsTable, "status", "required")
	}
	status := strings.ToLower(n.Status)

	key := n.PaymentID + ":" + status
	ok, err := uc.guard.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrDuplicate
	}

	res, err := uc.apply(ctx, n, status)
	if err != nil && (apperror.IsInfrastructure(err) || errors.Is(err, apperror.ErrOffline)) {
		// Let the provider's redelivery through once the backend is reachable again.
		if rerr := uc.guard.Release(ctx, key); rerr != nil {
			uc.logger.Error("failed to release idempotency key", zap.String("key", key), zap.Error(rerr))
		}
	}
	return res, err
}

func (uc *paymentUseCase) apply(ctx context.Context, n *dto.Notification, status string) (*dto.NotificationResult, error) {
	tenantID := n.TenantID
	if tenantID == "" {
		tenantID = uc.tenantID
	}
	ctx = auth.WithActor(ctx, auth.System(tenantID, uc.locationID))

	switch {
	case status == model.PaymentStatusApproved:
		externalID := n.PaymentID
		paymentType := n.Type
		if paymentType == "" {
			paymentType = providerPaymentType
		}
		res, err := uc.orders.ConfirmPayment(ctx, &orderdto.PaymentInput{
			OrderID:    n.OrderID,
			Amount:     n.Amount,
			Method:     n.Method,
			Type:       paymentType,
			ExternalID: &externalID,
		})
		if err != nil {
			uc.logger.Warn("payment notification not applied", zap.String("payment_id", n.PaymentID), zap.String("order_id", n.OrderID), zap.Error(err))
			return nil, err
		}
		uc.logger.Info("payment approved", zap.String("payment_id", n.PaymentID), zap.String("order_id", n.OrderID))
		return &dto.NotificationResult{Action: dto.ActionConfirmed, Order: res}, nil

	case reverting[status]:
		res, err := uc.orders.RejectPayment(ctx, n.OrderID, status)
		if err != nil {
			uc.logger.Warn("payment reversal not applied", zap.String("payment_id", n.PaymentID), zap.String("order_id", n.OrderID), zap.Error(err))
			return nil, err
		}
		uc.logger.Info("payment reverted; order abandoned",
			zap.String("payment_id", n.PaymentID),
			zap.String("order_id", n.OrderID),
			zap.String("status", status),
		)
		return &dto.NotificationResult{Action: dto.ActionAbandoned, Order: res}, nil
	}

	uc.logger.Debug("payment notification ignored", zap.String("payment_id", n.PaymentID), zap.String("status", status))
	return &dto.NotificationResult{Action: dto.ActionIgnored}, nil
}
