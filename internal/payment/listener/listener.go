package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/broker"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/payment"
	"github.com/fekuna/omnipos-offline-sync/internal/payment/dto"
	"go.uber.org/zap"
)

const readBackoff = time.Second

type PaymentListener struct {
	reader broker.MessageReader
	uc     payment.UseCase
	logger logger.ZapLogger
}

func NewPaymentListener(reader broker.MessageReader, uc payment.UseCase, logger logger.ZapLogger) *PaymentListener {
	return &PaymentListener{
		reader: reader,
		uc:     uc,
		logger: logger,
	}
}

func (l *PaymentListener) Start(ctx context.Context) {
	l.logger.Info("Starting Payment Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Payment Kafka Listener")
			return
		default:
			msg, err := l.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(readBackoff):
				}
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

func (l *PaymentListener) processMessage(ctx context.Context, value []byte) {
	var n dto.Notification
	if err := json.Unmarshal(value, &n); err != nil {
		l.logger.Error("Failed to unmarshal payment notification", zap.Error(err))
		return
	}

	res, err := l.uc.ProcessNotification(ctx, &n)
	switch {
	case errors.Is(err, apperror.ErrDuplicate):
		l.logger.Info("Duplicate payment notification dropped", zap.String("payment_id", n.PaymentID), zap.String("status", n.Status))
	case err != nil:
		l.logger.Error("Failed to process payment notification",
			zap.String("payment_id", n.PaymentID),
			zap.String("order_id", n.OrderID),
			zap.Error(err),
		)
	default:
		l.logger.Debug("Payment notification processed", zap.String("payment_id", n.PaymentID), zap.String("action", string(res.Action)))
	}
}
