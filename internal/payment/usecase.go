package payment

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/payment/dto"
)

type UseCase interface {
	// ProcessNotification applies a payment provider notification to its order.
	// A repeat of the same payment id and status inside the window returns ErrDuplicate.
	ProcessNotification(ctx context.Context, n *dto.Notification) (*dto.NotificationResult, error)
}
