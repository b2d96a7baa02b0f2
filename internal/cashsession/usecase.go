package cashsession

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/cashsession/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
)

type UseCase interface {
	Open(ctx context.Context, input *dto.OpenInput) (*model.CashSession, error)
	Active(ctx context.Context, locationID string) (*model.CashSession, error)
	Summarize(ctx context.Context, sessionID string) (*model.CashSessionSummary, error)
	Close(ctx context.Context, input *dto.CloseInput) (*model.CashSession, error)
}
