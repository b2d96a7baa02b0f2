package cashsession

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/model"
)

type Repository interface {
	// OpenSession inserts s unless an OPEN session exists for the same tenant and
	// location, in which case it returns ErrSessionAlreadyOpen.
	OpenSession(ctx context.Context, s *model.CashSession) error
	GetSession(ctx context.Context, id string) (*model.CashSession, error)
	GetActiveSession(ctx context.Context, tenantID, locationID string) (*model.CashSession, error)
	// SessionSummary sums approved cash payments for the session's location inside its time window.
	SessionSummary(ctx context.Context, sessionID string) (*model.CashSessionSummary, error)
	// CloseSession persists the closing fields; ErrSessionNotOpen if it was not OPEN.
	CloseSession(ctx context.Context, s *model.CashSession) error
}
