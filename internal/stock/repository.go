package stock

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/model"
)

type Repository interface {
	// AdjustStock is the remote atomic adjustment: it applies the signed delta and logs
	// the movement in one transaction, refusing outbound movements that would go negative.
	// A refusal is reported as AdjustResult{Status: "error"}, not as an error.
	AdjustStock(ctx context.Context, m *model.StockMovement) (*model.AdjustResult, error)
}
