package stock

import (
	"context"

	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/stock/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue"
)

// MovementsTable is the queue table name for offline stock movements.
const MovementsTable = "stock_movements"

type UseCase interface {
	// Adjust is a manual movement issued by an operator.
	Adjust(ctx context.Context, input *dto.AdjustInput) (*dto.AdjustOutput, error)
	// Reserve issues RESERVE_OUT for every stock-tracked line, all or nothing.
	Reserve(ctx context.Context, input *dto.ReservationInput) (*dto.ReservationOutput, error)
	// Release issues RESERVE_RELEASE_IN for every stock-tracked line.
	Release(ctx context.Context, input *dto.ReservationInput) (*dto.ReservationOutput, error)

	syncqueue.Replayer
	syncqueue.Reconciler
}

// Movement builds a movement with a fresh id from a positive magnitude.
func Movement(id string, actor *string, tenantID, locationID, itemID string, typ model.MovementType, quantity int, reason string) *model.StockMovement {
	return &model.StockMovement{
		ID:            id,
		ItemID:        itemID,
		LocationID:    locationID,
		TenantID:      tenantID,
		QuantityDelta: typ.Delta(quantity),
		MovementType:  typ,
		Reason:        reason,
		ActorID:       actor,
	}
}
