package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/connectivity"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/metrics"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/stock"
	"github.com/fekuna/omnipos-offline-sync/internal/stock/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/fekuna/omnipos-offline-sync/internal/stock")

type stockUseCase struct {
	repo    stock.Repository
	store   *localstore.Store
	queue   syncqueue.UseCase
	conn    connectivity.Checker
	metrics *metrics.Metrics
	logger  logger.ZapLogger
}

func NewStockUseCase(repo stock.Repository, store *localstore.Store, queue syncqueue.UseCase, conn connectivity.Checker, m *metrics.Metrics, log logger.ZapLogger) stock.UseCase {
	return &stockUseCase{
		repo:    repo,
		store:   store,
		queue:   queue,
		conn:    conn,
		metrics: m,
		logger:  log,
	}
}

func (uc *stockUseCase) Adjust(ctx context.Context, input *dto.AdjustInput) (*dto.AdjustOutput, error) {
	actor := auth.GetActor(ctx)
	if actor.TenantID == "" || actor.LocationID == "" || actor.UserID == "" {
		return nil, apperror.ErrMissingContext
	}
	if !input.MovementType.Valid() {
		return nil, apperror.NewValidation(stock.MovementsTable, "movement_type", fmt.Sprintf("unknown movement type %q", input.MovementType))
	}
	switch input.MovementType {
	case model.MovementReserveOut, model.MovementReserveReleaseIn:
		return nil, apperror.NewValidation(stock.MovementsTable, "movement_type", "reservations are issued by orders")
	case model.MovementAdjustmentIn, model.MovementAdjustmentOut:
		if !actor.Privileged() {
			return nil, apperror.ErrForbidden
		}
	}
	if input.Quantity <= 0 {
		return nil, apperror.NewValidation(stock.MovementsTable, "quantity", "must be positive")
	}

	userID := actor.UserID
	m := stock.Movement(uuid.New().String(), &userID, actor.TenantID, actor.LocationID,
		input.ItemID, input.MovementType, input.Quantity, input.Reason)

	offline := !uc.conn.IsOnline()
	res, err := uc.apply(ctx, m, uc.itemName(ctx, input.ItemID), offline)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("stock adjusted",
		zap.String("item_id", m.ItemID),
		zap.String("movement_type", string(m.MovementType)),
		zap.Int("delta", m.QuantityDelta),
		zap.Bool("offline", offline),
	)
	return &dto.AdjustOutput{
		MovementID:    m.ID,
		QuantityDelta: m.QuantityDelta,
		QuantityAfter: res.QuantityAfter,
		Offline:       offline,
	}, nil
}

// Reserve walks the lines in order and stops at the first failure. Lines
// already reserved in this call are released again, newest first, before the
// error is returned.
func (uc *stockUseCase) Reserve(ctx context.Context, input *dto.ReservationInput) (*dto.ReservationOutput, error) {
	ctx, span := tracer.Start(ctx, "stock.Reserve", trace.WithAttributes(
		attribute.Int("stock.lines", len(input.Lines)),
		attribute.Bool("stock.offline", input.Offline),
	))
	defer span.End()

	out := &dto.ReservationOutput{Offline: input.Offline}
	reserved := make([]dto.Line, 0, len(input.Lines))

	for _, line := range input.Lines {
		if !line.ItemType.TracksStock() {
			out.Lines = append(out.Lines, line)
			continue
		}
		if line.Quantity <= 0 {
			err := apperror.NewValidation(stock.MovementsTable, "quantity", fmt.Sprintf("item %s: quantity must be positive", line.ItemID))
			uc.compensate(ctx, input, reserved)
			return nil, err
		}

		m := stock.Movement(uuid.New().String(), input.ActorID, input.TenantID, input.LocationID,
			line.ItemID, model.MovementReserveOut, line.Quantity, input.Reason)
		if err := uc.reserveLine(ctx, m, line.ItemName, input.Offline); err != nil {
			span.RecordError(err)
			uc.compensate(ctx, input, reserved)
			return nil, err
		}
		line.ReservationID = m.ID
		reserved = append(reserved, line)
		out.Lines = append(out.Lines, line)
		out.Movements = append(out.Movements, *m)
	}
	return out, nil
}

// reserveLine applies one RESERVE_OUT. Offline reservations are tracked
// until the queue settles them.
func (uc *stockUseCase) reserveLine(ctx context.Context, m *model.StockMovement, itemName string, offline bool) error {
	if !offline {
		_, err := uc.apply(ctx, m, itemName, false)
		return err
	}

	doc, err := localstore.Encode(model.Reservation{
		ID:         m.ID,
		ItemID:     m.ItemID,
		LocationID: m.LocationID,
		TenantID:   m.TenantID,
		Quantity:   -m.QuantityDelta,
		State:      model.ReservationPending,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := uc.store.Upsert(ctx, localstore.Reservations, doc); err != nil {
		return err
	}
	if _, err := uc.apply(ctx, m, itemName, true); err != nil {
		if rerr := uc.store.Remove(ctx, localstore.Reservations, m.ID); rerr != nil {
			uc.logger.Error("failed to drop reservation record", zap.String("movement_id", m.ID), zap.Error(rerr))
		}
		return err
	}
	return nil
}

func (uc *stockUseCase) compensate(ctx context.Context, input *dto.ReservationInput, reserved []dto.Line) {
	for i := len(reserved) - 1; i >= 0; i-- {
		line := reserved[i]
		if _, err := uc.releaseLine(ctx, input, line, "compensation: "+input.Reason); err != nil {
			uc.logger.Error("failed to compensate reservation",
				zap.String("item_id", line.ItemID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}
}

// Release keeps going past a failed line so one bad line does not strand the rest.
func (uc *stockUseCase) Release(ctx context.Context, input *dto.ReservationInput) (*dto.ReservationOutput, error) {
	out := &dto.ReservationOutput{Offline: input.Offline}
	var errs []error

	for _, line := range input.Lines {
		if !line.ItemType.TracksStock() || line.Quantity <= 0 {
			continue
		}
		m, err := uc.releaseLine(ctx, input, line, input.Reason)
		if err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", line.ItemID, err))
			continue
		}
		if m != nil {
			out.Movements = append(out.Movements, *m)
		}
	}
	return out, errors.Join(errs...)
}

// releaseLine issues the RESERVE_RELEASE_IN for one line. It returns a nil
// movement when there is nothing to give back: the reservation was refused by
// the remote or was already released.
func (uc *stockUseCase) releaseLine(ctx context.Context, input *dto.ReservationInput, line dto.Line, reason string) (*model.StockMovement, error) {
	offline := input.Offline
	var reverses string

	if line.ReservationID != "" {
		r, err := uc.reservation(ctx, line.ReservationID)
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			// Reserved online, or already confirmed by the remote.
		case err != nil:
			return nil, err
		case r.Released:
			return nil, nil
		case r.State == model.ReservationRejected:
			uc.markReleased(ctx, r.ID)
			uc.logger.Info("reservation was refused by the remote; nothing to release",
				zap.String("reservation_id", r.ID),
				zap.String("item_id", r.ItemID),
			)
			return nil, nil
		default:
			// Still queued: the release follows it through the queue.
			offline = true
			reverses = r.ID
		}
	}

	m := stock.Movement(uuid.New().String(), input.ActorID, input.TenantID, input.LocationID,
		line.ItemID, model.MovementReserveReleaseIn, line.Quantity, reason)
	m.Reverses = reverses
	if _, err := uc.apply(ctx, m, line.ItemName, offline); err != nil {
		return nil, err
	}
	if reverses != "" {
		uc.markReleased(ctx, reverses)
	}
	return m, nil
}

func (uc *stockUseCase) reservation(ctx context.Context, id string) (*model.Reservation, error) {
	doc, err := uc.store.FindOne(ctx, localstore.Reservations, id)
	if err != nil {
		return nil, err
	}
	var r model.Reservation
	if err := localstore.Decode(doc, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (uc *stockUseCase) markReleased(ctx context.Context, id string) {
	if _, err := uc.store.Patch(ctx, localstore.Reservations, id, localstore.Document{"released": true}); err != nil {
		uc.logger.Error("failed to mark reservation released", zap.String("reservation_id", id), zap.Error(err))
	}
}

func (uc *stockUseCase) apply(ctx context.Context, m *model.StockMovement, itemName string, offline bool) (*model.AdjustResult, error) {
	m.CreatedAt = time.Now().UTC()

	var (
		res *model.AdjustResult
		err error
	)
	if offline {
		res, err = uc.applyLocal(ctx, m, itemName)
	} else {
		res, err = uc.applyRemote(ctx, m, itemName)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	uc.metrics.StockMovements.WithLabelValues(string(m.MovementType), metrics.PathLabel(offline), outcome).Inc()
	return res, err
}

func (uc *stockUseCase) applyRemote(ctx context.Context, m *model.StockMovement, itemName string) (*model.AdjustResult, error) {
	ctx, span := tracer.Start(ctx, "stock.AdjustRemote", trace.WithAttributes(
		attribute.String("stock.item_id", m.ItemID),
		attribute.String("stock.movement_type", string(m.MovementType)),
		attribute.Int("stock.delta", m.QuantityDelta),
	))
	defer span.End()

	res, err := uc.repo.AdjustStock(ctx, m)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if res.Status != model.AdjustStatusSuccess {
		return nil, &apperror.InsufficientStockError{ItemID: m.ItemID, ItemName: itemName, Message: res.Message}
	}

	uc.mirrorRemote(ctx, m, res.QuantityAfter)
	return res, nil
}

// mirrorRemote writes the authoritative quantity into the local cache, keeping
// any offline deltas that have not synced yet on top of it.
func (uc *stockUseCase) mirrorRemote(ctx context.Context, m *model.StockMovement, remoteQty int) {
	id := model.StockLevelID(m.ItemID, m.LocationID)
	_, err := uc.store.PatchFunc(ctx, localstore.StockLevels, id, func(doc localstore.Document) (localstore.Document, error) {
		pending, _ := doc["pending_delta"].(float64)
		doc["quantity"] = remoteQty + int(pending)
		doc["updated_at"] = m.CreatedAt
		return doc, nil
	})
	if errors.Is(err, apperror.ErrNotFound) {
		err = uc.store.Upsert(ctx, localstore.StockLevels, localstore.Document{
			"id":          id,
			"item_id":     m.ItemID,
			"location_id": m.LocationID,
			"account_id":  m.TenantID,
			"quantity":    remoteQty,
			"updated_at":  m.CreatedAt,
		})
	}
	if err != nil {
		uc.logger.Warn("failed to mirror remote stock level", zap.String("stock_level_id", id), zap.Error(err))
	}
}

// applyLocal commits the delta optimistically to the local cache and queues
// the movement. A negative result is refused only when the local level is
// known; the remote has the final word when the queue drains.
func (uc *stockUseCase) applyLocal(ctx context.Context, m *model.StockMovement, itemName string) (*model.AdjustResult, error) {
	id := model.StockLevelID(m.ItemID, m.LocationID)
	res := &model.AdjustResult{Status: model.AdjustStatusSuccess}

	patched := true
	_, err := uc.store.PatchFunc(ctx, localstore.StockLevels, id, func(doc localstore.Document) (localstore.Document, error) {
		qty, _ := doc["quantity"].(float64)
		pending, _ := doc["pending_delta"].(float64)
		next := int(qty) + m.QuantityDelta
		if m.QuantityDelta < 0 && next < 0 {
			return nil, &apperror.InsufficientStockError{
				ItemID:   m.ItemID,
				ItemName: itemName,
				Message:  fmt.Sprintf("disponible %d, solicitado %d", int(qty), -m.QuantityDelta),
			}
		}
		nextPending := int(pending) + m.QuantityDelta
		doc["quantity"] = next
		doc["pending_delta"] = nextPending
		doc["tentative"] = nextPending != 0
		doc["updated_at"] = m.CreatedAt
		res.QuantityAfter = next
		return doc, nil
	})
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		patched = false
	case err != nil:
		return nil, err
	}

	if _, err := uc.queue.Enqueue(ctx, model.OpInsert, stock.MovementsTable, m); err != nil {
		if patched {
			if rerr := uc.shiftLocal(ctx, id, -m.QuantityDelta, -m.QuantityDelta); rerr != nil {
				uc.logger.Error("failed to revert local stock level", zap.String("stock_level_id", id), zap.Error(rerr))
			}
		}
		return nil, err
	}
	return res, nil
}

// shiftLocal moves quantity and pending_delta by the given amounts. Missing levels are ignored.
func (uc *stockUseCase) shiftLocal(ctx context.Context, id string, qty, pending int) error {
	_, err := uc.store.PatchFunc(ctx, localstore.StockLevels, id, func(doc localstore.Document) (localstore.Document, error) {
		q, _ := doc["quantity"].(float64)
		p, _ := doc["pending_delta"].(float64)
		nextPending := int(p) + pending
		doc["quantity"] = int(q) + qty
		doc["pending_delta"] = nextPending
		doc["tentative"] = nextPending != 0
		return doc, nil
	})
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	return err
}

// Replay sends a queued offline movement through the remote atomic adjustment.
// A release of a reservation the remote refused is settled without a call;
// one whose reservation is still unsettled waits.
func (uc *stockUseCase) Replay(ctx context.Context, entry *model.QueueEntry) error {
	var m model.StockMovement
	if err := localstore.Decode(entry.Payload, &m); err != nil {
		return apperror.NewValidation(stock.MovementsTable, "payload", err.Error())
	}
	if entry.Operation != model.OpInsert {
		return apperror.NewValidation(stock.MovementsTable, "operation", "stock movements are insert-only")
	}

	if m.Reverses != "" {
		r, err := uc.reservation(ctx, m.Reverses)
		switch {
		case errors.Is(err, apperror.ErrNotFound):
		case err != nil:
			return err
		case r.State == model.ReservationRejected:
			uc.logger.Info("skipping release of a refused reservation",
				zap.String("movement_id", m.ID),
				zap.String("reservation_id", m.Reverses),
			)
			return nil
		default:
			return fmt.Errorf("release %s needs reservation %s settled first: %w", m.ID, m.Reverses, apperror.ErrBlocked)
		}
	}

	res, err := uc.repo.AdjustStock(ctx, &m)
	if err != nil {
		return err
	}
	if res.Status != model.AdjustStatusSuccess {
		return &apperror.InsufficientStockError{ItemID: m.ItemID, ItemName: uc.itemName(ctx, m.ItemID), Message: res.Message}
	}
	return nil
}

// Reconcile settles the tentative local delta of a queued movement.
func (uc *stockUseCase) Reconcile(ctx context.Context, entry *model.QueueEntry, outcome syncqueue.Outcome) error {
	var m model.StockMovement
	if err := localstore.Decode(entry.Payload, &m); err != nil {
		return err
	}
	id := model.StockLevelID(m.ItemID, m.LocationID)

	// skipped: a release that never reached the remote because its
	// reservation was refused. Its local delta goes away like a rejection.
	skipped := false
	switch {
	case m.MovementType == model.MovementReserveOut:
		if err := uc.settleReservation(ctx, m.ID, outcome); err != nil {
			return err
		}
	case m.Reverses != "" && outcome == syncqueue.OutcomeConfirmed:
		if r, err := uc.reservation(ctx, m.Reverses); err == nil && r.State == model.ReservationRejected {
			skipped = true
		}
	}

	var qty, pending int
	switch outcome {
	case syncqueue.OutcomeConfirmed:
		pending = -m.QuantityDelta
		if skipped {
			qty = -m.QuantityDelta
		}
	case syncqueue.OutcomeRejected:
		qty, pending = -m.QuantityDelta, -m.QuantityDelta
	case syncqueue.OutcomeRequeued:
		qty, pending = m.QuantityDelta, m.QuantityDelta
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}

	if err := uc.shiftLocal(ctx, id, qty, pending); err != nil {
		return err
	}

	if outcome == syncqueue.OutcomeRejected {
		uc.logger.Warn("offline stock movement rejected by remote; local level reverted",
			zap.String("stock_level_id", id),
			zap.String("movement_id", m.ID),
			zap.Int("delta", m.QuantityDelta),
		)
	}
	return nil
}

// settleReservation records the remote's answer to a queued RESERVE_OUT.
// A refused reservation whose order already gave it back cannot be requeued.
func (uc *stockUseCase) settleReservation(ctx context.Context, id string, outcome syncqueue.Outcome) error {
	r, err := uc.reservation(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	switch outcome {
	case syncqueue.OutcomeConfirmed:
		return uc.store.Remove(ctx, localstore.Reservations, id)
	case syncqueue.OutcomeRejected:
		_, err = uc.store.Patch(ctx, localstore.Reservations, id, localstore.Document{"state": string(model.ReservationRejected)})
	case syncqueue.OutcomeRequeued:
		if r.Released {
			return fmt.Errorf("reservation %s was already released: %w", id, apperror.ErrInvalidTransition)
		}
		_, err = uc.store.Patch(ctx, localstore.Reservations, id, localstore.Document{"state": string(model.ReservationPending)})
	}
	return err
}

func (uc *stockUseCase) itemName(ctx context.Context, itemID string) string {
	doc, err := uc.store.FindOne(ctx, localstore.InventoryItems, itemID)
	if err != nil {
		return itemID
	}
	if name, ok := doc["name"].(string); ok && name != "" {
		return name
	}
	return itemID
}
