package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/database/postgres"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB      *sqlx.DB
	timeout time.Duration
}

func NewPGRepository(db *sqlx.DB, timeout time.Duration) *PGRepository {
	return &PGRepository{DB: db, timeout: timeout}
}

func (r *PGRepository) AdjustStock(ctx context.Context, m *model.StockMovement) (*model.AdjustResult, error) {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	res, err := r.adjust(ctx, m)
	if err != nil {
		return nil, apperror.Classify("adjust stock", err)
	}
	return res, nil
}

func (r *PGRepository) adjust(ctx context.Context, m *model.StockMovement) (*model.AdjustResult, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// 1. Same movement id already applied: a replay after a lost response.
	var applied int
	err = tx.GetContext(ctx, &applied, `SELECT quantity_after FROM stock_movements WHERE id = $1`, m.ID)
	if err == nil {
		return &model.AdjustResult{Status: model.AdjustStatusSuccess, QuantityAfter: applied}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up movement: %w", err)
	}

	// 2. Lock the level row
	var current int
	err = tx.GetContext(ctx, &current, `
        SELECT quantity FROM stock_levels
        WHERE item_id = $1 AND business_id = $2 AND account_id = $3
        FOR UPDATE
    `, m.ItemID, m.LocationID, m.TenantID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock stock level: %w", err)
	}

	next := current + m.QuantityDelta
	if m.QuantityDelta < 0 && next < 0 {
		return &model.AdjustResult{
			Status:        model.AdjustStatusError,
			Message:       fmt.Sprintf("disponible %d, solicitado %d", current, -m.QuantityDelta),
			QuantityAfter: current,
		}, nil
	}

	// 3. Apply
	_, err = tx.ExecContext(ctx, `
        INSERT INTO stock_levels (item_id, business_id, account_id, quantity, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (item_id, business_id)
        DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
    `, m.ItemID, m.LocationID, m.TenantID, next)
	if err != nil {
		return nil, fmt.Errorf("failed to update stock level: %w", err)
	}

	// 4. Log Movement
	m.QuantityAfter = next
	_, err = tx.NamedExecContext(ctx, `
        INSERT INTO stock_movements (
            id, item_id, business_id, account_id, quantity_change,
            movement_type, reason, user_id, quantity_after, created_at
        )
        VALUES (
            :id, :item_id, :business_id, :account_id, :quantity_change,
            :movement_type, :reason, :user_id, :quantity_after, :created_at
        )
    `, m)
	if err != nil {
		return nil, fmt.Errorf("failed to log movement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.AdjustResult{Status: model.AdjustStatusSuccess, QuantityAfter: next}, nil
}
