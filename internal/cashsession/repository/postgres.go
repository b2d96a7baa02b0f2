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

const sessionColumns = `
    id, account_id, business_id, opened_by_user_id, closed_by_user_id, opening_balance,
    closing_balance, calculated_cash_in, difference, status, COALESCE(notes, '') AS notes,
    opened_at, closed_at`

type PGRepository struct {
	DB      *sqlx.DB
	timeout time.Duration
}

func NewPGRepository(db *sqlx.DB, timeout time.Duration) *PGRepository {
	return &PGRepository{DB: db, timeout: timeout}
}

func (r *PGRepository) OpenSession(ctx context.Context, s *model.CashSession) error {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	// Single statement so two terminals cannot both open a session.
	res, err := r.DB.NamedExecContext(ctx, `
        INSERT INTO cash_register_sessions (
            id, account_id, business_id, opened_by_user_id, opening_balance, status, notes, opened_at
        )
        SELECT :id, :account_id, :business_id, :opened_by_user_id, :opening_balance, :status, :notes, :opened_at
        WHERE NOT EXISTS (
            SELECT 1 FROM cash_register_sessions
            WHERE account_id = :account_id AND business_id = :business_id AND status = 'OPEN'
        )
    `, s)
	if err != nil {
		return apperror.Classify("open cash session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Classify("open cash session", err)
	}
	if n == 0 {
		return apperror.ErrSessionAlreadyOpen
	}
	return nil
}

func (r *PGRepository) GetSession(ctx context.Context, id string) (*model.CashSession, error) {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	var s model.CashSession
	err := r.DB.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM cash_register_sessions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cash session %s: %w", id, apperror.ErrNotFound)
		}
		return nil, apperror.Classify("get cash session", err)
	}
	return &s, nil
}

func (r *PGRepository) GetActiveSession(ctx context.Context, tenantID, locationID string) (*model.CashSession, error) {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	var s model.CashSession
	err := r.DB.GetContext(ctx, &s, `
        SELECT `+sessionColumns+` FROM cash_register_sessions
        WHERE account_id = $1 AND business_id = $2 AND status = 'OPEN'
        ORDER BY opened_at DESC LIMIT 1
    `, tenantID, locationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active cash session: %w", apperror.ErrNotFound)
		}
		return nil, apperror.Classify("get active cash session", err)
	}
	return &s, nil
}

func (r *PGRepository) SessionSummary(ctx context.Context, sessionID string) (*model.CashSessionSummary, error) {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	summary := model.CashSessionSummary{SessionID: sessionID}
	err := r.DB.GetContext(ctx, &summary, `
        SELECT COALESCE(SUM(p.amount), 0) AS total_cash_sales
        FROM cash_register_sessions s
        LEFT JOIN orders o ON o.account_id = s.account_id AND o.business_id = s.business_id
        LEFT JOIN payments p ON p.order_id = o.id
          AND p.status = $2
          AND p.payment_method_id = $3
          AND p.created_at >= s.opened_at
          AND p.created_at <= COALESCE(s.closed_at, NOW())
          AND p.deleted_at IS NULL
        WHERE s.id = $1
        GROUP BY s.id
    `, sessionID, model.PaymentStatusApproved, model.PaymentMethodCash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cash session %s: %w", sessionID, apperror.ErrNotFound)
		}
		return nil, apperror.Classify("cash session summary", err)
	}
	return &summary, nil
}

func (r *PGRepository) CloseSession(ctx context.Context, s *model.CashSession) error {
	ctx, cancel := postgres.Bounded(ctx, r.timeout)
	defer cancel()

	res, err := r.DB.NamedExecContext(ctx, `
        UPDATE cash_register_sessions SET
            closed_by_user_id = :closed_by_user_id,
            closing_balance = :closing_balance,
            calculated_cash_in = :calculated_cash_in,
            difference = :difference,
            status = 'CLOSED',
            notes = :notes,
            closed_at = :closed_at
        WHERE id = :id AND status = 'OPEN'
    `, s)
	if err != nil {
		return apperror.Classify("close cash session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Classify("close cash session", err)
	}
	if n == 0 {
		return apperror.ErrSessionNotOpen
	}
	return nil
}
