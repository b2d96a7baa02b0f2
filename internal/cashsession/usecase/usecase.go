package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/cashsession"
	"github.com/fekuna/omnipos-offline-sync/internal/cashsession/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/connectivity"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cashSessionUseCase struct {
	repo   cashsession.Repository
	conn   connectivity.Checker
	logger logger.ZapLogger
	now    func() time.Time
}

func NewCashSessionUseCase(repo cashsession.Repository, conn connectivity.Checker, log logger.ZapLogger) cashsession.UseCase {
	return &cashSessionUseCase{
		repo:   repo,
		conn:   conn,
		logger: log,
		now:    time.Now,
	}
}

// Cash sessions are only managed online; the drawer count must land on the server.
func (uc *cashSessionUseCase) online() error {
	if !uc.conn.IsOnline() {
		return apperror.ErrOffline
	}
	return nil
}

func (uc *cashSessionUseCase) Open(ctx context.Context, input *dto.OpenInput) (*model.CashSession, error) {
	actor := auth.GetActor(ctx)
	locationID := input.LocationID
	if locationID == "" {
		locationID = actor.LocationID
	}
	if actor.TenantID == "" || actor.UserID == "" || locationID == "" {
		return nil, apperror.ErrMissingContext
	}
	if input.OpeningBalance.IsNegative() {
		return nil, apperror.NewValidation("cash_register_sessions", "opening_balance", "must not be negative")
	}
	if err := uc.online(); err != nil {
		return nil, err
	}

	s := &model.CashSession{
		ID:             uuid.New().String(),
		TenantID:       actor.TenantID,
		LocationID:     locationID,
		OpenedBy:       actor.UserID,
		OpeningBalance: input.OpeningBalance,
		Status:         model.CashSessionOpen,
		Notes:          input.Notes,
		OpenedAt:       uc.now().UTC(),
	}
	if err := uc.repo.OpenSession(ctx, s); err != nil {
		return nil, err
	}

	uc.logger.Info("cash session opened",
		zap.String("session_id", s.ID),
		zap.String("business_id", s.LocationID),
		zap.String("opening_balance", s.OpeningBalance.String()),
	)
	return s, nil
}

func (uc *cashSessionUseCase) Active(ctx context.Context, locationID string) (*model.CashSession, error) {
	actor := auth.GetActor(ctx)
	if locationID == "" {
		locationID = actor.LocationID
	}
	if actor.TenantID == "" || locationID == "" {
		return nil, apperror.ErrMissingContext
	}
	if err := uc.online(); err != nil {
		return nil, err
	}
	return uc.repo.GetActiveSession(ctx, actor.TenantID, locationID)
}

func (uc *cashSessionUseCase) Summarize(ctx context.Context, sessionID string) (*model.CashSessionSummary, error) {
	actor := auth.GetActor(ctx)
	if actor.TenantID == "" {
		return nil, apperror.ErrMissingContext
	}
	if err := uc.online(); err != nil {
		return nil, err
	}

	s, err := uc.session(ctx, actor.TenantID, sessionID)
	if err != nil {
		return nil, err
	}
	return uc.repo.SessionSummary(ctx, s.ID)
}

// session loads a session of the actor's tenant. Other tenants' sessions read as missing.
func (uc *cashSessionUseCase) session(ctx context.Context, tenantID, id string) (*model.CashSession, error) {
	s, err := uc.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.TenantID != tenantID {
		return nil, fmt.Errorf("cash session %s: %w", id, apperror.ErrNotFound)
	}
	return s, nil
}

func (uc *cashSessionUseCase) Close(ctx context.Context, input *dto.CloseInput) (*model.CashSession, error) {
	actor := auth.GetActor(ctx)
	if actor.TenantID == "" || actor.UserID == "" {
		return nil, apperror.ErrMissingContext
	}
	if input.CountedBalance.IsNegative() {
		return nil, apperror.NewValidation("cash_register_sessions", "closing_balance", "must not be negative")
	}
	if err := uc.online(); err != nil {
		return nil, err
	}

	// 1. Load session
	s, err := uc.session(ctx, actor.TenantID, input.SessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != model.CashSessionOpen {
		return nil, apperror.ErrSessionNotOpen
	}

	// 2. Resolve cash-in
	var cashIn decimal.Decimal
	if input.ComputedCashIn != nil {
		cashIn = *input.ComputedCashIn
	} else {
		summary, err := uc.repo.SessionSummary(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		cashIn = summary.TotalCashSales
	}

	// 3. Close
	closedAt := uc.now().UTC()
	closedBy := actor.UserID
	s.ClosedBy = &closedBy
	s.ClosingBalance = decimal.NewNullDecimal(input.CountedBalance)
	s.CalculatedCashIn = decimal.NewNullDecimal(cashIn)
	s.Difference = decimal.NewNullDecimal(model.CashDifference(input.CountedBalance, s.OpeningBalance, cashIn))
	s.Status = model.CashSessionClosed
	s.ClosedAt = &closedAt
	if input.Notes != "" {
		s.Notes = input.Notes
	}

	if err := uc.repo.CloseSession(ctx, s); err != nil {
		return nil, err
	}

	uc.logger.Info("cash session closed",
		zap.String("session_id", s.ID),
		zap.String("difference", s.Difference.Decimal.String()),
	)
	return s, nil
}
