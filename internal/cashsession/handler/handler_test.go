package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/cashsession/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUseCase struct {
	mock.Mock
}

func (m *MockUseCase) Open(ctx context.Context, input *dto.OpenInput) (*model.CashSession, error) {
	args := m.Called(ctx, input)
	s, _ := args.Get(0).(*model.CashSession)
	return s, args.Error(1)
}

func (m *MockUseCase) Active(ctx context.Context, locationID string) (*model.CashSession, error) {
	args := m.Called(ctx, locationID)
	s, _ := args.Get(0).(*model.CashSession)
	return s, args.Error(1)
}

func (m *MockUseCase) Summarize(ctx context.Context, sessionID string) (*model.CashSessionSummary, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(*model.CashSessionSummary)
	return s, args.Error(1)
}

func (m *MockUseCase) Close(ctx context.Context, input *dto.CloseInput) (*model.CashSession, error) {
	args := m.Called(ctx, input)
	s, _ := args.Get(0).(*model.CashSession)
	return s, args.Error(1)
}

func newRouter(uc *MockUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewCashSessionHandler(uc, logger.NewNop()).Register(r.Group("/api/v1"))
	return r
}

func do(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestOpenReturnsCreated(t *testing.T) {
	uc := new(MockUseCase)
	uc.On("Open", mock.Anything, mock.MatchedBy(func(in *dto.OpenInput) bool {
		return in.LocationID == "loc-1" && in.OpeningBalance.Equal(decimal.NewFromInt(100))
	})).Return(&model.CashSession{ID: "s-1", Status: model.CashSessionOpen}, nil)

	w, body := do(newRouter(uc), http.MethodPost, "/api/v1/cash-sessions", `{"business_id":"loc-1","opening_balance":"100"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	uc.AssertExpectations(t)
}

func TestOpenConflictWhenSessionAlreadyOpen(t *testing.T) {
	uc := new(MockUseCase)
	uc.On("Open", mock.Anything, mock.Anything).Return(nil, apperror.ErrSessionAlreadyOpen)

	w, body := do(newRouter(uc), http.MethodPost, "/api/v1/cash-sessions", `{"business_id":"loc-1","opening_balance":"0"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestCloseTakesSessionFromPath(t *testing.T) {
	uc := new(MockUseCase)
	uc.On("Close", mock.Anything, mock.MatchedBy(func(in *dto.CloseInput) bool {
		return in.SessionID == "s-1" && in.CountedBalance.Equal(decimal.NewFromInt(145)) && in.ComputedCashIn == nil
	})).Return(&model.CashSession{ID: "s-1", Status: model.CashSessionClosed}, nil)

	w, _ := do(newRouter(uc), http.MethodPost, "/api/v1/cash-sessions/s-1/close", `{"closing_balance":"145"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	uc.AssertExpectations(t)
}

func TestCloseRejectsMalformedBody(t *testing.T) {
	uc := new(MockUseCase)

	w, _ := do(newRouter(uc), http.MethodPost, "/api/v1/cash-sessions/s-1/close", `{"closing_balance":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	uc.AssertNotCalled(t, "Close", mock.Anything, mock.Anything)
}

func TestActiveOfflineIsUnavailable(t *testing.T) {
	uc := new(MockUseCase)
	uc.On("Active", mock.Anything, "loc-1").Return(nil, apperror.ErrOffline)

	w, body := do(newRouter(uc), http.MethodGet, "/api/v1/cash-sessions/active?business_id=loc-1", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, true, body["offline"])
}

func TestSummaryNotFound(t *testing.T) {
	uc := new(MockUseCase)
	uc.On("Summarize", mock.Anything, "missing").Return(nil, apperror.ErrNotFound)

	w, _ := do(newRouter(uc), http.MethodGet, "/api/v1/cash-sessions/missing/summary", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
