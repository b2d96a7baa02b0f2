package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/payment/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onceUseCase struct {
	seen map[string]bool
}

func (u *onceUseCase) ProcessNotification(_ context.Context, n *dto.Notification) (*dto.NotificationResult, error) {
	key := n.PaymentID + ":" + n.Status
	if u.seen[key] {
		return nil, apperror.ErrDuplicate
	}
	u.seen[key] = true
	return &dto.NotificationResult{Action: dto.ActionConfirmed}, nil
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewWebhookHandler(&onceUseCase{seen: map[string]bool{}}, logger.NewNop()).Register(r.Group("/api/v1"))
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestNotify(t *testing.T) {
	r := newRouter()
	body := `{"payment_id":"mp-1","order_id":"o-1","status":"approved"}`

	w := post(r, body)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "confirmed", got["result"].(map[string]any)["action"])

	w = post(r, body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestNotifyRequiresFields(t *testing.T) {
	w := post(newRouter(), `{"order_id":"o-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
