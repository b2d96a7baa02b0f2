package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/fake"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/metrics"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/order/usecase"
	stockusecase "github.com/fekuna/omnipos-offline-sync/internal/stock/usecase"
	syncusecase "github.com/fekuna/omnipos-offline-sync/internal/syncqueue/usecase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const location = "loc-1"

func newRouter(t *testing.T, online bool) (*gin.Engine, *fake.Remote) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := localstore.New(localstore.NewMemoryPersister(), localstore.DefaultSchemas()...)
	remote := fake.NewRemote()
	conn := fake.NewSwitch(online)
	m := metrics.NewNop()
	log := logger.NewNop()
	queue := syncusecase.NewSyncUseCase(store, remote, conn, m, log)
	stockUC := stockusecase.NewStockUseCase(remote, store, queue, conn, m, log)
	uc := usecase.NewOrderUseCase(remote, stockUC, queue, store, conn, m, log)

	r := gin.New()
	api := r.Group("/api/v1", auth.Middleware("tenant-1", location))
	NewOrderHandler(uc, log).Register(api)
	return r, remote
}

func post(r *gin.Engine, path, body string, withUser bool) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if withUser {
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set("X-User-Role", auth.RoleCashier)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

const cafeCart = `{"cart":[{"item_id":"item-1","name":"Café","item_type":"PRODUCT","quantity":2,"unit_price":"4.5"}]}`

func TestCreateOrderEndpoint(t *testing.T) {
	r, remote := newRouter(t, true)
	remote.SetStock("item-1", location, 5)

	w, body := post(r, "/api/v1/orders", cafeCart, true)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["offline"])
	id, _ := body["orderId"].(string)
	require.NotEmpty(t, id)

	o, ok := remote.Order(id)
	require.True(t, ok)
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.Equal(t, 3, remote.Stock("item-1", location))
}

func TestCreateOrderEndpointInsufficientStock(t *testing.T) {
	r, remote := newRouter(t, true)
	remote.SetStock("item-1", location, 1)

	w, body := post(r, "/api/v1/orders", cafeCart, true)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "Stock insuficiente para Café")
	assert.Zero(t, remote.OrderCount())
}

func TestCreateOrderEndpointOffline(t *testing.T) {
	r, remote := newRouter(t, false)

	w, body := post(r, "/api/v1/orders", cafeCart, true)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["offline"])
	assert.Zero(t, remote.OrderCount())
}

func TestCreateOrderEndpointRequiresUser(t *testing.T) {
	r, _ := newRouter(t, true)

	w, _ := post(r, "/api/v1/orders", cafeCart, false)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderEndpointRejectsMalformedCart(t *testing.T) {
	r, _ := newRouter(t, true)

	w, _ := post(r, "/api/v1/orders", `{"cart":[{"quantity":1}]}`, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelUnknownOrder(t *testing.T) {
	r, _ := newRouter(t, true)

	w, _ := post(r, "/api/v1/orders/missing/cancel", "", true)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
