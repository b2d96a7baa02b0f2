package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-offline-sync/internal/httpserver/response"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/order"
	"github.com/fekuna/omnipos-offline-sync/internal/order/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	uc     order.UseCase
	logger logger.ZapLogger
}

func NewOrderHandler(uc order.UseCase, log logger.ZapLogger) *OrderHandler {
	return &OrderHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *OrderHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/orders")
	g.POST("", h.CreateOrder)
	g.POST("/:id/cancel", h.CancelOrder)
	g.POST("/:id/payments", h.ConfirmPayment)
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.uc.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("create order failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res.Offline, gin.H{"orderId": res.OrderID, "order": res})
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req dto.CancelOrderInput
	// The body is optional: the order's own lines are used when known.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	req.OrderID = c.Param("id")

	res, err := h.uc.CancelOrder(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("cancel order failed", zap.String("order_id", req.OrderID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Offline, gin.H{"order": res})
}

func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	var req dto.PaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.OrderID = c.Param("id")

	res, err := h.uc.ConfirmPayment(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("confirm payment failed", zap.String("order_id", req.OrderID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Offline, gin.H{"order": res})
}
