package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-offline-sync/internal/httpserver/response"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/payment"
	"github.com/fekuna/omnipos-offline-sync/internal/payment/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	uc     payment.UseCase
	logger logger.ZapLogger
}

func NewWebhookHandler(uc payment.UseCase, log logger.ZapLogger) *WebhookHandler {
	return &WebhookHandler{uc: uc, logger: log}
}

func (h *WebhookHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/webhooks/payments", h.Notify)
}

func (h *WebhookHandler) Notify(c *gin.Context) {
	var req dto.Notification
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.uc.ProcessNotification(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("payment webhook failed", zap.String("payment_id", req.PaymentID), zap.Error(err))
		response.Error(c, err)
		return
	}
	offline := res.Order != nil && res.Order.Offline
	response.Success(c, http.StatusOK, offline, gin.H{"result": res})
}
