package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-offline-sync/internal/httpserver/response"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/stock"
	"github.com/fekuna/omnipos-offline-sync/internal/stock/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StockHandler struct {
	uc     stock.UseCase
	logger logger.ZapLogger
}

func NewStockHandler(uc stock.UseCase, log logger.ZapLogger) *StockHandler {
	return &StockHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *StockHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/stock/adjustments", h.Adjust)
}

func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	out, err := h.uc.Adjust(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("stock adjustment failed", zap.String("item_id", req.ItemID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, out.Offline, gin.H{"adjustment": out})
}
