package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-offline-sync/internal/cashsession"
	"github.com/fekuna/omnipos-offline-sync/internal/cashsession/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/httpserver/response"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CashSessionHandler struct {
	uc     cashsession.UseCase
	logger logger.ZapLogger
}

func NewCashSessionHandler(uc cashsession.UseCase, log logger.ZapLogger) *CashSessionHandler {
	return &CashSessionHandler{uc: uc, logger: log}
}

func (h *CashSessionHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/cash-sessions")
	g.POST("", h.Open)
	g.GET("/active", h.Active)
	g.GET("/:id/summary", h.Summary)
	g.POST("/:id/close", h.Close)
}

func (h *CashSessionHandler) Open(c *gin.Context) {
	var req dto.OpenInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	s, err := h.uc.Open(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("open cash session failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, false, gin.H{"session": s})
}

func (h *CashSessionHandler) Active(c *gin.Context) {
	s, err := h.uc.Active(c.Request.Context(), c.Query("business_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, false, gin.H{"session": s})
}

func (h *CashSessionHandler) Summary(c *gin.Context) {
	summary, err := h.uc.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, false, gin.H{"summary": summary})
}

func (h *CashSessionHandler) Close(c *gin.Context) {
	var req dto.CloseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.SessionID = c.Param("id")

	s, err := h.uc.Close(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("close cash session failed", zap.String("session_id", req.SessionID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, false, gin.H{"session": s})
}
