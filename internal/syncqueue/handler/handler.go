package handler

import (
	"net/http"
	"strings"

	"github.com/fekuna/omnipos-offline-sync/internal/httpserver/response"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue"
	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	uc     syncqueue.UseCase
	logger logger.ZapLogger
}

func NewSyncHandler(uc syncqueue.UseCase, log logger.ZapLogger) *SyncHandler {
	return &SyncHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *SyncHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/sync")
	g.GET("/queue", h.ListQueue)
	g.POST("/drain", h.Drain)
	g.POST("/queue/:id/retry", h.Retry)
	g.DELETE("/queue/:id", h.Discard)
}

func (h *SyncHandler) ListQueue(c *gin.Context) {
	status := model.QueueStatus(strings.ToUpper(c.Query("status")))
	switch status {
	case "", model.QueueStatusPending, model.QueueStatusSyncing, model.QueueStatusError:
	default:
		response.BadRequest(c, "status must be PENDING, SYNCING or ERROR")
		return
	}

	entries, err := h.uc.ListByStatus(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, false, gin.H{"entries": entries, "total": len(entries)})
}

func (h *SyncHandler) Drain(c *gin.Context) {
	res, err := h.uc.Drain(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Skipped, gin.H{"result": res})
}

func (h *SyncHandler) Retry(c *gin.Context) {
	if err := h.uc.Retry(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, false, nil)
}

func (h *SyncHandler) Discard(c *gin.Context) {
	if err := h.uc.Discard(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, false, nil)
}
