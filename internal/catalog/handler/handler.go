package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/catalog"
	"github.com/fekuna/omnipos-offline-sync/internal/catalog/dto"
	"github.com/fekuna/omnipos-offline-sync/internal/httpserver/response"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	uc     catalog.UseCase
	logger logger.ZapLogger
}

func NewCatalogHandler(uc catalog.UseCase, log logger.ZapLogger) *CatalogHandler {
	return &CatalogHandler{uc: uc, logger: log}
}

func (h *CatalogHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/catalog")
	g.GET("/items", h.Search)
	g.POST("/refresh", h.Refresh)
}

func (h *CatalogHandler) Search(c *gin.Context) {
	input := &dto.SearchInput{
		Query:      c.Query("q"),
		ItemType:   model.ItemType(strings.ToUpper(c.Query("type"))),
		LocationID: c.Query("business_id"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			response.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		input.Limit = limit
	}

	items, err := h.uc.Search(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, false, gin.H{"items": items, "total": len(items)})
}

func (h *CatalogHandler) Refresh(c *gin.Context) {
	actor := auth.GetActor(c.Request.Context())
	locationID := c.DefaultQuery("business_id", actor.LocationID)

	res, err := h.uc.Refresh(c.Request.Context(), actor.TenantID, locationID)
	if err != nil {
		h.logger.Warn("catalog refresh failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, false, gin.H{"result": res})
}
