package httpserver

import (
	"net/http"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/auth"
	"github.com/fekuna/omnipos-offline-sync/internal/connectivity"
	"github.com/fekuna/omnipos-offline-sync/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registrar is implemented by every HTTP handler in the agent.
type Registrar interface {
	Register(rg *gin.RouterGroup)
}

type Config struct {
	AllowedOrigins  []string
	DefaultTenant   string
	DefaultLocation string
}

// NewRouter mounts handlers under /api/v1 next to /healthz and /metrics.
func NewRouter(cfg Config, conn connectivity.Checker, m *metrics.Metrics, gatherer prometheus.Gatherer, handlers ...Registrar) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Tenant-ID", "X-User-ID", "X-User-Role", "X-Location-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(m.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		online := conn.IsOnline()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": online, "offline": !online})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	api.Use(auth.Middleware(cfg.DefaultTenant, cfg.DefaultLocation))
	for _, h := range handlers {
		h.Register(api)
	}
	return r
}
