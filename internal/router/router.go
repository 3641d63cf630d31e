package router

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jgirmay/cardstudy/internal/config"
	"github.com/jgirmay/cardstudy/internal/database"
	"github.com/jgirmay/cardstudy/internal/metrics"
	"github.com/jgirmay/cardstudy/internal/middleware"
	"github.com/jgirmay/cardstudy/pkg/study"
)

var serverStartTime = time.Now()

// Setup configures and returns the HTTP engine.
func Setup(cfg *config.Config, db *database.Pool, studyRouter *study.Router, httpMetrics *metrics.HTTPMetricsRegistry, businessMetrics *metrics.BusinessMetricsRegistry) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())
	engine.Use(middleware.SecurityHeaders())
	engine.Use(middleware.MetricsMiddleware(httpMetrics))

	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORSOrigins)
	engine.Use(corsMiddleware.Handler())

	engine.GET("/health", healthHandler(db))

	gatherers := prometheus.Gatherers{httpMetrics.GetPrometheusRegistry(), businessMetrics.GetPrometheusRegistry()}
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{EnableOpenMetrics: true})))

	apiGroup := engine.Group("/api")
	studyRouter.RegisterRoutes(apiGroup)

	return engine
}

// healthHandler reports process uptime and database reachability.
func healthHandler(db *database.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		statusCode := http.StatusOK

		if err := db.HealthCheck(); err != nil {
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, gin.H{
			"status":     status,
			"go_version": runtime.Version(),
			"uptime":     time.Since(serverStartTime).String(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
		})
	}
}
