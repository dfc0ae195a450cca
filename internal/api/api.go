// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/api/handlers"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/api/middleware"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/pipeline"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/service"
)

type Services struct {
	ReorderService *service.ReorderService
	Defaults       handlers.ScenarioDefaults

	// Runs and RunSource enable POST /api/v1/runs when both are set.
	Runs      *pipeline.Orchestrator
	RunSource pipeline.DemandSource

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.Gatherer != nil {
			router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(services.Gatherer, promhttp.HandlerOpts{})))
		}

		if services.ReorderService != nil {
			reorderHandler := handlers.NewReorderHandler(services.ReorderService, services.Defaults)
			apiGroup.GET("/skus", reorderHandler.GetSKUs)
			skuGroup := apiGroup.Group("/skus/:sku")
			{
				skuGroup.GET("/forecast", reorderHandler.GetForecast)
				skuGroup.GET("/backtest", reorderHandler.GetBacktest)
				skuGroup.GET("/backtest/windows", reorderHandler.CompareWindows)
				skuGroup.GET("/policy", reorderHandler.GetPolicy)
				skuGroup.GET("/scenarios", reorderHandler.GetScenarios)
				skuGroup.GET("/decisions", reorderHandler.GetDecisions)
			}

			uploadGroup := apiGroup.Group("/upload")
			{
				uploadGroup.POST("/demand", reorderHandler.UploadDemand)
				uploadGroup.POST("/on_hand", reorderHandler.UploadOnHand)
			}
		}

		if services.Runs != nil && services.RunSource != nil {
			runHandler := handlers.NewRunHandler(services.Runs, services.RunSource)
			apiGroup.POST("/runs", runHandler.StartRun)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
