package api

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tcgscan/collection-engine/internal/api/handlers"
	"github.com/tcgscan/collection-engine/internal/metrics"
	"github.com/tcgscan/collection-engine/internal/services"
)

func SetupRouter(store *services.CollectionStore, catalog *services.CatalogFetcher, worker *services.SyncWorker, games *services.GameState) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8081"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false // Explicitly set
	router.Use(cors.New(config))

	router.Use(httpMetrics())

	// Initialize handlers
	collectionHandler := handlers.NewCollectionHandler(store, catalog, games)
	catalogHandler := handlers.NewCatalogHandler(catalog, games)

	// API routes
	api := router.Group("/api")
	{
		collection := api.Group("/collection")
		{
			collection.GET("", collectionHandler.GetCollection)
			collection.GET("/view", collectionHandler.GetView)
			collection.POST("/add", collectionHandler.AddCard)
			collection.POST("/remove", collectionHandler.RemoveCard)
			collection.PUT("/quantity", collectionHandler.UpdateQuantity)
			collection.POST("/refresh", collectionHandler.Refresh)
		}

		api.PUT("/game", collectionHandler.SwitchGame)

		cards := api.Group("/cards")
		{
			cards.GET("", catalogHandler.GetCards)
			cards.GET("/expansions", catalogHandler.GetExpansions)
		}

		api.GET("/sync/status", func(c *gin.Context) {
			c.JSON(200, worker.Status())
		})
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// httpMetrics records request counts and latency per route.
func httpMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
