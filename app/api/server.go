package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Health and status endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if apiAccessKey != "" {
		api.Use(authMiddleware(apiAccessKey))
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled (API_ACCESS_KEY not set)")
	}

	{
		api.GET("/projects", handler.ListProjects)
		api.POST("/projects", handler.CreateProject)
		api.GET("/projects/:id", handler.GetProject)
		api.DELETE("/projects/:id", handler.DeleteProject)
		api.PUT("/projects/:id/active", handler.SetProjectActive)

		api.GET("/projects/:id/keywords", handler.ListKeywords)
		api.POST("/projects/:id/keywords", handler.AddKeywords)
		api.DELETE("/keywords/:id", handler.DeleteKeyword)
		api.PUT("/keywords/:id/active", handler.SetKeywordActive)

		api.GET("/tags", handler.ListTags)
		api.POST("/keywords/:id/tags", handler.TagKeyword)
		api.DELETE("/keywords/:id/tags/:tagId", handler.UntagKeyword)

		api.POST("/keywords/:id/fetch", handler.FetchKeyword)
		api.GET("/keywords/:id/history", handler.GetRankHistory)
		api.GET("/keywords/:id/impact", handler.GetImpact)
		api.GET("/observations/:id/payload", handler.GetObservationPayload)

		api.GET("/projects/:id/sov", handler.GetShareOfVoice)
		api.GET("/projects/:id/ctr", handler.GetCTRCurve)

		api.POST("/projects/:id/pull", handler.TriggerPull)
		api.GET("/pulls", handler.ListPulls)
		api.POST("/pulls/:id/run", handler.RunPullNow)
		api.POST("/pulls/:id/run-delayed", handler.RunPullDelayed)

		api.PUT("/projects/:id/gsc-credentials", handler.SetGSCCredentials)
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "RankPulse",
			"description": "Keyword rank tracking with scheduled pulls, CTR modeling, and share-of-voice reporting",
			"endpoints": map[string]string{
				"health":   "/health",
				"stats":    "/stats",
				"metrics":  "/metrics",
				"projects": "/api/projects",
				"pulls":    "/api/pulls",
			},
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
