// Package api serves the trip planner over a JSON REST interface.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds the HTTP-facing settings of the API.
type RouterConfig struct {
	AllowedOrigins []string
	// RequestTimeout bounds a single planning request. Zero disables it.
	RequestTimeout time.Duration
}

// NewRouter wires the API handlers into a gin engine. The engine is an
// http.Handler and can be mounted on any mux.
func NewRouter(cfg RouterConfig, handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
	)
	if cfg.RequestTimeout > 0 {
		router.Use(timeoutMiddleware(cfg.RequestTimeout))
	}

	router.GET("/get-route", handler.GetRoute)
	router.GET("/estimate", handler.Estimate)
	router.GET("/geocode", handler.Geocode)
	router.GET("/factors", handler.Factors)
	router.GET("/version", handler.Version)

	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "Not found", nil))
	})

	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
