package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/identity"
	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/metrics"
)

// ActorHeader carries the acting identity for mutating requests
const ActorHeader = "X-Actor"

// NewRouter builds the gin engine with health, metrics and the application API
func NewRouter(h *Handler, recorder *metrics.Recorder, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	if recorder != nil {
		r.Use(observe(recorder))
		r.GET("/metrics", gin.WrapH(recorder.Handler()))
	}
	r.Use(actorFromHeader())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h.RegisterRoutes(r.Group("/api"))
	return r
}

func actorFromHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := c.GetHeader(ActorHeader); actor != "" {
			c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), actor))
		}
		c.Next()
	}
}

// observe records request counts and latency by route template
func observe(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		recorder.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
