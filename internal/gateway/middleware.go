package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/projectdiscovery/gologger"
)

type contextKey string

const TraceIDKey contextKey = "trace_id"

// CORS adds the cross-origin headers to every response, error responses included
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Max-Age", "86400")
		c.Next()
	}
}

// RequestContext tags each request with a short trace id and logs its completion.
// Only method, path, status and latency are logged.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := uuid.New().String()[:8]
		start := time.Now()

		c.Set(string(TraceIDKey), traceID)
		ctx := context.WithValue(c.Request.Context(), TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start)
		gologger.Info().Msgf("[%s] %s %s -> %d (%.1fms)",
			traceID,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			float64(duration.Microseconds())/1000.0,
		)
	}
}

// Recovery turns a panic in a handler into a 500 JSON response
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				traceID, _ := c.Get(string(TraceIDKey))
				gologger.Error().Msgf("[%v] Panic recovered on %s: %s", traceID, c.Request.URL.Path, fmt.Sprintf("%v", err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal gateway error"})
			}
		}()
		c.Next()
	}
}
