package server

import (
	"net/http"
	"time"

	"github.com/Brownie44l1/dogbreed-api/internal/core"
	"github.com/Brownie44l1/dogbreed-api/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartOverhead leaves room for form boundaries and headers around an upload.
const multipartOverhead = 1 << 20

func (s *Server) maxBodySizeMiddleware() gin.HandlerFunc {
	limit := s.config.MaxUploadBytes + multipartOverhead
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(core.HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(handlers.RequestIDKey, id)
		c.Header(core.HeaderRequestID, id)
		c.Next()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowOrigin := s.config.CORSAllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Expose-Headers", core.HeaderRequestID)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.ObserveHTTP(path, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
