package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	gin.SetMode(s.config.GinMode)
	s.router = gin.New()

	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.maxBodySizeMiddleware())
	s.router.Use(s.metricsMiddleware())

	s.router.GET("/health", s.handler.Health)
	s.router.GET("/models", s.handler.ListModels)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	predict := s.router.Group("/predict")
	{
		predict.POST("/file", s.handler.PredictFromFile)
		predict.POST("/url", s.handler.PredictFromURL)
	}
}
