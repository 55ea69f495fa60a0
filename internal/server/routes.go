package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/metrics"
)

func (s *Server) registerRoutes() {
	s.echo.Use(requestLogger())
	s.echo.Use(middleware.Recover())
	if s.opts.Metrics != nil {
		s.echo.Use(s.opts.Metrics.Middleware())
	}
	if s.opts.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(s.opts.BodyLimit))
	}

	s.echo.GET("/healthz", s.handleHealth)
	if s.opts.Registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.opts.Registry)))
	}

	api := s.echo.Group("/api")
	api.POST("/analyze", s.handleAnalyze)
	api.GET("/labels", s.handleLabels)
	api.GET("/chart.png", s.handleChart)
	api.GET("/history", s.handleHistoryList)
	api.GET("/history/:id", s.handleHistoryGet)
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			kv := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				kv = append(kv, "error", v.Error)
			}
			logger.Infow("[server] 请求", kv...)
			return nil
		},
	})
}
