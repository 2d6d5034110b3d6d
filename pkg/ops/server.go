// Package ops runs the small HTTP listener each batch job exposes while it
// works: health for the scheduler, metrics for the scraper.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/willow/pkg/database"
)

// Server is the per-job ops listener.
type Server struct {
	echo   *echo.Echo
	logger ectologger.Logger
	port   string
}

// NewServer builds the listener with health and metrics routes registered.
func NewServer(db database.DB, logger ectologger.Logger, serviceName, port string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(otelecho.Middleware(serviceName))
	e.Use(requestLogger(logger))

	e.GET("/healthz", healthz(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{
		echo:   e,
		logger: logger,
		port:   port,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully. Intended
// to run in its own goroutine alongside the job.
func (s *Server) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("Ops listener shutdown failed")
		}
	}()

	if err := s.echo.Start(":" + s.port); err != nil && err != http.ErrServerClosed {
		s.logger.WithError(err).Error("Ops listener stopped")
	}
}

func healthz(db database.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := db.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"message": err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"latency": time.Since(start).String(),
		})
	}
}

func requestLogger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			logger.WithContext(req.Context()).WithFields(map[string]any{
				"method":        req.Method,
				"uri":           req.RequestURI,
				"status":        res.Status,
				"route":         c.Path(),
				"remote_ip":     c.RealIP(),
				"response_time": time.Since(start).String(),
			}).Debug("Request")

			return nil
		}
	}
}
