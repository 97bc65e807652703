// Package httpapi exposes the engine over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/logging"
)

type RouterConfig struct {
	Service *engine.Service
	Logger  *logging.Logger
	// Debug keeps gin's debug mode and route dump.
	Debug bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthcheck", HealthCheck)

	h := NewLearnerHandler(log, cfg.Service)
	api := router.Group("/api/v1")
	{
		learner := api.Group("/learners/:id")
		learner.POST("/outcomes", h.SubmitOutcome)
		learner.GET("/risk", h.GetRiskProfile)
		learner.GET("/support", h.GetSupport)
		learner.POST("/support/request", h.RequestSupport)
		learner.POST("/level/reset", h.ResetLevel)
		learner.PUT("/skills", h.SetSkills)
		learner.GET("/levels", h.GetLevels)

		api.POST("/screen", h.Screen)
	}
	return router
}

// requestLogger logs one line per request. The learner path parameter is
// hashed by the logger.
func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if id := c.Param("id"); id != "" {
			kv = append(kv, "user_id", id)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request failed", append(kv, "errors", c.Errors.String())...)
			return
		}
		log.Debug("request", kv...)
	}
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log *logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
