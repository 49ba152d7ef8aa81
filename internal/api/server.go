// Package api serves the workyard JSON API over gin.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/governance"
	"github.com/zulandar/workyard/internal/insights"
	"github.com/zulandar/workyard/internal/logging"
	"github.com/zulandar/workyard/internal/weights"
)

// Deps are the services behind the API. Advisor and Events may be nil;
// the insights endpoint then answers 503 and the event stream only
// sends heartbeats.
type Deps struct {
	DB       *gorm.DB
	Weights  *weights.Store
	Capacity *capacity.Service
	Machine  *governance.Machine
	Advisor  *insights.Advisor
	Events   *Broker
	Log      *zap.Logger
}

func (d Deps) validate() error {
	switch {
	case d.DB == nil:
		return fmt.Errorf("api: db is required")
	case d.Weights == nil:
		return fmt.Errorf("api: weights store is required")
	case d.Capacity == nil:
		return fmt.Errorf("api: capacity service is required")
	case d.Machine == nil:
		return fmt.Errorf("api: governance machine is required")
	}
	return nil
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Deps Deps
	Port int
	Out  io.Writer
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) (*gin.Engine, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	d.Log = logging.OrNop(d.Log)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.Log))
	registerRoutes(router, d)
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts.Deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
