// Package api serves labyard over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/labyard/internal/analysis"
	"github.com/zulandar/labyard/internal/catalog"
	"github.com/zulandar/labyard/internal/metrics"
	"github.com/zulandar/labyard/internal/qrevent"
	"github.com/zulandar/labyard/internal/requirement"
	"github.com/zulandar/labyard/internal/sample"
	"github.com/zulandar/labyard/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services are the entity services the routes call into.
type Services struct {
	Requirements *requirement.Service
	Samples      *sample.Service
	Analyses     *analysis.Service
	Storage      *storage.Service
	QR           *qrevent.Service
	Catalog      *catalog.Service
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB       *gorm.DB
	Services Services
	Secret   string
	Logger   *zap.Logger
	Port     int
	Out      io.Writer
}

// NewRouter builds the gin engine with middleware and every route registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("api: jwt secret is required")
	}
	s := opts.Services
	if s.Requirements == nil || s.Samples == nil || s.Analyses == nil || s.Storage == nil || s.QR == nil || s.Catalog == nil {
		return nil, fmt.Errorf("api: every service is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Logger(log), Metrics())

	registerRoutes(router, opts)
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
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

func registerRoutes(router *gin.Engine, opts StartOpts) {
	s := opts.Services

	router.GET("/healthz", handleHealth(opts.DB))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api", JWTAuth(opts.Secret))
	registerRequirementRoutes(api.Group("/requirements"), s.Requirements)
	registerSampleRoutes(api.Group("/samples"), s.Samples)
	registerAnalysisRoutes(api.Group("/analyses"), s.Analyses)
	registerStorageRoutes(api.Group("/storage"), s.Storage)
	registerQRRoutes(api.Group("/qr"), s.QR)
	registerCatalogRoutes(api.Group("/catalog"), s.Catalog)
	registerDashboardRoutes(api.Group("/dashboard"), opts.DB)
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
