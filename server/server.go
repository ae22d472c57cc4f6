package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pointstream/api"
	"pointstream/config"
	"pointstream/database"
	"pointstream/generator"
	"pointstream/handlers"
	"pointstream/metrics"
	"pointstream/middleware"

	"github.com/apex/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the stream endpoint and its middleware. recorder may be nil.
func NewRouter(cfg *config.Config, recorder handlers.StreamRecorder) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.GzipEnabled {
		router.Use(gzip.Gzip(gzip.DefaultCompression))
	}
	if cfg.MetricsEnabled {
		metrics.Register()
		router.Use(metrics.Middleware())
		router.GET(api.EndPointMetrics, gin.WrapH(promhttp.Handler()))
	}

	h := handlers.NewHandlers(generator.New(cfg.ChunkPoints), cfg.DefaultCount, recorder)

	router.GET(api.EndPointHealth, h.HealthCheck)

	data := router.Group("/")
	data.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, time.Minute))
	{
		data.GET(api.EndPointData, h.GetData)
	}

	return router
}

// StartService runs the stream server until SIGINT or SIGTERM.
func StartService(cfg *config.Config) error {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var recorder handlers.StreamRecorder
	if cfg.DBEnabled() {
		db, err := database.NewDatabase(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureTables(context.Background()); err != nil {
			return err
		}
		recorder = db
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: NewRouter(cfg, recorder),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server is running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("Server exited")
	return nil
}
