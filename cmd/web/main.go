package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/steemit/postboard/internal/client"
	"github.com/steemit/postboard/internal/web"
	"github.com/steemit/postboard/pkg/config"
	"github.com/steemit/postboard/pkg/logging"
	"github.com/steemit/postboard/pkg/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Postboard web frontend", zap.String("api_url", cfg.Web.APIURL))

	// the API server owns the metrics port
	cfg.Telemetry.PrometheusEnabled = false
	cfg.Telemetry.ServiceName += "-web"
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	apiClient := client.New(&cfg.Web)

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), cfg.Web.APITimeout)
	if _, err := apiClient.Health(healthCtx); err != nil {
		logger.Warn("API is not answering yet", zap.Error(err))
	}
	cancelHealth()

	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine, err := web.NewEngine(web.NewHandler(apiClient), cfg.Web.SessionSecret)
	if err != nil {
		logger.Fatal("Failed to load templates", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.WebAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Web server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Web server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Web server forced to shutdown", zap.Error(err))
	}

	logger.Info("Web server exited")
}
