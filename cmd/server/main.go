/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the weighbridge quota engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment (.env honored)
  2. Initialize structured logging
  3. Initialize SQLite store
  4. Wire the upstream gateway when UPSTREAM_BASE_URL is set
  5. Build the synchronizer, saver, ledger and reconcile sweeper
  6. Configure HTTP router
  7. Start server with graceful shutdown

CONFIGURATION (environment):
  APP_PORT                 HTTP server port (default: 8080)
  DB_PATH                  SQLite database path (default: weighbridge.db)
                           Use ":memory:" for an in-memory database
  CORS_ORIGIN              Allowed CORS origin (default: *)
  UPSTREAM_BASE_URL        Remote logistics service; empty runs standalone
  UPSTREAM_TOKEN           Bearer token for the upstream service
  RECONCILE_CRON_SCHEDULE  Divergence sweep schedule (default: hourly)
  RECONCILE_ENABLED        Run the sweep scheduler (default: true)
  DEBUG                    Verbose development logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reconcile scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - internal/config/config.go: Environment parsing
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quayops/weighbridge-engine/api"
	"github.com/quayops/weighbridge-engine/gateway"
	"github.com/quayops/weighbridge-engine/internal/config"
	"github.com/quayops/weighbridge-engine/pkg/logger"
	"github.com/quayops/weighbridge-engine/quota"
	"github.com/quayops/weighbridge-engine/reconcile"
	"github.com/quayops/weighbridge-engine/store/sqlite"
	"github.com/quayops/weighbridge-engine/weighing"
)

func main() {
	envFile := flag.String("env", "", "path to an env file, defaults to .env when present")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	log := logger.Must(logger.New(cfg.Debug))
	defer log.Sync()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// The upstream gateway is optional. Without it the local store is
	// authoritative and saves never leave the machine.
	var upstream weighing.Upstream
	var remote api.Remote
	if cfg.Upstream.BaseURL != "" {
		client := gateway.NewClient(cfg.Upstream, logger.Named(log, "gateway"))
		upstream = client
		remote = client
		log.Info("upstream gateway enabled", zap.String("base_url", cfg.Upstream.BaseURL))
	} else {
		log.Info("running standalone, no upstream configured")
	}

	sync := weighing.NewSynchronizer(store, logger.Named(log, "sync"))
	saver := weighing.NewSaver(store, sync, upstream, logger.Named(log, "saver"))
	ledger := quota.NewLedger(store, logger.Named(log, "ledger"))
	sweeper := reconcile.NewSweeper(store, logger.Named(log, "reconcile"))

	if cfg.Reconcile.Enabled {
		if err := sweeper.Start(cfg.Reconcile.CronSchedule); err != nil {
			log.Fatal("failed to start reconcile scheduler", zap.Error(err))
		}
		defer sweeper.Stop()
	}

	handler := api.NewHandler(store, ledger, saver, sweeper, remote, logger.Named(log, "api"))
	router := api.NewRouter(handler, cfg.Server.AllowedCORS)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
