/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fuel logbook server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the logger
  3. Open the configured document store
  4. Create the logbook and API handler
  5. Start the reconcile scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (default: ./config.yaml if present)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Stop the scheduler and close the store
  4. Exit

EXAMPLES:
  # Run with the defaults (SQLite file in the working directory)
  ./server

  # Share state between instances through Redis
  FUELBOOK_STORE_DRIVER=redis FUELBOOK_STORE_REDIS_URL=redis://cache:6379/0 ./server

  # Throwaway in-memory logbook on another port
  FUELBOOK_STORE_DRIVER=memory FUELBOOK_SERVER_PORT=3000 ./server

SEE ALSO:
  - config/config.go: Settings and their FUELBOOK_* overrides
  - api/server.go: Router configuration
  - logbook/logbook.go: Persistence and change feed
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/fleetfuel/logbook/api"
	"github.com/fleetfuel/logbook/config"
	"github.com/fleetfuel/logbook/fuel"
	"github.com/fleetfuel/logbook/fuel/store"
	"github.com/fleetfuel/logbook/logbook"
	"github.com/fleetfuel/logbook/logging"
	"github.com/fleetfuel/logbook/store/redis"
	"github.com/fleetfuel/logbook/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config was validated on load; these cannot fail here.
	rates, _ := cfg.FuelRates()
	caps, _ := cfg.Capacities()
	dates, _ := cfg.DateParser()

	kv, watcher, closer, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closer.Close()

	book := logbook.New(kv, logbook.Options{
		Rates:      rates,
		Capacities: caps,
		Dates:      dates,
		Logger:     logger,
	})
	if watcher != nil {
		if err := book.Follow(ctx, watcher); err != nil {
			return err
		}
	}

	// Bring the stored status in line with whatever the logs hold now.
	if _, err := book.Recompute(ctx); err != nil {
		logging.LogError(logger, "main", "initialRecompute", nil, err)
	}

	scheduler := api.NewReconcileScheduler(book, logger, cfg.Store.RecomputeInterval)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(book, dates, logger)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":  server.Addr,
			"store": cfg.Store.Driver,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// openStore opens the configured backend. The watcher is nil for backends
// without a cross-process change feed.
func openStore(ctx context.Context, cfg config.StoreConfig) (fuel.KV, fuel.Watcher, io.Closer, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), nil, io.NopCloser(nil), nil
	case "sqlite":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil, s, nil
	case "redis":
		s, err := redis.New(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return s, s, s, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
