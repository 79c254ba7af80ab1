package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/config"
	"github.com/moviehub/backend/internal/db"
	"github.com/moviehub/backend/internal/handlers"
	"github.com/moviehub/backend/internal/httpserver"
	"github.com/moviehub/backend/internal/logging"
)

// Run bootstraps the MovieHub backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, seed, sync, or createuser")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	case "sync":
		return runSync(ctx, args[1:])
	case "createuser":
		return runCreateUser(ctx, args[1:], os.Stdin)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()
	slog.SetDefault(logger)

	if cfg.TMDB.APIKey == "" {
		logger.Warn("TMDB_API_KEY is not set, live listings will fall back to the local catalog")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, err := buildDependencies(pool, cfg, logger)
	if err != nil {
		return err
	}

	if manager, ok := deps.Sessions.(*auth.Manager); ok {
		if purged, err := manager.PurgeExpired(ctx); err != nil {
			logger.Warn("purge expired sessions", "error", err)
		} else if purged > 0 {
			logger.Info("purged expired sessions", "count", purged)
		}
	}

	srv := httpserver.New(cfg.AppPort, handlers.NewRouter(deps))

	logger.Info("starting http server", "port", cfg.AppPort)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// resolveDir anchors a relative directory at the working directory.
func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}
