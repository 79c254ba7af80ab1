package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/catalog"
	"github.com/moviehub/backend/internal/config"
	"github.com/moviehub/backend/internal/db"
	"github.com/moviehub/backend/internal/handlers"
	"github.com/moviehub/backend/internal/middleware"
	"github.com/moviehub/backend/internal/repositories"
	"github.com/moviehub/backend/internal/reviews"
	"github.com/moviehub/backend/internal/tmdb"
	"github.com/moviehub/backend/internal/validation"
	"github.com/moviehub/backend/internal/watchlist"
	"github.com/moviehub/backend/internal/web"
)

// pingPool is a connection pool that can also report liveness for /healthz.
type pingPool interface {
	db.Pool
	Ping(ctx context.Context) error
}

// rateLimiterTTLFactor controls how many windows an idle client's limiter survives.
const rateLimiterTTLFactor = 10

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(pool pingPool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("load templates: %w", err)
	}

	metadata := newTMDBClient(cfg.TMDB)

	users := repositories.NewPostgresUserRepository(pool)
	genres := repositories.NewPostgresGenreRepository(pool)
	movies := repositories.NewPostgresMovieRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)

	var limiter middleware.RateLimiter
	if cfg.RateLimit.Requests > 0 && cfg.RateLimit.Window > 0 {
		limiter = middleware.NewClientRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, cfg.RateLimit.Window*rateLimiterTTLFactor)
	}

	return handlers.Dependencies{
		Logger:       logger,
		Catalog:      catalog.NewService(metadata, movies, genres),
		Watchlist:    watchlist.NewService(repositories.NewPostgresWatchlistRepository(pool), nil),
		Reviews:      reviews.NewService(repositories.NewPostgresReviewRepository(pool), nil),
		Users:        users,
		Sessions:     auth.NewManager(cfg.SessionTTL, sessionStore),
		Genres:       genres,
		Movies:       movies,
		DB:           pool,
		Renderer:     renderer,
		Static:       web.Static(),
		Validator:    validation.New(),
		RateLimiter:  limiter,
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionTTL,
	}, nil
}

func newTMDBClient(cfg config.TMDBConfig) *tmdb.Client {
	return tmdb.NewClient(tmdb.Options{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Language: cfg.Language,
		Timeout:  cfg.Timeout,
		Cache:    tmdb.NewCache(cfg.CacheTTL, nil),
	})
}
