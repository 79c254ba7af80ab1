package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/moviehub/backend/internal/catalogsync"
	"github.com/moviehub/backend/internal/config"
	"github.com/moviehub/backend/internal/db"
	"github.com/moviehub/backend/internal/httpserver"
	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/posters"
	"github.com/moviehub/backend/internal/repositories"
	"github.com/moviehub/backend/internal/storage"
)

// parseSyncFlags reads `sync [--genres-only] [--import-popular-pages N] [--overwrite]`.
func parseSyncFlags(args []string, output io.Writer) (catalogsync.Options, error) {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(output)

	var opts catalogsync.Options
	fs.BoolVar(&opts.GenresOnly, "genres-only", false, "only sync the genre taxonomy")
	fs.IntVar(&opts.PopularPages, "import-popular-pages", 0, "number of popular movie pages to import")
	fs.BoolVar(&opts.Overwrite, "overwrite", false, "update movies that already exist locally")

	if err := fs.Parse(args); err != nil {
		return catalogsync.Options{}, err
	}
	if fs.NArg() > 0 {
		return catalogsync.Options{}, fmt.Errorf("unexpected sync arguments: %v", fs.Args())
	}
	return opts, nil
}

func runSync(ctx context.Context, args []string) error {
	opts, err := parseSyncFlags(args, flag.CommandLine.Output())
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	genres := repositories.NewPostgresGenreRepository(pool)
	movies := repositories.NewPostgresMovieRepository(pool)

	var queue catalogsync.PosterQueue
	var mirror *posters.Mirror
	if cfg.PosterStore.Enabled() {
		store, err := storage.NewS3Storage(ctx, cfg.PosterStore)
		if err != nil {
			return err
		}
		mirror = posters.NewMirror(store, movies, posters.Config{Workers: cfg.PosterWorkers}, logger)
		queue = mirror
	}

	syncer := catalogsync.NewSyncer(newTMDBClient(cfg.TMDB).Uncached(), genres, movies, queue)
	report, runErr := syncer.Run(ctx, opts)

	if mirror != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		if err := mirror.Shutdown(shutdownCtx); err != nil {
			logger.Warn("poster mirror shutdown", "error", err)
		}
		cancel()
	}

	fmt.Printf("genres: %d created, %d updated\n", report.GenresCreated, report.GenresUpdated)
	if !opts.GenresOnly && opts.PopularPages > 0 {
		fmt.Printf("movies: %d imported, %d skipped, %d pages failed, %d posters queued\n",
			report.MoviesImported, report.MoviesSkipped, report.PagesFailed, report.PostersQueued)
	}
	return runErr
}
