// Package catalogsync imports the vendor genre taxonomy and popular movies into
// the local catalog.
package catalogsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/tmdb"
	"github.com/moviehub/backend/internal/validation"
)

// Source is the part of the metadata client the sync reads from. It should not
// be cache-backed.
type Source interface {
	Genres(ctx context.Context) ([]tmdb.Genre, error)
	PopularMovies(ctx context.Context, page int) (tmdb.MoviePage, error)
}

// GenreWriter upserts the whole genre taxonomy in one transaction.
type GenreWriter interface {
	SyncGenres(ctx context.Context, genres []models.GenreImport) (models.GenreSyncResult, error)
}

// MovieWriter writes one page of movies in one transaction. With overwrite
// unset, existing movies are left untouched; genre links are added either way.
type MovieWriter interface {
	ImportPage(ctx context.Context, movies []models.MovieImport, overwrite bool) (models.ImportResult, error)
}

// PosterQueue schedules poster mirroring for written movies.
type PosterQueue interface {
	Enqueue(ctx context.Context, movie models.Movie) error
}

// Options controls a sync run.
type Options struct {
	GenresOnly   bool
	PopularPages int `json:"import_popular_pages" validate:"gte=0,lte=500"`
	Overwrite    bool
}

// Report summarises a sync run.
type Report struct {
	GenresCreated  int
	GenresUpdated  int
	MoviesImported int
	MoviesSkipped  int
	PagesFailed    int
	PostersQueued  int
}

// Syncer runs the two-phase catalog import.
type Syncer struct {
	source    Source
	genres    GenreWriter
	movies    MovieWriter
	posters   PosterQueue
	validator *validation.Validator
}

// NewSyncer constructs a Syncer. posters may be nil to skip mirroring.
func NewSyncer(source Source, genres GenreWriter, movies MovieWriter, posters PosterQueue) *Syncer {
	return &Syncer{
		source:    source,
		genres:    genres,
		movies:    movies,
		posters:   posters,
		validator: validation.New(),
	}
}

// Run syncs genres, then imports the requested number of popular pages. A genre
// failure aborts the run; a failed movie page is logged and skipped.
func (s *Syncer) Run(ctx context.Context, opts Options) (Report, error) {
	if err := s.validator.Validate(opts); err != nil {
		return Report{}, err
	}

	var report Report
	if err := s.syncGenres(ctx, &report); err != nil {
		return report, err
	}

	if opts.GenresOnly || opts.PopularPages <= 0 {
		return report, nil
	}

	for page := 1; page <= opts.PopularPages; page++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.importPage(ctx, page, opts.Overwrite, &report)
	}

	return report, nil
}

func (s *Syncer) syncGenres(ctx context.Context, report *Report) error {
	ctx, span := logging.StartSpan(ctx, "sync.genres")
	defer span.End()

	vendor, err := s.source.Genres(ctx)
	if err != nil {
		span.Fail(err)
		return fmt.Errorf("fetch genres: %w", err)
	}

	imports := make([]models.GenreImport, 0, len(vendor))
	for _, g := range vendor {
		name := strings.TrimSpace(g.Name)
		if g.ID <= 0 || name == "" {
			continue
		}
		imports = append(imports, models.GenreImport{ExternalID: g.ID, Name: name})
	}

	result, err := s.genres.SyncGenres(ctx, imports)
	if err != nil {
		span.Fail(err)
		return fmt.Errorf("store genres: %w", err)
	}

	report.GenresCreated = result.Created
	report.GenresUpdated = result.Updated
	logging.FromContext(ctx).Info("genres synced",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
	)
	return nil
}

func (s *Syncer) importPage(ctx context.Context, page int, overwrite bool, report *Report) {
	ctx, span := logging.StartSpan(ctx, "sync.popular_page", slog.Int("page", page))
	defer span.End()
	logger := logging.FromContext(ctx)

	results, err := s.source.PopularMovies(ctx, page)
	if err != nil {
		report.PagesFailed++
		logger.Error("fetch popular page failed", slog.String("error", err.Error()))
		return
	}

	imports := make([]models.MovieImport, 0, len(results.Results))
	for _, r := range results.Results {
		if movie, ok := toImport(r); ok {
			imports = append(imports, movie)
		}
	}

	written, err := s.movies.ImportPage(ctx, imports, overwrite)
	if err != nil {
		report.PagesFailed++
		logger.Error("store popular page failed", slog.String("error", err.Error()))
		return
	}
	report.MoviesImported += written.Imported
	report.MoviesSkipped += written.Skipped

	if s.posters == nil {
		return
	}
	for _, movie := range written.Written {
		if movie.PosterPath == nil || *movie.PosterPath == "" {
			continue
		}
		if err := s.posters.Enqueue(ctx, movie); err != nil {
			logger.Warn("enqueue poster mirror failed", slog.Int64("movie_id", movie.ID), slog.String("error", err.Error()))
			continue
		}
		report.PostersQueued++
	}
}

func toImport(r tmdb.MovieResult) (models.MovieImport, bool) {
	if r.ID == nil || *r.ID <= 0 {
		return models.MovieImport{}, false
	}

	title := str(r.Title)
	if title == "" {
		title = str(r.OriginalTitle)
	}

	var released *time.Time
	if raw := str(r.ReleaseDate); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			released = &t
		}
	}

	return models.MovieImport{
		ExternalID:       *r.ID,
		Title:            title,
		OriginalTitle:    str(r.OriginalTitle),
		Overview:         str(r.Overview),
		PosterPath:       nonEmpty(r.PosterPath),
		BackdropPath:     nonEmpty(r.BackdropPath),
		ReleaseDate:      released,
		VoteAverage:      r.VoteAverage,
		VoteCount:        r.VoteCount,
		Popularity:       r.Popularity,
		GenreExternalIDs: r.GenreIDs,
	}, true
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
