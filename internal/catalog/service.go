package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/tmdb"
)

const (
	// FallbackSize is how many local movies the home page shows when the
	// metadata API is unavailable.
	FallbackSize = 24
	// SuggestionLimit caps the number of search suggestions returned.
	SuggestionLimit = 8
)

// MetadataSource is the subset of the metadata client the catalog reads from.
type MetadataSource interface {
	PopularMovies(ctx context.Context, page int) (tmdb.MoviePage, error)
	SearchMovies(ctx context.Context, query string, page int) (tmdb.MoviePage, error)
	MovieDetails(ctx context.Context, id int64) (json.RawMessage, error)
	Person(ctx context.Context, id int64) (json.RawMessage, error)
	PersonCredits(ctx context.Context, id int64) (json.RawMessage, error)
}

// MovieStore provides the local movie listings. Paginated methods return the
// requested slice together with the total number of matching rows.
type MovieStore interface {
	Recent(ctx context.Context, limit int) ([]models.Movie, error)
	TopRated(ctx context.Context, limit, offset int) ([]models.Movie, int, error)
	Upcoming(ctx context.Context, from time.Time, limit, offset int) ([]models.Movie, int, error)
	ByGenre(ctx context.Context, genreID int64, limit, offset int) ([]models.Movie, int, error)
}

// GenreStore provides the local genre taxonomy.
type GenreStore interface {
	List(ctx context.Context, limit, offset int) ([]models.Genre, int, error)
	FindByID(ctx context.Context, id int64) (models.Genre, error)
	FindBySlug(ctx context.Context, slug string) (models.Genre, error)
}

// Listing is one page of normalized movies.
type Listing struct {
	Movies []MovieView
	Page   Page
	// Fallback is set when the listing was served from local data because the
	// metadata API failed.
	Fallback bool
}

// GenreListing is one page of movies within a genre.
type GenreListing struct {
	Genre  models.Genre
	Movies []MovieView
	Page   Page
}

// GenrePage is one page of the genre index.
type GenrePage struct {
	Genres []models.Genre
	Page   Page
}

// GenreRef identifies a genre by numeric id or slug.
type GenreRef struct {
	ID   int64
	Slug string
}

// Suggestion is the reduced search result used by the autocomplete endpoint.
type Suggestion struct {
	ID          *int64  `json:"id"`
	Title       *string `json:"title"`
	Overview    *string `json:"overview"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate *string `json:"release_date"`
}

// Service assembles catalog listings from the metadata API and local storage.
type Service struct {
	source MetadataSource
	movies MovieStore
	genres GenreStore
}

// NewService constructs a catalog Service.
func NewService(source MetadataSource, movies MovieStore, genres GenreStore) *Service {
	return &Service{source: source, movies: movies, genres: genres}
}

// Home returns a page of popular movies. Any upstream failure falls back to the
// most recently added local movies.
func (s *Service) Home(ctx context.Context, page int) (Listing, error) {
	page = max(page, 1)

	if s.source != nil {
		popular, err := s.source.PopularMovies(ctx, page)
		if err == nil {
			number := popular.Page
			if number < 1 {
				number = page
			}
			return Listing{
				Movies: NormalizeVendor(popular.Results),
				Page:   newPage(number, popular.TotalPages),
			}, nil
		}
		logging.FromContext(ctx).Warn("popular movies unavailable, serving local fallback", slog.String("error", err.Error()))
	}

	recent, err := s.movies.Recent(ctx, FallbackSize)
	if err != nil {
		return Listing{}, fmt.Errorf("load fallback movies: %w", err)
	}
	return Listing{
		Movies:   NormalizeLocal(recent),
		Page:     newPage(1, 1),
		Fallback: true,
	}, nil
}

// TopRated lists local movies by vote average, then vote count.
func (s *Service) TopRated(ctx context.Context, page int) (Listing, error) {
	movies, p, err := paginate(page, models.MoviesPerPage, func(limit, offset int) ([]models.Movie, int, error) {
		return s.movies.TopRated(ctx, limit, offset)
	})
	if err != nil {
		return Listing{}, fmt.Errorf("list top rated movies: %w", err)
	}
	return Listing{Movies: NormalizeLocal(movies), Page: p}, nil
}

// Upcoming lists local movies releasing on or after today, soonest first.
func (s *Service) Upcoming(ctx context.Context, page int, today time.Time) (Listing, error) {
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	movies, p, err := paginate(page, models.MoviesPerPage, func(limit, offset int) ([]models.Movie, int, error) {
		return s.movies.Upcoming(ctx, from, limit, offset)
	})
	if err != nil {
		return Listing{}, fmt.Errorf("list upcoming movies: %w", err)
	}
	return Listing{Movies: NormalizeLocal(movies), Page: p}, nil
}

// Genres lists local genres by name.
func (s *Service) Genres(ctx context.Context, page int) (GenrePage, error) {
	genres, p, err := paginate(page, models.GenresPerPage, func(limit, offset int) ([]models.Genre, int, error) {
		return s.genres.List(ctx, limit, offset)
	})
	if err != nil {
		return GenrePage{}, fmt.Errorf("list genres: %w", err)
	}
	return GenrePage{Genres: genres, Page: p}, nil
}

// GenreMovies resolves the genre by id, else by slug, and lists its movies.
func (s *Service) GenreMovies(ctx context.Context, ref GenreRef, page int) (GenreListing, error) {
	var (
		genre models.Genre
		err   error
	)
	switch {
	case ref.ID > 0:
		genre, err = s.genres.FindByID(ctx, ref.ID)
	case strings.TrimSpace(ref.Slug) != "":
		genre, err = s.genres.FindBySlug(ctx, strings.TrimSpace(ref.Slug))
	default:
		return GenreListing{}, ErrMissingGenre
	}
	if err != nil {
		return GenreListing{}, fmt.Errorf("resolve genre: %w", err)
	}

	movies, p, err := paginate(page, models.MoviesPerPage, func(limit, offset int) ([]models.Movie, int, error) {
		return s.movies.ByGenre(ctx, genre.ID, limit, offset)
	})
	if err != nil {
		return GenreListing{}, fmt.Errorf("list movies for genre %d: %w", genre.ID, err)
	}
	return GenreListing{Genre: genre, Movies: NormalizeLocal(movies), Page: p}, nil
}

// Suggestions returns up to SuggestionLimit search results for query. A blank
// query returns no results without calling upstream. On upstream failure the
// empty result is returned alongside the error.
func (s *Service) Suggestions(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" || s.source == nil {
		return []Suggestion{}, nil
	}

	results, err := s.source.SearchMovies(ctx, query, 1)
	if err != nil {
		return []Suggestion{}, err
	}

	limit := min(len(results.Results), SuggestionLimit)
	out := make([]Suggestion, 0, limit)
	for _, r := range results.Results[:limit] {
		out = append(out, Suggestion{
			ID:          r.ID,
			Title:       r.Title,
			Overview:    r.Overview,
			PosterPath:  r.PosterPath,
			ReleaseDate: r.ReleaseDate,
		})
	}
	return out, nil
}

// Search runs a full search. Upstream failures yield an empty listing.
func (s *Service) Search(ctx context.Context, query string, page int) Listing {
	page = max(page, 1)
	query = strings.TrimSpace(query)
	if query == "" || s.source == nil {
		return Listing{Movies: []MovieView{}, Page: newPage(1, 1)}
	}

	results, err := s.source.SearchMovies(ctx, query, page)
	if err != nil {
		logging.FromContext(ctx).Warn("search unavailable", slog.String("error", err.Error()))
		return Listing{Movies: []MovieView{}, Page: newPage(1, 1), Fallback: true}
	}
	return Listing{Movies: NormalizeVendor(results.Results), Page: newPage(page, results.TotalPages)}
}

// Movie returns the vendor movie document.
func (s *Service) Movie(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.source.MovieDetails(ctx, id)
}

// Person returns the vendor person document.
func (s *Service) Person(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.source.Person(ctx, id)
}

// PersonCredits returns the vendor combined credits for a person.
func (s *Service) PersonCredits(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.source.PersonCredits(ctx, id)
}

// paginate loads the requested page, stepping back to the last page when the
// requested one is past the end.
func paginate[T any](page, perPage int, load func(limit, offset int) ([]T, int, error)) ([]T, Page, error) {
	page = max(page, 1)

	items, total, err := load(perPage, (page-1)*perPage)
	if err != nil {
		return nil, Page{}, err
	}

	last := pagesFor(total, perPage)
	if page > last {
		page = last
		items, total, err = load(perPage, (page-1)*perPage)
		if err != nil {
			return nil, Page{}, err
		}
		last = pagesFor(total, perPage)
	}

	return items, newPage(page, last), nil
}
