package handlers

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/catalog"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/reviews"
	"github.com/moviehub/backend/internal/watchlist"
)

// CatalogService serves movie listings and proxied metadata documents.
type CatalogService interface {
	Home(ctx context.Context, page int) (catalog.Listing, error)
	TopRated(ctx context.Context, page int) (catalog.Listing, error)
	Upcoming(ctx context.Context, page int, today time.Time) (catalog.Listing, error)
	Genres(ctx context.Context, page int) (catalog.GenrePage, error)
	GenreMovies(ctx context.Context, ref catalog.GenreRef, page int) (catalog.GenreListing, error)
	Suggestions(ctx context.Context, query string) ([]catalog.Suggestion, error)
	Search(ctx context.Context, query string, page int) catalog.Listing
	Movie(ctx context.Context, id int64) (json.RawMessage, error)
	Person(ctx context.Context, id int64) (json.RawMessage, error)
	PersonCredits(ctx context.Context, id int64) (json.RawMessage, error)
}

// WatchlistService captures the watchlist operations used by the handlers.
type WatchlistService interface {
	Toggle(ctx context.Context, userID string, movieID int64, title, posterPath string) (watchlist.ToggleResult, error)
	Remove(ctx context.Context, userID string, movieID int64) (watchlist.ToggleResult, error)
	Contains(ctx context.Context, userID string, movieID int64) (bool, error)
	List(ctx context.Context, userID string, limit int) ([]models.WatchlistItem, error)
}

// ReviewService captures the review operations used by the handlers.
type ReviewService interface {
	AddOrUpdate(ctx context.Context, userID string, movieID int64, text, rawRating string) (reviews.Summary, error)
	Delete(ctx context.Context, reviewID int64, userID string) (reviews.Summary, error)
	ForMovie(ctx context.Context, movieID int64) (reviews.Summary, error)
	ForUser(ctx context.Context, userID string, limit int) ([]models.Review, error)
}

// UserStore captures the persistence operations required by the account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

// SessionManager issues, resolves and revokes cookie sessions.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (auth.Session, error)
	Resolve(ctx context.Context, token string) (auth.Session, error)
	Revoke(ctx context.Context, token string)
}

// GenreAdmin creates genres on behalf of staff.
type GenreAdmin interface {
	Create(ctx context.Context, name string, externalID *int64) (models.Genre, error)
}

// MovieAdmin flags movies on behalf of staff.
type MovieAdmin interface {
	SetFeatured(ctx context.Context, movieID int64, featured bool) error
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Renderer executes a named HTML template.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}
