package models

import "time"

// User represents an account within MovieHub.
type User struct {
	ID        string
	Username  string
	Password  string
	IsStaff   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Genre is a local copy of a vendor genre. ExternalID is nil for genres created
// by staff that have no vendor counterpart.
type Genre struct {
	ID         int64
	Name       string
	ExternalID *int64
	Slug       string
}

// Movie is the locally stored catalog entry.
type Movie struct {
	ID            int64
	ExternalID    *int64
	Title         string
	OriginalTitle string
	Overview      string
	PosterPath    *string
	PosterURL     *string
	BackdropPath  *string
	ReleaseDate   *time.Time
	Runtime       *int
	VoteAverage   *float64
	VoteCount     *int
	Popularity    *float64
	Featured      bool
	Genres        []Genre
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// GenreImport is a vendor genre about to be written by the sync job.
type GenreImport struct {
	ExternalID int64
	Name       string
}

// GenreSyncResult counts the rows touched by a genre sync.
type GenreSyncResult struct {
	Created int
	Updated int
}

// MovieImport is a vendor movie about to be written by the sync job.
type MovieImport struct {
	ExternalID       int64
	Title            string
	OriginalTitle    string
	Overview         string
	PosterPath       *string
	BackdropPath     *string
	ReleaseDate      *time.Time
	VoteAverage      *float64
	VoteCount        *int
	Popularity       *float64
	GenreExternalIDs []int64
}

// ImportResult reports what a single page import wrote.
type ImportResult struct {
	Imported int
	Skipped  int
	Written  []Movie
}

// WatchlistItem is a movie a user saved for later. Title and PosterPath are
// snapshots taken when the item was added.
type WatchlistItem struct {
	ID         int64
	UserID     string
	MovieID    int64
	Title      string
	PosterPath string
	AddedAt    time.Time
}

// Review is a user's opinion of a movie. Rating is nil when the user did not
// provide one.
type Review struct {
	ID        int64
	UserID    string
	Username  string
	MovieID   int64
	Rating    *int
	Text      string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Page sizes shared by listing pages.
const (
	MoviesPerPage    = 24
	GenresPerPage    = 50
	ProfileWatchlist = 48
	ProfileReviews   = 20
)
