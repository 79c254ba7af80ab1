package catalog

import (
	"strings"

	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/tmdb"
)

const dateLayout = "2006-01-02"

// MovieView is the canonical movie shape handed to templates and JSON clients.
// A nil field means the source had no value for it.
type MovieView struct {
	ID          *int64   `json:"id"`
	Title       *string  `json:"title"`
	PosterPath  *string  `json:"poster_path"`
	PosterURL   *string  `json:"poster_url"`
	ReleaseDate *string  `json:"release_date"`
	VoteAverage *float64 `json:"vote_average"`
}

// Record is a movie from one of the two places MovieHub reads them from. The
// set of implementations is closed: VendorRecord and LocalEntity.
type Record interface {
	normalize() MovieView
}

// VendorRecord is a movie decoded from a metadata API listing.
type VendorRecord tmdb.MovieResult

// LocalEntity is a movie loaded from the local catalog.
type LocalEntity struct {
	Movie models.Movie
}

// Normalize maps a record onto MovieView.
func Normalize(r Record) MovieView {
	if r == nil {
		return MovieView{}
	}
	return r.normalize()
}

// NormalizeVendor normalizes a page of vendor results.
func NormalizeVendor(results []tmdb.MovieResult) []MovieView {
	views := make([]MovieView, 0, len(results))
	for _, result := range results {
		views = append(views, Normalize(VendorRecord(result)))
	}
	return views
}

// NormalizeLocal normalizes locally stored movies.
func NormalizeLocal(movies []models.Movie) []MovieView {
	views := make([]MovieView, 0, len(movies))
	for _, movie := range movies {
		views = append(views, Normalize(LocalEntity{Movie: movie}))
	}
	return views
}

func (v VendorRecord) normalize() MovieView {
	view := MovieView{
		ID:          v.ID,
		Title:       firstNonEmpty(deref(v.Title), deref(v.OriginalTitle)),
		PosterPath:  nonEmpty(deref(v.PosterPath)),
		ReleaseDate: nonEmpty(deref(v.ReleaseDate)),
		VoteAverage: v.VoteAverage,
	}
	view.PosterURL = posterURL(nil, view.PosterPath)
	return view
}

func (l LocalEntity) normalize() MovieView {
	m := l.Movie

	var id *int64
	switch {
	case m.ExternalID != nil:
		ext := *m.ExternalID
		id = &ext
	case m.ID != 0:
		local := m.ID
		id = &local
	}

	var released *string
	if m.ReleaseDate != nil {
		formatted := m.ReleaseDate.Format(dateLayout)
		released = &formatted
	}

	view := MovieView{
		ID:          id,
		Title:       firstNonEmpty(m.Title, m.OriginalTitle),
		PosterPath:  nonEmpty(deref(m.PosterPath)),
		ReleaseDate: released,
		VoteAverage: m.VoteAverage,
	}
	view.PosterURL = posterURL(m.PosterURL, view.PosterPath)
	return view
}

func posterURL(mirrored, path *string) *string {
	if url := nonEmpty(deref(mirrored)); url != nil {
		return url
	}
	if path == nil {
		return nil
	}
	full := tmdb.PosterURL(*path)
	return &full
}

func firstNonEmpty(values ...string) *string {
	for _, v := range values {
		if p := nonEmpty(v); p != nil {
			return p
		}
	}
	return nil
}

func nonEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
