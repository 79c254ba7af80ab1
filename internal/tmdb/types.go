package tmdb

// ImageBaseURL prefixes poster paths to build displayable image URLs.
const ImageBaseURL = "https://image.tmdb.org/t/p/w500"

// PosterURL returns the full image URL for a poster path, or "" when there is none.
func PosterURL(path string) string {
	if path == "" {
		return ""
	}
	return ImageBaseURL + path
}

// MovieResult is a movie as returned by list and search endpoints. Every field
// is optional upstream.
type MovieResult struct {
	ID            *int64   `json:"id"`
	Title         *string  `json:"title"`
	OriginalTitle *string  `json:"original_title"`
	Overview      *string  `json:"overview"`
	PosterPath    *string  `json:"poster_path"`
	BackdropPath  *string  `json:"backdrop_path"`
	ReleaseDate   *string  `json:"release_date"`
	VoteAverage   *float64 `json:"vote_average"`
	VoteCount     *int     `json:"vote_count"`
	Popularity    *float64 `json:"popularity"`
	GenreIDs      []int64  `json:"genre_ids"`
}

// MoviePage is one page of a paginated movie listing.
type MoviePage struct {
	Page         int           `json:"page"`
	Results      []MovieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// Genre is an entry of the vendor genre taxonomy.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type genreList struct {
	Genres []Genre `json:"genres"`
}
