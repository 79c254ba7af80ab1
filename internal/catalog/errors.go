package catalog

import "errors"

// ErrMissingGenre indicates a genre listing was requested without an id or slug.
var ErrMissingGenre = errors.New("genre id or slug required")
