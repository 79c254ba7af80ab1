package tmdb

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured indicates the client has no API key to authenticate with.
var ErrNotConfigured = errors.New("tmdb api key not configured")

// TransportError reports a failed exchange with the metadata API. StatusCode is
// zero when no response was received.
type TransportError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tmdb %s: status %d: %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("tmdb %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound reports whether the upstream answered 404.
func (e *TransportError) IsNotFound() bool {
	return e != nil && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err carries an upstream 404.
func IsNotFound(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.IsNotFound()
}
