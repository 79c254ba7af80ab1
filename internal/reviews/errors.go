package reviews

import "errors"

var (
	// ErrNotOwner indicates a user tried to modify a review written by someone else.
	ErrNotOwner = errors.New("review belongs to another user")
	// ErrInvalidMovieID indicates the movie identifier is missing or not positive.
	ErrInvalidMovieID = errors.New("invalid movie id")
	// ErrMissingUser indicates the operation was attempted without a user.
	ErrMissingUser = errors.New("user id required")
)
