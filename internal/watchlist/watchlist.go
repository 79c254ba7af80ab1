// Package watchlist implements the per-user list of saved movies.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moviehub/backend/internal/models"
)

const (
	StatusAdded   = "added"
	StatusRemoved = "removed"

	maxTitleLength  = 300
	maxPosterLength = 255
)

var (
	// ErrInvalidMovieID indicates the movie identifier is missing or not positive.
	ErrInvalidMovieID = errors.New("invalid movie id")
	// ErrMissingUser indicates the operation was attempted without a user.
	ErrMissingUser = errors.New("user id required")
)

// Store persists watchlist items.
type Store interface {
	// Toggle removes the item when present, otherwise inserts it, in one
	// transaction. It reports whether the item was added.
	Toggle(ctx context.Context, item models.WatchlistItem) (bool, error)
	Remove(ctx context.Context, userID string, movieID int64) error
	Contains(ctx context.Context, userID string, movieID int64) (bool, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]models.WatchlistItem, error)
}

// ToggleResult is returned by Toggle and Remove.
type ToggleResult struct {
	Status  string `json:"status"`
	MovieID int64  `json:"movie_id"`
}

// Service applies watchlist rules on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a watchlist Service.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Toggle adds the movie to the user's watchlist, or removes it when it is
// already there. Calling it twice restores the original state.
func (s *Service) Toggle(ctx context.Context, userID string, movieID int64, title, posterPath string) (ToggleResult, error) {
	if err := validate(userID, movieID); err != nil {
		return ToggleResult{}, err
	}

	added, err := s.store.Toggle(ctx, models.WatchlistItem{
		UserID:     userID,
		MovieID:    movieID,
		Title:      truncate(title, maxTitleLength),
		PosterPath: truncate(posterPath, maxPosterLength),
		AddedAt:    s.now().UTC(),
	})
	if err != nil {
		return ToggleResult{}, fmt.Errorf("toggle watchlist item: %w", err)
	}

	status := StatusRemoved
	if added {
		status = StatusAdded
	}
	return ToggleResult{Status: status, MovieID: movieID}, nil
}

// Remove deletes the movie from the user's watchlist. Removing a movie that is
// not on the list succeeds.
func (s *Service) Remove(ctx context.Context, userID string, movieID int64) (ToggleResult, error) {
	if err := validate(userID, movieID); err != nil {
		return ToggleResult{}, err
	}
	if err := s.store.Remove(ctx, userID, movieID); err != nil {
		return ToggleResult{}, fmt.Errorf("remove watchlist item: %w", err)
	}
	return ToggleResult{Status: StatusRemoved, MovieID: movieID}, nil
}

// Contains reports whether the movie is on the user's watchlist.
func (s *Service) Contains(ctx context.Context, userID string, movieID int64) (bool, error) {
	if userID == "" || movieID <= 0 {
		return false, nil
	}
	return s.store.Contains(ctx, userID, movieID)
}

// List returns the user's most recently added items first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]models.WatchlistItem, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	items, err := s.store.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	return items, nil
}

func validate(userID string, movieID int64) error {
	if userID == "" {
		return ErrMissingUser
	}
	if movieID <= 0 {
		return ErrInvalidMovieID
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
