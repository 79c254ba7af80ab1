// Package reviews implements per-user movie reviews.
package reviews

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/moviehub/backend/internal/models"
)

// Store persists reviews. Upsert keys on (user, movie).
type Store interface {
	Upsert(ctx context.Context, review models.Review) error
	Find(ctx context.Context, id int64) (models.Review, error)
	Delete(ctx context.Context, id int64, userID string) error
	ListForMovie(ctx context.Context, movieID int64) ([]models.Review, error)
	AverageRating(ctx context.Context, movieID int64) (*float64, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Review, error)
}

// Summary is the current state of a movie's reviews.
type Summary struct {
	MovieID int64
	Reviews []models.Review
	// Average is the mean over rated reviews, nil when none carry a rating.
	Average *float64
}

// Service applies review rules on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a review Service.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// ParseRating converts raw form input into a rating. Empty, unparsable and
// negative input all mean "no rating".
func ParseRating(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 16)
	if err != nil || n < 0 {
		return nil
	}
	rating := int(n)
	return &rating
}

// AddOrUpdate writes the user's review for the movie, replacing any earlier one.
func (s *Service) AddOrUpdate(ctx context.Context, userID string, movieID int64, text, rawRating string) (Summary, error) {
	if userID == "" {
		return Summary{}, ErrMissingUser
	}
	if movieID <= 0 {
		return Summary{}, ErrInvalidMovieID
	}

	now := s.now().UTC()
	review := models.Review{
		UserID:    userID,
		MovieID:   movieID,
		Rating:    ParseRating(rawRating),
		Text:      strings.TrimSpace(text),
		CreatedAt: now,
		UpdatedAt: &now,
	}
	if err := s.store.Upsert(ctx, review); err != nil {
		return Summary{}, fmt.Errorf("upsert review: %w", err)
	}

	return s.ForMovie(ctx, movieID)
}

// Delete removes a review owned by userID and returns the summary of the movie
// it belonged to.
func (s *Service) Delete(ctx context.Context, reviewID int64, userID string) (Summary, error) {
	if userID == "" {
		return Summary{}, ErrMissingUser
	}

	review, err := s.store.Find(ctx, reviewID)
	if err != nil {
		return Summary{}, fmt.Errorf("find review %d: %w", reviewID, err)
	}
	if review.UserID != userID {
		return Summary{}, ErrNotOwner
	}

	if err := s.store.Delete(ctx, reviewID, userID); err != nil {
		return Summary{}, fmt.Errorf("delete review %d: %w", reviewID, err)
	}

	return s.ForMovie(ctx, review.MovieID)
}

// ForMovie returns every review of the movie, newest first, with the mean rating.
func (s *Service) ForMovie(ctx context.Context, movieID int64) (Summary, error) {
	list, err := s.store.ListForMovie(ctx, movieID)
	if err != nil {
		return Summary{}, fmt.Errorf("list reviews: %w", err)
	}
	avg, err := s.store.AverageRating(ctx, movieID)
	if err != nil {
		return Summary{}, fmt.Errorf("average rating: %w", err)
	}
	return Summary{MovieID: movieID, Reviews: list, Average: avg}, nil
}

// ForUser returns the user's most recent reviews.
func (s *Service) ForUser(ctx context.Context, userID string, limit int) ([]models.Review, error) {
	list, err := s.store.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user reviews: %w", err)
	}
	return list, nil
}
