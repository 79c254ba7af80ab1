package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/catalog"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/repositories"
	"github.com/moviehub/backend/internal/reviews"
	"github.com/moviehub/backend/internal/watchlist"
)

type recordingRenderer struct {
	mu    sync.Mutex
	name  string
	data  any
	fails bool
}

func (r *recordingRenderer) Render(w io.Writer, name string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails {
		return fmt.Errorf("render %s: boom", name)
	}
	r.name = name
	r.data = data
	_, err := fmt.Fprintf(w, "<main>%s</main>", name)
	return err
}

func (r *recordingRenderer) last() (string, any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name, r.data
}

type inMemoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Username]; exists {
		return repositories.ErrConflict
	}
	s.users[user.Username] = user
	return nil
}

func (s *inMemoryUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func newSessionManager() (*auth.Manager, *auth.InMemorySessionStore) {
	store := auth.NewInMemorySessionStore()
	return auth.NewManager(time.Hour, store), store
}

type stubCatalog struct {
	listing     catalog.Listing
	genres      catalog.GenrePage
	genre       catalog.GenreListing
	suggestions []catalog.Suggestion
	doc         json.RawMessage
	credits     json.RawMessage
	err         error

	gotRef   catalog.GenreRef
	gotPage  int
	gotQuery string
	gotToday time.Time
}

func (s *stubCatalog) Home(_ context.Context, page int) (catalog.Listing, error) {
	s.gotPage = page
	return s.listing, s.err
}

func (s *stubCatalog) TopRated(_ context.Context, page int) (catalog.Listing, error) {
	s.gotPage = page
	return s.listing, s.err
}

func (s *stubCatalog) Upcoming(_ context.Context, page int, today time.Time) (catalog.Listing, error) {
	s.gotPage = page
	s.gotToday = today
	return s.listing, s.err
}

func (s *stubCatalog) Genres(_ context.Context, page int) (catalog.GenrePage, error) {
	s.gotPage = page
	return s.genres, s.err
}

func (s *stubCatalog) GenreMovies(_ context.Context, ref catalog.GenreRef, page int) (catalog.GenreListing, error) {
	s.gotRef = ref
	s.gotPage = page
	return s.genre, s.err
}

func (s *stubCatalog) Suggestions(_ context.Context, query string) ([]catalog.Suggestion, error) {
	s.gotQuery = query
	if s.err != nil {
		return []catalog.Suggestion{}, s.err
	}
	return s.suggestions, nil
}

func (s *stubCatalog) Search(_ context.Context, query string, page int) catalog.Listing {
	s.gotQuery = query
	s.gotPage = page
	return s.listing
}

func (s *stubCatalog) Movie(_ context.Context, id int64) (json.RawMessage, error) {
	return s.doc, s.err
}

func (s *stubCatalog) Person(_ context.Context, id int64) (json.RawMessage, error) {
	return s.doc, s.err
}

func (s *stubCatalog) PersonCredits(_ context.Context, id int64) (json.RawMessage, error) {
	return s.credits, s.err
}

type memoryWatchlistStore struct {
	mu    sync.Mutex
	items map[string]models.WatchlistItem
}

func newMemoryWatchlistStore() *memoryWatchlistStore {
	return &memoryWatchlistStore{items: make(map[string]models.WatchlistItem)}
}

func watchKey(userID string, movieID int64) string {
	return fmt.Sprintf("%s/%d", userID, movieID)
}

func (s *memoryWatchlistStore) Toggle(_ context.Context, item models.WatchlistItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := watchKey(item.UserID, item.MovieID)
	if _, ok := s.items[key]; ok {
		delete(s.items, key)
		return false, nil
	}
	s.items[key] = item
	return true, nil
}

func (s *memoryWatchlistStore) Remove(_ context.Context, userID string, movieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, watchKey(userID, movieID))
	return nil
}

func (s *memoryWatchlistStore) Contains(_ context.Context, userID string, movieID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[watchKey(userID, movieID)]
	return ok, nil
}

func (s *memoryWatchlistStore) ListForUser(_ context.Context, userID string, limit int) ([]models.WatchlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WatchlistItem
	for _, item := range s.items {
		if item.UserID == userID && len(out) < limit {
			out = append(out, item)
		}
	}
	return out, nil
}

type memoryReviewStore struct {
	mu      sync.Mutex
	nextID  int64
	reviews map[int64]models.Review
}

func newMemoryReviewStore() *memoryReviewStore {
	return &memoryReviewStore{reviews: make(map[int64]models.Review)}
}

func (s *memoryReviewStore) Upsert(_ context.Context, review models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.reviews {
		if existing.UserID == review.UserID && existing.MovieID == review.MovieID {
			review.ID = id
			s.reviews[id] = review
			return nil
		}
	}
	s.nextID++
	review.ID = s.nextID
	s.reviews[review.ID] = review
	return nil
}

func (s *memoryReviewStore) Find(_ context.Context, id int64) (models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	review, ok := s.reviews[id]
	if !ok {
		return models.Review{}, repositories.ErrNotFound
	}
	return review, nil
}

func (s *memoryReviewStore) Delete(_ context.Context, id int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	review, ok := s.reviews[id]
	if !ok || review.UserID != userID {
		return repositories.ErrNotFound
	}
	delete(s.reviews, id)
	return nil
}

func (s *memoryReviewStore) ListForMovie(_ context.Context, movieID int64) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Review
	for _, review := range s.reviews {
		if review.MovieID == movieID {
			out = append(out, review)
		}
	}
	return out, nil
}

func (s *memoryReviewStore) AverageRating(ctx context.Context, movieID int64) (*float64, error) {
	list, _ := s.ListForMovie(ctx, movieID)
	var sum, n float64
	for _, review := range list {
		if review.Rating != nil {
			sum += float64(*review.Rating)
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / n
	return &avg, nil
}

func (s *memoryReviewStore) ListForUser(_ context.Context, userID string, limit int) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Review
	for _, review := range s.reviews {
		if review.UserID == userID && len(out) < limit {
			out = append(out, review)
		}
	}
	return out, nil
}

var (
	_ WatchlistService = (*watchlist.Service)(nil)
	_ ReviewService    = (*reviews.Service)(nil)
	_ CatalogService   = (*catalog.Service)(nil)
	_ SessionManager   = (*auth.Manager)(nil)
)
