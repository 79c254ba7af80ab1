// Package posters copies vendor poster images into MovieHub's own object store.
package posters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/tmdb"
)

const (
	maxPosterBytes = 10 << 20
	jobTimeout     = 30 * time.Second
	recordTimeout  = 5 * time.Second
)

var (
	// ErrMirrorClosed is returned by Enqueue after Shutdown has been called.
	ErrMirrorClosed = errors.New("poster mirror closed")
	// ErrStorageUnavailable indicates no asset storage was configured.
	ErrStorageUnavailable = errors.New("poster storage unavailable")
)

// AssetStorage persists a blob under key and returns its public location.
type AssetStorage interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// PosterRecorder stores the mirrored location on the movie row.
type PosterRecorder interface {
	MarkPosterMirrored(ctx context.Context, movieID int64, location string) error
}

// Config controls the worker pool.
type Config struct {
	QueueSize    int
	Workers      int
	ImageBaseURL string
	HTTPClient   *http.Client
}

// Mirror downloads posters in the background and uploads them to AssetStorage.
type Mirror struct {
	storage   AssetStorage
	recorder  PosterRecorder
	http      *http.Client
	imageBase string
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan models.Movie
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewMirror starts cfg.Workers goroutines consuming the mirror queue.
func NewMirror(storage AssetStorage, recorder PosterRecorder, cfg Config, logger *slog.Logger) *Mirror {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = tmdb.ImageBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: jobTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Mirror{
		storage:   storage,
		recorder:  recorder,
		http:      cfg.HTTPClient,
		imageBase: strings.TrimRight(cfg.ImageBaseURL, "/"),
		logger:    logger,
		jobs:      make(chan models.Movie, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	m.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go m.worker()
	}

	return m
}

// Enqueue schedules the movie's poster for mirroring. It blocks while the queue
// is full.
func (m *Mirror) Enqueue(ctx context.Context, movie models.Movie) error {
	if movie.PosterPath == nil || *movie.PosterPath == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrMirrorClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.jobs <- movie:
		return nil
	}
}

// Shutdown stops accepting work and waits for queued posters to finish. When
// ctx expires first, in-flight downloads are cancelled.
func (m *Mirror) Shutdown(ctx context.Context) error {
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		close(m.jobs)
		m.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		m.cancel()
		return ctx.Err()
	case <-done:
		m.cancel()
		return nil
	}
}

func (m *Mirror) worker() {
	defer m.wg.Done()
	for movie := range m.jobs {
		m.handle(movie)
	}
}

func (m *Mirror) handle(movie models.Movie) {
	logger := m.logger.With(slog.Int64("movie_id", movie.ID))
	if m.storage == nil || m.recorder == nil {
		logger.Error("poster mirror missing dependencies", "hasStorage", m.storage != nil, "hasRecorder", m.recorder != nil)
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, jobTimeout)
	defer cancel()

	location, err := m.mirror(ctx, movie)
	if err != nil {
		logger.Warn("poster mirror failed", slog.String("error", err.Error()))
		return
	}

	recordCtx, cancelRecord := context.WithTimeout(context.Background(), recordTimeout)
	defer cancelRecord()
	if err := m.recorder.MarkPosterMirrored(recordCtx, movie.ID, location); err != nil {
		logger.Error("record mirrored poster", slog.String("error", err.Error()))
		return
	}
	logger.Debug("poster mirrored", slog.String("location", location))
}

func (m *Mirror) mirror(ctx context.Context, movie models.Movie) (string, error) {
	posterPath := *movie.PosterPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.imageBase+posterPath, nil)
	if err != nil {
		return "", fmt.Errorf("build poster request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download poster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download poster: unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(posterPath))
	}

	location, err := m.storage.Save(ctx, Key(movie, posterPath), contentType, io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return "", fmt.Errorf("store poster: %w", err)
	}
	return location, nil
}

// Key returns the object key a movie's poster is stored under.
func Key(movie models.Movie, posterPath string) string {
	ext := strings.ToLower(path.Ext(posterPath))
	if ext == "" {
		ext = ".jpg"
	}
	id := movie.ID
	if movie.ExternalID != nil {
		id = *movie.ExternalID
	}
	return "posters/" + strconv.FormatInt(id, 10) + ext
}
