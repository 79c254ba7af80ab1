package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/tmdb"
)

// PageData is the value every full page template receives.
type PageData struct {
	Title       string
	CurrentUser *models.User
	Content     any
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondUpstream reports a metadata API failure on a document proxy. Upstream
// 404s are passed on as 404; every other failure is a retryable 502.
func respondUpstream(ctx context.Context, w http.ResponseWriter, err error) {
	if tmdb.IsNotFound(err) {
		logging.FromContext(ctx).Warn("metadata document not found", "error", err)
		respondJSON(ctx, w, http.StatusNotFound, map[string]any{"error": "not found", "retryable": false})
		return
	}
	respondUnavailable(ctx, w, err, nil)
}

// respondUnavailable writes the retryable 502 envelope, merging extra into it.
func respondUnavailable(ctx context.Context, w http.ResponseWriter, err error, extra map[string]any) {
	body := map[string]any{"error": "metadata service unavailable", "retryable": true}
	for k, v := range extra {
		body[k] = v
	}
	logging.FromContext(ctx).Warn("metadata request failed", "error", err)
	respondJSON(ctx, w, http.StatusBadGateway, body)
}

// render writes a full HTML page. Template failures are logged and become a 500.
func render(ctx context.Context, w http.ResponseWriter, renderer Renderer, status int, name string, title string, content any) {
	if renderer == nil {
		logging.FromContext(ctx).Error("renderer unavailable", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	data := PageData{Title: title, Content: content}
	if user, ok := auth.UserFromContext(ctx); ok {
		data.CurrentUser = &user
	}

	var buf bytes.Buffer
	if err := renderer.Render(&buf, name, data); err != nil {
		logging.FromContext(ctx).Error("render template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func renderError(ctx context.Context, w http.ResponseWriter, renderer Renderer, status int) {
	render(ctx, w, renderer, status, "error", http.StatusText(status), map[string]any{
		"Status":  status,
		"Message": http.StatusText(status),
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	return parseID(chi.URLParam(r, name))
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("id must be positive")
	}
	return id, nil
}

// formMovieID reads movie_id, falling back to tmdb_id.
func formMovieID(r *http.Request) (int64, error) {
	raw := r.PostFormValue("movie_id")
	if strings.TrimSpace(raw) == "" {
		raw = r.PostFormValue("tmdb_id")
	}
	return parseID(raw)
}

func currentUser(ctx context.Context) (models.User, bool) {
	return auth.UserFromContext(ctx)
}
