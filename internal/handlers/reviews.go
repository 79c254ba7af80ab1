package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/repositories"
	"github.com/moviehub/backend/internal/reviews"
)

// ReviewHandler serves the review fragment endpoints used by the movie page.
type ReviewHandler struct {
	Reviews  ReviewService
	Renderer Renderer
}

type reviewFragment struct {
	reviews.Summary
	CurrentUser *models.User
}

// List handles GET /reviews/{tmdbID}/.
func (h ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	movieID, err := pathID(r, "tmdbID")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid tmdb_id")
		return
	}

	summary, err := h.Reviews.ForMovie(ctx, movieID)
	if err != nil {
		logging.FromContext(ctx).Error("load reviews", "movie_id", movieID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load reviews")
		return
	}
	h.respondFragment(w, r, summary)
}

// Add handles POST /reviews/add/.
func (h ReviewHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := currentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseForm(); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid form")
		return
	}
	movieID, err := parseID(r.PostFormValue("tmdb_id"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid tmdb_id")
		return
	}

	summary, err := h.Reviews.AddOrUpdate(ctx, user.ID, movieID, r.PostFormValue("text"), r.PostFormValue("rating"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondFragment(w, r, summary)
}

// Delete handles POST and DELETE /reviews/delete/{reviewID}/.
func (h ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := currentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	reviewID, err := pathID(r, "reviewID")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid review id")
		return
	}

	summary, err := h.Reviews.Delete(ctx, reviewID, user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondFragment(w, r, summary)
}

func (h ReviewHandler) respondFragment(w http.ResponseWriter, r *http.Request, summary reviews.Summary) {
	ctx := r.Context()
	data := reviewFragment{Summary: summary}
	if user, ok := currentUser(ctx); ok {
		data.CurrentUser = &user
	}

	var buf bytes.Buffer
	if h.Renderer == nil {
		respondError(ctx, w, http.StatusInternalServerError, "renderer unavailable")
		return
	}
	if err := h.Renderer.Render(&buf, "reviews", data); err != nil {
		logging.FromContext(ctx).Error("render reviews fragment", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to render reviews")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"html": buf.String()})
}

func (h ReviewHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, reviews.ErrNotOwner):
		respondError(ctx, w, http.StatusForbidden, "not allowed")
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "review not found")
	case errors.Is(err, reviews.ErrInvalidMovieID):
		respondError(ctx, w, http.StatusBadRequest, "invalid tmdb_id")
	case errors.Is(err, reviews.ErrMissingUser):
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
	default:
		logging.FromContext(ctx).Error("update reviews", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update reviews")
	}
}
