package handlers

import (
	"errors"
	"net/http"

	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/watchlist"
)

// WatchlistPageLimit bounds how many items the watchlist page shows.
const WatchlistPageLimit = 500

// WatchlistHandler serves the watchlist page and its JSON mutations. All routes
// require a signed-in user.
type WatchlistHandler struct {
	Watchlist WatchlistService
	Renderer  Renderer
}

// Page handles GET /watchlist/.
func (h WatchlistHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := currentUser(ctx)
	if !ok {
		renderError(ctx, w, h.Renderer, http.StatusUnauthorized)
		return
	}

	items, err := h.Watchlist.List(ctx, user.ID, WatchlistPageLimit)
	if err != nil {
		logging.FromContext(ctx).Error("load watchlist", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}
	render(ctx, w, h.Renderer, http.StatusOK, "watchlist", "Your watchlist", items)
}

// Toggle handles POST /watchlist/toggle/.
func (h WatchlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
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
	movieID, err := formMovieID(r)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid movie id")
		return
	}

	result, err := h.Watchlist.Toggle(ctx, user.ID, movieID, r.PostFormValue("title"), r.PostFormValue("poster_path"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, result)
}

// Remove handles POST /watchlist/remove/. Removing an absent movie succeeds.
func (h WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
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
	movieID, err := formMovieID(r)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "movie_id required")
		return
	}

	result, err := h.Watchlist.Remove(ctx, user.ID, movieID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, result)
}

func (h WatchlistHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, watchlist.ErrInvalidMovieID):
		respondError(ctx, w, http.StatusBadRequest, "invalid movie id")
	case errors.Is(err, watchlist.ErrMissingUser):
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
	default:
		logging.FromContext(ctx).Error("update watchlist", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update watchlist")
	}
}
