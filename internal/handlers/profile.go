package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/repositories"
)

// ProfileHandler renders public user profiles.
type ProfileHandler struct {
	Users     UserStore
	Watchlist WatchlistService
	Reviews   ReviewService
	Renderer  Renderer
}

type profileContent struct {
	ProfileUser models.User
	Watchlist   []models.WatchlistItem
	Reviews     []models.Review
}

// Show handles GET /users/{username}/.
func (h ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	username := strings.TrimSpace(chi.URLParam(r, "username"))
	user, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			renderError(ctx, w, h.Renderer, http.StatusNotFound)
			return
		}
		logger.Error("profile user lookup failed", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}

	items, err := h.Watchlist.List(ctx, user.ID, models.ProfileWatchlist)
	if err != nil {
		logger.Error("load profile watchlist", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}
	reviews, err := h.Reviews.ForUser(ctx, user.ID, models.ProfileReviews)
	if err != nil {
		logger.Error("load profile reviews", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}

	render(ctx, w, h.Renderer, http.StatusOK, "profile", user.Username, profileContent{
		ProfileUser: user,
		Watchlist:   items,
		Reviews:     reviews,
	})
}
