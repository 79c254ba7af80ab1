package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/repositories"
	"github.com/moviehub/backend/internal/validation"
)

// AdminHandler exposes staff-only catalog maintenance.
type AdminHandler struct {
	Genres    GenreAdmin
	Movies    MovieAdmin
	Validator *validation.Validator
}

type genreForm struct {
	Name string `form:"name" validate:"required,max=120"`
}

type genreResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	ExternalID *int64 `json:"tmdb_id"`
}

// CreateGenre handles POST /admin/genres/.
func (h AdminHandler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid form")
		return
	}

	form := genreForm{Name: strings.TrimSpace(r.PostFormValue("name"))}
	v := h.Validator
	if v == nil {
		v = validation.New()
	}
	if err := v.Validate(form); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]any{"error": "invalid genre", "fields": fieldErrors(err)})
		return
	}

	var externalID *int64
	if raw := strings.TrimSpace(r.PostFormValue("tmdb_id")); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid tmdb_id")
			return
		}
		externalID = &id
	}

	genre, err := h.Genres.Create(ctx, form.Name, externalID)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "genre already exists")
			return
		}
		logging.FromContext(ctx).Error("create genre", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create genre")
		return
	}

	logging.FromContext(ctx).Info("genre created", "genre_id", genre.ID, "slug", genre.Slug)
	respondJSON(ctx, w, http.StatusCreated, genreResponse{
		ID:         genre.ID,
		Name:       genre.Name,
		Slug:       genre.Slug,
		ExternalID: genre.ExternalID,
	})
}

// SetFeatured handles POST /admin/movies/{movieID}/featured/.
func (h AdminHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	movieID, err := pathID(r, "movieID")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid movie id")
		return
	}
	if err := r.ParseForm(); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid form")
		return
	}
	featured, err := strconv.ParseBool(strings.TrimSpace(r.PostFormValue("featured")))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "featured must be true or false")
		return
	}

	if err := h.Movies.SetFeatured(ctx, movieID, featured); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "movie not found")
			return
		}
		logging.FromContext(ctx).Error("set featured", "movie_id", movieID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update movie")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"movie_id": movieID, "featured": featured})
}
