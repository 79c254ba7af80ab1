package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/moviehub/backend/internal/catalog"
	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/repositories"
)

// CatalogHandler renders the browsing pages and serves the metadata JSON API.
type CatalogHandler struct {
	Catalog   CatalogService
	Watchlist WatchlistService
	Renderer  Renderer
	NowFunc   func() time.Time
}

func (h CatalogHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now()
}

type homeContent struct {
	catalog.Listing
	Years []int
}

// Home handles GET /.
func (h CatalogHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listing, err := h.Catalog.Home(ctx, catalog.ParsePage(r.URL.Query().Get("page")))
	if err != nil {
		logging.FromContext(ctx).Error("load home listing", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}

	years := make([]int, 0, 80)
	for y := h.now().Year(); y >= 1960; y-- {
		years = append(years, y)
	}
	render(ctx, w, h.Renderer, http.StatusOK, "home", "Popular movies", homeContent{Listing: listing, Years: years})
}

// TopRated handles GET /top-rated/.
func (h CatalogHandler) TopRated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listing, err := h.Catalog.TopRated(ctx, catalog.ParsePage(r.URL.Query().Get("page")))
	if err != nil {
		logging.FromContext(ctx).Error("load top rated listing", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}
	render(ctx, w, h.Renderer, http.StatusOK, "listing", "Top rated", listing)
}

// Upcoming handles GET /upcoming/.
func (h CatalogHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listing, err := h.Catalog.Upcoming(ctx, catalog.ParsePage(r.URL.Query().Get("page")), h.now())
	if err != nil {
		logging.FromContext(ctx).Error("load upcoming listing", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}
	render(ctx, w, h.Renderer, http.StatusOK, "listing", "Upcoming", listing)
}

// Genres handles GET /genres/.
func (h CatalogHandler) Genres(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	genres, err := h.Catalog.Genres(ctx, catalog.ParsePage(r.URL.Query().Get("page")))
	if err != nil {
		logging.FromContext(ctx).Error("load genres", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}
	render(ctx, w, h.Renderer, http.StatusOK, "genres", "Genres", genres)
}

// GenreByID handles GET /genres/{genreID}/.
func (h CatalogHandler) GenreByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "genreID")
	if err != nil {
		renderError(r.Context(), w, h.Renderer, http.StatusBadRequest)
		return
	}
	h.genre(w, r, catalog.GenreRef{ID: id})
}

// GenreBySlug handles GET /genres/slug/{slug}/.
func (h CatalogHandler) GenreBySlug(w http.ResponseWriter, r *http.Request) {
	h.genre(w, r, catalog.GenreRef{Slug: strings.TrimSpace(chi.URLParam(r, "slug"))})
}

func (h CatalogHandler) genre(w http.ResponseWriter, r *http.Request, ref catalog.GenreRef) {
	ctx := r.Context()
	listing, err := h.Catalog.GenreMovies(ctx, ref, catalog.ParsePage(r.URL.Query().Get("page")))
	switch {
	case err == nil:
		render(ctx, w, h.Renderer, http.StatusOK, "genre", listing.Genre.Name, listing)
	case errors.Is(err, catalog.ErrMissingGenre):
		renderError(ctx, w, h.Renderer, http.StatusBadRequest)
	case errors.Is(err, repositories.ErrNotFound):
		renderError(ctx, w, h.Renderer, http.StatusNotFound)
	default:
		logging.FromContext(ctx).Error("load genre listing", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
	}
}

type searchContent struct {
	Query string
	catalog.Listing
}

// Search handles GET /search/. Upstream failures render an empty result set.
func (h CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	listing := h.Catalog.Search(ctx, query, catalog.ParsePage(r.URL.Query().Get("page")))
	render(ctx, w, h.Renderer, http.StatusOK, "search", "Search", searchContent{Query: query, Listing: listing})
}

type movieContent struct {
	MovieID     int64
	InWatchlist bool
}

// MoviePage handles GET /movie/{movieID}/. Details are loaded client side from
// the JSON API.
func (h CatalogHandler) MoviePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "movieID")
	if err != nil {
		renderError(ctx, w, h.Renderer, http.StatusBadRequest)
		return
	}

	content := movieContent{MovieID: id}
	if user, ok := currentUser(ctx); ok && h.Watchlist != nil {
		saved, err := h.Watchlist.Contains(ctx, user.ID, id)
		if err != nil {
			logging.FromContext(ctx).Warn("check watchlist state", "movie_id", id, "error", err)
		}
		content.InWatchlist = saved
	}
	render(ctx, w, h.Renderer, http.StatusOK, "movie", "Movie", content)
}

// PersonPage handles GET /person/{personID}/.
func (h CatalogHandler) PersonPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "personID")
	if err != nil {
		renderError(ctx, w, h.Renderer, http.StatusBadRequest)
		return
	}
	render(ctx, w, h.Renderer, http.StatusOK, "person", "Person", map[string]int64{"PersonID": id})
}

// MovieJSON handles GET /api/movie/{movieID}/.
func (h CatalogHandler) MovieJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "movieID")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid movie id")
		return
	}

	doc, err := h.Catalog.Movie(ctx, id)
	if err != nil {
		respondUpstream(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, doc)
}

// PersonJSON handles GET /api/person/{personID}/ and returns the person with
// their combined credits.
func (h CatalogHandler) PersonJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "personID")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid person id")
		return
	}

	person, err := h.Catalog.Person(ctx, id)
	if err != nil {
		respondUpstream(ctx, w, err)
		return
	}
	credits, err := h.Catalog.PersonCredits(ctx, id)
	if err != nil {
		respondUpstream(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"person": person, "credits": credits})
}

// Suggestions handles GET /api/suggestions/?q=.
func (h CatalogHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results, err := h.Catalog.Suggestions(ctx, r.URL.Query().Get("q"))
	if err != nil {
		respondUnavailable(ctx, w, err, map[string]any{"results": []catalog.Suggestion{}})
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"results": results})
}
