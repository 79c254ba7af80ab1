package handlers

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/moviehub/backend/internal/middleware"
	"github.com/moviehub/backend/internal/validation"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger       *slog.Logger
	Catalog      CatalogService
	Watchlist    WatchlistService
	Reviews      ReviewService
	Users        UserStore
	Sessions     SessionManager
	Genres       GenreAdmin
	Movies       MovieAdmin
	DB           Pinger
	Renderer     Renderer
	Static       fs.FS
	Validator    *validation.Validator
	RateLimiter  middleware.RateLimiter
	CookieSecure bool
	SessionTTL   time.Duration
}

// NewRouter wires every MovieHub route into a chi router.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.New()
	}

	health := HealthHandler{DB: deps.DB}
	pages := PageHandler{Renderer: deps.Renderer}
	catalog := CatalogHandler{Catalog: deps.Catalog, Watchlist: deps.Watchlist, Renderer: deps.Renderer}
	watch := WatchlistHandler{Watchlist: deps.Watchlist, Renderer: deps.Renderer}
	reviews := ReviewHandler{Reviews: deps.Reviews, Renderer: deps.Renderer}
	profile := ProfileHandler{Users: deps.Users, Watchlist: deps.Watchlist, Reviews: deps.Reviews, Renderer: deps.Renderer}
	admin := AdminHandler{Genres: deps.Genres, Movies: deps.Movies, Validator: validator}
	accounts := AuthHandler{
		Users:        deps.Users,
		Sessions:     deps.Sessions,
		Validator:    validator,
		Renderer:     deps.Renderer,
		CookieSecure: deps.CookieSecure,
		SessionTTL:   deps.SessionTTL,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.LoadSession(deps.Sessions, deps.Users))
	r.NotFound(pages.NotFound)

	r.Get("/healthz", health.Handle)
	if deps.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(deps.Static))))
	}

	r.Get("/", catalog.Home)
	r.Get("/top-rated/", catalog.TopRated)
	r.Get("/upcoming/", catalog.Upcoming)
	r.Get("/genres/", catalog.Genres)
	r.Get("/genres/{genreID}/", catalog.GenreByID)
	r.Get("/genres/slug/{slug}/", catalog.GenreBySlug)
	r.Get("/movie/{movieID}/", catalog.MoviePage)
	r.Get("/person/{personID}/", catalog.PersonPage)
	r.Get("/search/", catalog.Search)
	r.Get("/users/{username}/", profile.Show)

	r.Get("/about/", pages.Static("about", "About"))
	r.Get("/privacy/", pages.Static("privacy", "Privacy"))
	r.Get("/terms/", pages.Static("terms", "Terms"))
	r.Get("/contact/", pages.Static("contact", "Contact"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/movie/{movieID}/", catalog.MovieJSON)
		r.Get("/person/{personID}/", catalog.PersonJSON)
		r.With(middleware.RateLimit(deps.RateLimiter, "suggestions")).Get("/suggestions/", catalog.Suggestions)
	})

	r.Get("/signup/", accounts.SignUpPage)
	r.With(middleware.RateLimit(deps.RateLimiter, "signup")).Post("/signup/", accounts.SignUp)
	r.Get("/login/", accounts.LoginPage)
	r.With(middleware.RateLimit(deps.RateLimiter, "login")).Post("/login/", accounts.Login)
	r.Post("/logout/", accounts.Logout)

	r.Get("/reviews/{tmdbID}/", reviews.List)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/watchlist/", watch.Page)
		r.Post("/watchlist/toggle/", watch.Toggle)
		r.Post("/watchlist/remove/", watch.Remove)
		r.Post("/reviews/add/", reviews.Add)
		r.Post("/reviews/delete/{reviewID}/", reviews.Delete)
		r.Delete("/reviews/delete/{reviewID}/", reviews.Delete)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireStaff)
		r.Post("/genres/", admin.CreateGenre)
		r.Post("/movies/{movieID}/featured/", admin.SetFeatured)
	})

	return r
}
