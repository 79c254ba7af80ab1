package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/catalog"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/repositories"
	"github.com/moviehub/backend/internal/reviews"
	"github.com/moviehub/backend/internal/tmdb"
	"github.com/moviehub/backend/internal/watchlist"
)

type testApp struct {
	router    http.Handler
	users     *inMemoryUserStore
	sessions  *auth.Manager
	catalog   *stubCatalog
	watchlist *memoryWatchlistStore
	reviews   *memoryReviewStore
	renderer  *recordingRenderer
	genres    *stubGenreAdmin
	movies    *stubMovieAdmin
}

type stubGenreAdmin struct {
	created []string
	err     error
}

func (s *stubGenreAdmin) Create(_ context.Context, name string, externalID *int64) (models.Genre, error) {
	if s.err != nil {
		return models.Genre{}, s.err
	}
	s.created = append(s.created, name)
	return models.Genre{ID: int64(len(s.created)), Name: name, Slug: strings.ToLower(name), ExternalID: externalID}, nil
}

type stubMovieAdmin struct {
	featured map[int64]bool
}

func (s *stubMovieAdmin) SetFeatured(_ context.Context, movieID int64, featured bool) error {
	if _, ok := s.featured[movieID]; !ok {
		return fmt.Errorf("set featured: %w", repositories.ErrNotFound)
	}
	s.featured[movieID] = featured
	return nil
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	sessions, _ := newSessionManager()
	app := &testApp{
		users:     newInMemoryUserStore(),
		sessions:  sessions,
		catalog:   &stubCatalog{},
		watchlist: newMemoryWatchlistStore(),
		reviews:   newMemoryReviewStore(),
		renderer:  &recordingRenderer{},
		genres:    &stubGenreAdmin{},
		movies:    &stubMovieAdmin{featured: map[int64]bool{7: false}},
	}
	app.router = NewRouter(Dependencies{
		Catalog:   app.catalog,
		Watchlist: watchlist.NewService(app.watchlist, nil),
		Reviews:   reviews.NewService(app.reviews, nil),
		Users:     app.users,
		Sessions:  app.sessions,
		Genres:    app.genres,
		Movies:    app.movies,
		Renderer:  app.renderer,
	})
	return app
}

func (a *testApp) signIn(t *testing.T, username string, staff bool) *http.Cookie {
	t.Helper()
	user := models.User{ID: "id-" + username, Username: username, IsStaff: staff}
	if err := a.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	session, err := a.sessions.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return &http.Cookie{Name: auth.CookieName, Value: session.Token}
}

func (a *testApp) do(method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestRouterHealthz(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type got %s", got)
	}

	rec = app.do(http.MethodPost, "/healthz", nil, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed got %d", rec.Code)
	}
}

func TestWatchlistMutationsRedirectAnonymousUsers(t *testing.T) {
	app := newTestApp(t)

	for _, target := range []string{"/watchlist/", "/watchlist/toggle/", "/watchlist/remove/", "/reviews/add/", "/reviews/delete/1/"} {
		method := http.MethodPost
		if target == "/watchlist/" {
			method = http.MethodGet
		}
		rec := app.do(method, target, url.Values{"movie_id": {"5"}}, nil)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected 303 got %d", target, rec.Code)
		}
		want := "/login/?next=" + url.QueryEscape(target)
		if loc := rec.Header().Get("Location"); loc != want {
			t.Fatalf("%s: expected redirect to %q got %q", target, want, loc)
		}
	}
	if len(app.watchlist.items) != 0 || len(app.reviews.reviews) != 0 {
		t.Fatal("anonymous requests must not write anything")
	}
}

func TestWatchlistToggleAddsThenRemoves(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "ada", false)

	form := url.Values{"tmdb_id": {"550"}, "title": {"Fight Club"}, "poster_path": {"/p.jpg"}}
	rec := app.do(http.MethodPost, "/watchlist/toggle/", form, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["status"] != watchlist.StatusAdded || body["movie_id"] != float64(550) {
		t.Fatalf("unexpected first toggle response: %v", body)
	}

	rec = app.do(http.MethodPost, "/watchlist/toggle/", form, cookie)
	body = decodeJSON(t, rec)
	if body["status"] != watchlist.StatusRemoved {
		t.Fatalf("unexpected second toggle response: %v", body)
	}
	if len(app.watchlist.items) != 0 {
		t.Fatalf("expected no rows left, got %d", len(app.watchlist.items))
	}

	rec = app.do(http.MethodPost, "/watchlist/toggle/", url.Values{"movie_id": {"abc"}}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer id, got %d", rec.Code)
	}

	rec = app.do(http.MethodPost, "/watchlist/remove/", url.Values{"movie_id": {"550"}}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected idempotent remove to succeed, got %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["status"] != watchlist.StatusRemoved {
		t.Fatalf("unexpected remove response: %v", body)
	}
}

func TestWatchlistPageListsItems(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "ada", false)
	app.do(http.MethodPost, "/watchlist/toggle/", url.Values{"movie_id": {"1"}, "title": {"One"}}, cookie)

	rec := app.do(http.MethodGet, "/watchlist/", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	name, data := app.renderer.last()
	if name != "watchlist" {
		t.Fatalf("expected watchlist template, got %q", name)
	}
	page := data.(PageData)
	if page.CurrentUser == nil || page.CurrentUser.Username != "ada" {
		t.Fatalf("expected current user on page data, got %+v", page.CurrentUser)
	}
	if items := page.Content.([]models.WatchlistItem); len(items) != 1 || items[0].Title != "One" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestReviewsAddTwiceKeepsOneAndRendersFragment(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "critic", false)

	app.do(http.MethodPost, "/reviews/add/", url.Values{"tmdb_id": {"9"}, "text": {"meh"}, "rating": {"4"}}, cookie)
	rec := app.do(http.MethodPost, "/reviews/add/", url.Values{"tmdb_id": {"9"}, "text": {" great "}, "rating": {"9"}}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["html"] != "<main>reviews</main>" {
		t.Fatalf("expected rendered fragment, got %v", body)
	}

	_, data := app.renderer.last()
	fragment := data.(reviewFragment)
	if len(fragment.Reviews) != 1 || fragment.Reviews[0].Text != "great" || *fragment.Reviews[0].Rating != 9 {
		t.Fatalf("expected one updated review, got %+v", fragment.Reviews)
	}
	if fragment.Average == nil || *fragment.Average != 9 {
		t.Fatalf("unexpected average: %v", fragment.Average)
	}

	rec = app.do(http.MethodPost, "/reviews/add/", url.Values{"tmdb_id": {"x"}}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid tmdb_id, got %d", rec.Code)
	}
}

func TestReviewDeleteRequiresOwnership(t *testing.T) {
	app := newTestApp(t)
	owner := app.signIn(t, "owner", false)
	other := app.signIn(t, "other", false)

	app.do(http.MethodPost, "/reviews/add/", url.Values{"tmdb_id": {"3"}, "text": {"mine"}}, owner)
	var reviewID int64
	for id := range app.reviews.reviews {
		reviewID = id
	}
	target := "/reviews/delete/" + strconv.FormatInt(reviewID, 10) + "/"

	rec := app.do(http.MethodPost, target, nil, other)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", rec.Code)
	}
	if len(app.reviews.reviews) != 1 {
		t.Fatal("review must survive a non-owner delete")
	}

	rec = app.do(http.MethodDelete, target, nil, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected owner delete to succeed, got %d", rec.Code)
	}
	if len(app.reviews.reviews) != 0 {
		t.Fatal("expected review to be deleted")
	}

	rec = app.do(http.MethodPost, target, nil, owner)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing review, got %d", rec.Code)
	}

	rec = app.do(http.MethodGet, "/reviews/3/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous review listing, got %d", rec.Code)
	}
}

func TestSuggestionsEnvelope(t *testing.T) {
	app := newTestApp(t)
	id := int64(5)
	title := "Alien"
	app.catalog.suggestions = []catalog.Suggestion{{ID: &id, Title: &title}}

	rec := app.do(http.MethodGet, "/api/suggestions/?q=ali", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	results := body["results"].([]any)
	if len(results) != 1 || app.catalog.gotQuery != "ali" {
		t.Fatalf("unexpected suggestions: %v", body)
	}

	app.catalog.err = &tmdb.TransportError{Path: "/search/movie", StatusCode: http.StatusInternalServerError}
	rec = app.do(http.MethodGet, "/api/suggestions/?q=ali", nil, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}
	body = decodeJSON(t, rec)
	if body["retryable"] != true || len(body["results"].([]any)) != 0 {
		t.Fatalf("unexpected failure envelope: %v", body)
	}
}

func TestMovieProxyMapsUpstreamErrors(t *testing.T) {
	app := newTestApp(t)
	app.catalog.doc = json.RawMessage(`{"id":550,"title":"Fight Club"}`)

	rec := app.do(http.MethodGet, "/api/movie/550/", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Fight Club"`) {
		t.Fatalf("unexpected proxy response %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.do(http.MethodGet, "/api/movie/abc/", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer id, got %d", rec.Code)
	}

	app.catalog.err = &tmdb.TransportError{Path: "/movie/1", StatusCode: http.StatusNotFound}
	rec = app.do(http.MethodGet, "/api/movie/1/", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for upstream 404, got %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["retryable"] != false {
		t.Fatalf("expected non-retryable envelope, got %v", body)
	}

	app.catalog.err = &tmdb.TransportError{Path: "/person/1", Err: errors.New("dial tcp: refused")}
	rec = app.do(http.MethodGet, "/api/person/1/", nil, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for transport failure, got %d", rec.Code)
	}
}

func TestPersonProxyCombinesCredits(t *testing.T) {
	app := newTestApp(t)
	app.catalog.doc = json.RawMessage(`{"id":1,"name":"Ada"}`)
	app.catalog.credits = json.RawMessage(`{"cast":[]}`)

	rec := app.do(http.MethodGet, "/api/person/1/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if _, ok := body["person"]; !ok {
		t.Fatalf("expected person document, got %v", body)
	}
	if _, ok := body["credits"]; !ok {
		t.Fatalf("expected credits document, got %v", body)
	}
}

func TestCatalogPages(t *testing.T) {
	app := newTestApp(t)
	app.catalog.listing = catalog.Listing{Fallback: true}

	rec := app.do(http.MethodGet, "/?page=zero", nil, nil)
	if rec.Code != http.StatusOK || app.catalog.gotPage != 1 {
		t.Fatalf("expected home page 1, got status %d page %d", rec.Code, app.catalog.gotPage)
	}
	if name, _ := app.renderer.last(); name != "home" {
		t.Fatalf("expected home template, got %q", name)
	}

	app.do(http.MethodGet, "/upcoming/?page=3", nil, nil)
	if app.catalog.gotPage != 3 || app.catalog.gotToday.IsZero() {
		t.Fatalf("expected upcoming page 3 with today, got %d %v", app.catalog.gotPage, app.catalog.gotToday)
	}

	app.do(http.MethodGet, "/genres/slug/science-fiction/", nil, nil)
	if app.catalog.gotRef.Slug != "science-fiction" {
		t.Fatalf("expected slug lookup, got %+v", app.catalog.gotRef)
	}

	app.do(http.MethodGet, "/genres/12/", nil, nil)
	if app.catalog.gotRef.ID != 12 {
		t.Fatalf("expected id lookup, got %+v", app.catalog.gotRef)
	}

	app.catalog.err = fmt.Errorf("find genre: %w", repositories.ErrNotFound)
	rec = app.do(http.MethodGet, "/genres/99/", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown genre, got %d", rec.Code)
	}

	app.catalog.err = catalog.ErrMissingGenre
	rec = app.do(http.MethodGet, "/genres/slug/%20/", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing genre, got %d", rec.Code)
	}

	rec = app.do(http.MethodGet, "/movie/abc/", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad movie id, got %d", rec.Code)
	}

	rec = app.do(http.MethodGet, "/no-such-page/", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMoviePageReportsWatchlistState(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "ada", false)
	app.do(http.MethodPost, "/watchlist/toggle/", url.Values{"movie_id": {"42"}}, cookie)

	rec := app.do(http.MethodGet, "/movie/42/", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	_, data := app.renderer.last()
	content := data.(PageData).Content.(movieContent)
	if content.MovieID != 42 || !content.InWatchlist {
		t.Fatalf("unexpected movie page content: %+v", content)
	}
}

func TestProfilePage(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "ada", false)
	app.do(http.MethodPost, "/reviews/add/", url.Values{"tmdb_id": {"1"}, "text": {"ok"}}, cookie)

	rec := app.do(http.MethodGet, "/users/ada/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	_, data := app.renderer.last()
	content := data.(PageData).Content.(profileContent)
	if content.ProfileUser.Username != "ada" || len(content.Reviews) != 1 {
		t.Fatalf("unexpected profile content: %+v", content)
	}

	rec = app.do(http.MethodGet, "/users/ghost/", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	app := newTestApp(t)
	regular := app.signIn(t, "regular", false)
	staff := app.signIn(t, "staff", true)

	rec := app.do(http.MethodPost, "/admin/genres/", url.Values{"name": {"Noir"}}, regular)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for regular user, got %d", rec.Code)
	}

	rec = app.do(http.MethodPost, "/admin/genres/", url.Values{"name": {"Noir"}, "tmdb_id": {"77"}}, staff)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["slug"] != "noir" || body["tmdb_id"] != float64(77) {
		t.Fatalf("unexpected genre response: %v", body)
	}

	rec = app.do(http.MethodPost, "/admin/genres/", url.Values{"name": {""}}, staff)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", rec.Code)
	}

	rec = app.do(http.MethodPost, "/admin/movies/7/featured/", url.Values{"featured": {"true"}}, staff)
	if rec.Code != http.StatusOK || !app.movies.featured[7] {
		t.Fatalf("expected movie 7 featured, got %d", rec.Code)
	}

	rec = app.do(http.MethodPost, "/admin/movies/8/featured/", url.Values{"featured": {"true"}}, staff)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown movie, got %d", rec.Code)
	}

	rec = app.do(http.MethodPost, "/admin/movies/7/featured/", url.Values{"featured": {"maybe"}}, staff)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad flag, got %d", rec.Code)
	}
}

func TestRenderFailureIsServerError(t *testing.T) {
	app := newTestApp(t)
	app.renderer.fails = true

	rec := app.do(http.MethodGet, "/about/", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when rendering fails, got %d", rec.Code)
	}
}

func TestStaticPagesRender(t *testing.T) {
	app := newTestApp(t)
	for _, page := range []string{"about", "privacy", "terms", "contact"} {
		rec := app.do(http.MethodGet, "/"+page+"/", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", page, rec.Code)
		}
		if name, _ := app.renderer.last(); name != page {
			t.Fatalf("expected %s template, got %q", page, name)
		}
	}
}
