package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndPromote(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice")

	dup := models.User{
		ID:        uuid.NewString(),
		Username:  user.Username,
		Password:  "another-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate username, got %v", err)
	}

	fetched, err := repo.FindByUsername(ctx, user.Username)
	if err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if fetched.ID != user.ID || fetched.Password != user.Password || fetched.IsStaff {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	if err := repo.SetStaff(ctx, user.Username, true); err != nil {
		t.Fatalf("set staff: %v", err)
	}
	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if !fetched.IsStaff {
		t.Fatal("expected user to be staff")
	}

	if err := repo.SetStaff(ctx, "nobody", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound promoting missing user, got %v", err)
	}
	if _, err := repo.FindByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "owner")

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := auth.Session{Token: uuid.NewString(), UserID: user.ID, ExpiresAt: expires}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.Token)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != session.UserID || !timesClose(loaded.ExpiresAt, expires, time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	updated := session
	updated.ExpiresAt = expires.Add(48 * time.Hour)
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("update session: %v", err)
	}
	loaded, err = store.Find(ctx, session.Token)
	if err != nil {
		t.Fatalf("find session after update: %v", err)
	}
	if !timesClose(loaded.ExpiresAt, updated.ExpiresAt, time.Millisecond) {
		t.Fatalf("expected updated expiry, got %v", loaded.ExpiresAt)
	}

	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("expected deleting twice to succeed, got %v", err)
	}

	stale := auth.Session{Token: uuid.NewString(), UserID: user.ID, ExpiresAt: time.Now().UTC().Add(-time.Hour)}
	if err := store.Save(ctx, stale); err != nil {
		t.Fatalf("save stale session: %v", err)
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save live session: %v", err)
	}
	purged, err := store.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged session, got %d", purged)
	}
	if _, err := store.Find(ctx, session.Token); err != nil {
		t.Fatalf("expected live session to survive purge, got %v", err)
	}
}

func TestPostgresGenreRepository_SyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresGenreRepository(testPool)
	input := []models.GenreImport{
		{ExternalID: 28, Name: "Action"},
		{ExternalID: 878, Name: "Science Fiction"},
		{ExternalID: 10770, Name: "TV Movie"},
	}

	first, err := repo.SyncGenres(ctx, input)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.Created != 3 || first.Updated != 0 {
		t.Fatalf("unexpected first sync result: %+v", first)
	}

	before, total, err := repo.List(ctx, 50, 0)
	if err != nil {
		t.Fatalf("list genres: %v", err)
	}
	if total != 3 || len(before) != 3 {
		t.Fatalf("expected 3 genres, got total=%d len=%d", total, len(before))
	}

	input[0].Name = "Action & Adventure"
	second, err := repo.SyncGenres(ctx, input)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Created != 0 || second.Updated != 3 {
		t.Fatalf("unexpected second sync result: %+v", second)
	}

	after, total, err := repo.List(ctx, 50, 0)
	if err != nil {
		t.Fatalf("list genres after resync: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected resync to keep 3 genres, got %d", total)
	}

	renamed, err := repo.FindBySlug(ctx, "action")
	if err != nil {
		t.Fatalf("find renamed genre by original slug: %v", err)
	}
	if renamed.Name != "Action & Adventure" {
		t.Fatalf("expected renamed genre, got %+v", renamed)
	}

	slugsBefore := map[int64]string{}
	for _, g := range before {
		slugsBefore[g.ID] = g.Slug
	}
	for _, g := range after {
		if slugsBefore[g.ID] != g.Slug {
			t.Fatalf("slug changed for genre %d: %q -> %q", g.ID, slugsBefore[g.ID], g.Slug)
		}
	}
}

func TestPostgresGenreRepository_MatchesStaffGenreByName(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresGenreRepository(testPool)
	local, err := repo.Create(ctx, "Drama", nil)
	if err != nil {
		t.Fatalf("create genre: %v", err)
	}

	result, err := repo.SyncGenres(ctx, []models.GenreImport{{ExternalID: 18, Name: "Drama"}})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Updated != 1 || result.Created != 0 {
		t.Fatalf("expected the staff genre to be adopted, got %+v", result)
	}

	adopted, err := repo.FindByID(ctx, local.ID)
	if err != nil {
		t.Fatalf("find genre: %v", err)
	}
	if adopted.ExternalID == nil || *adopted.ExternalID != 18 {
		t.Fatalf("expected external id 18, got %+v", adopted.ExternalID)
	}
}

func TestPostgresGenreRepository_CollidingSlugsStayDistinct(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresGenreRepository(testPool)
	result, err := repo.SyncGenres(ctx, []models.GenreImport{
		{ExternalID: 1, Name: "Sci-Fi"},
		{ExternalID: 2, Name: "Sci Fi"},
		{ExternalID: 3, Name: "sci fi!"},
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Created != 3 {
		t.Fatalf("expected 3 created genres, got %+v", result)
	}

	genres, _, err := repo.List(ctx, 50, 0)
	if err != nil {
		t.Fatalf("list genres: %v", err)
	}
	seen := map[string]bool{}
	for _, g := range genres {
		if seen[g.Slug] {
			t.Fatalf("duplicate slug %q", g.Slug)
		}
		seen[g.Slug] = true
	}
	for _, want := range []string{"sci-fi", "sci-fi-1", "sci-fi-2"} {
		if !seen[want] {
			t.Fatalf("expected slug %q among %v", want, seen)
		}
	}

	if _, err := repo.Create(ctx, "Sci-Fi", nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}
}

func TestPostgresMovieRepository_ImportPage(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	genres := NewPostgresGenreRepository(testPool)
	if _, err := genres.SyncGenres(ctx, []models.GenreImport{{ExternalID: 28, Name: "Action"}}); err != nil {
		t.Fatalf("sync genres: %v", err)
	}

	repo := NewPostgresMovieRepository(testPool)
	page := []models.MovieImport{
		{ExternalID: 550, Title: "Fight Club", OriginalTitle: "Fight Club", GenreExternalIDs: []int64{28, 9999}},
		{ExternalID: 603, Title: "The Matrix", OriginalTitle: "The Matrix"},
	}

	first, err := repo.ImportPage(ctx, page, false)
	if err != nil {
		t.Fatalf("import page: %v", err)
	}
	if first.Imported != 2 || first.Skipped != 0 || len(first.Written) != 2 {
		t.Fatalf("unexpected first import: %+v", first)
	}

	page[0].Title = "Fight Club (Remastered)"
	second, err := repo.ImportPage(ctx, page, false)
	if err != nil {
		t.Fatalf("reimport page: %v", err)
	}
	if second.Imported != 0 || second.Skipped != 2 {
		t.Fatalf("expected reimport without overwrite to skip, got %+v", second)
	}
	movie, err := repo.FindByExternalID(ctx, 550)
	if err != nil {
		t.Fatalf("find movie: %v", err)
	}
	if movie.Title != "Fight Club" {
		t.Fatalf("expected title to be untouched, got %q", movie.Title)
	}
	if len(movie.Genres) != 1 || movie.Genres[0].Name != "Action" {
		t.Fatalf("expected only the known genre to be linked, got %+v", movie.Genres)
	}

	third, err := repo.ImportPage(ctx, page, true)
	if err != nil {
		t.Fatalf("overwrite page: %v", err)
	}
	if third.Imported != 2 {
		t.Fatalf("expected overwrite to write both movies, got %+v", third)
	}
	movie, err = repo.FindByExternalID(ctx, 550)
	if err != nil {
		t.Fatalf("find movie after overwrite: %v", err)
	}
	if movie.Title != "Fight Club (Remastered)" || movie.UpdatedAt == nil {
		t.Fatalf("expected overwritten movie, got %+v", movie)
	}

	action, err := genres.FindBySlug(ctx, "action")
	if err != nil {
		t.Fatalf("find genre: %v", err)
	}
	inGenre, total, err := repo.ByGenre(ctx, action.ID, 24, 0)
	if err != nil {
		t.Fatalf("by genre: %v", err)
	}
	if total != 1 || len(inGenre) != 1 || *inGenre[0].ExternalID != 550 {
		t.Fatalf("unexpected genre listing: total=%d %+v", total, inGenre)
	}

	if err := repo.MarkPosterMirrored(ctx, movie.ID, "https://cdn.example.com/posters/550.jpg"); err != nil {
		t.Fatalf("mark poster mirrored: %v", err)
	}
	movie, err = repo.FindByExternalID(ctx, 550)
	if err != nil {
		t.Fatalf("find movie after mirror: %v", err)
	}
	if movie.PosterURL == nil || *movie.PosterURL != "https://cdn.example.com/posters/550.jpg" {
		t.Fatalf("expected mirrored poster url, got %v", movie.PosterURL)
	}

	if err := repo.SetFeatured(ctx, -1, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound featuring missing movie, got %v", err)
	}
}

func TestPostgresMovieRepository_Listings(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresMovieRepository(testPool)
	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	day := func(offset int) *time.Time {
		d := today.AddDate(0, 0, offset)
		return &d
	}
	score := func(v float64) *float64 { return &v }
	votes := func(v int) *int { return &v }

	_, err := repo.ImportPage(ctx, []models.MovieImport{
		{ExternalID: 1, Title: "Yesterday", ReleaseDate: day(-1), VoteAverage: score(9.1), VoteCount: votes(10)},
		{ExternalID: 2, Title: "Today", ReleaseDate: day(0), VoteAverage: score(7.5), VoteCount: votes(100)},
		{ExternalID: 3, Title: "Next Week", ReleaseDate: day(7), VoteAverage: score(7.5), VoteCount: votes(500)},
		{ExternalID: 4, Title: "Tomorrow", ReleaseDate: day(1)},
		{ExternalID: 5, Title: "Undated"},
	}, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	upcoming, total, err := repo.Upcoming(ctx, today, 24, 0)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 upcoming movies, got %d", total)
	}
	assertTitles(t, upcoming, "Today", "Tomorrow", "Next Week")

	rated, total, err := repo.TopRated(ctx, 24, 0)
	if err != nil {
		t.Fatalf("top rated: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 movies, got %d", total)
	}
	assertTitles(t, rated[:3], "Yesterday", "Next Week", "Today")
	for _, m := range rated[3:] {
		if m.VoteAverage != nil {
			t.Fatalf("expected unrated movies last, got %+v", m)
		}
	}

	second, total, err := repo.TopRated(ctx, 2, 2)
	if err != nil {
		t.Fatalf("top rated page 2: %v", err)
	}
	if total != 5 || len(second) != 2 || second[0].Title != "Today" {
		t.Fatalf("unexpected second page: total=%d %+v", total, second)
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent movies, got %d", len(recent))
	}
}

func TestPostgresWatchlistRepository_ToggleTwice(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "watcher")
	repo := NewPostgresWatchlistRepository(testPool)
	item := models.WatchlistItem{
		UserID:     user.ID,
		MovieID:    550,
		Title:      "Fight Club",
		PosterPath: "/poster.jpg",
		AddedAt:    time.Now().UTC(),
	}

	added, err := repo.Toggle(ctx, item)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !added {
		t.Fatal("expected first toggle to add")
	}

	present, err := repo.Contains(ctx, user.ID, 550)
	if err != nil || !present {
		t.Fatalf("expected item present, got %v (err %v)", present, err)
	}

	items, err := repo.ListForUser(ctx, user.ID, 48)
	if err != nil {
		t.Fatalf("list watchlist: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Fight Club" || items[0].PosterPath != "/poster.jpg" {
		t.Fatalf("unexpected watchlist: %+v", items)
	}

	added, err = repo.Toggle(ctx, item)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if added {
		t.Fatal("expected second toggle to remove")
	}

	present, err = repo.Contains(ctx, user.ID, 550)
	if err != nil || present {
		t.Fatalf("expected item gone, got %v (err %v)", present, err)
	}

	if err := repo.Remove(ctx, user.ID, 550); err != nil {
		t.Fatalf("removing a missing item should succeed, got %v", err)
	}
}

func TestPostgresWatchlistRepository_ConcurrentTogglesAgreeWithStoredState(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "racer")
	repo := NewPostgresWatchlistRepository(testPool)
	item := models.WatchlistItem{UserID: user.ID, MovieID: 603, Title: "The Matrix", AddedAt: time.Now().UTC()}

	const togglers = 8
	results := make(chan bool, togglers)
	errs := make(chan error, togglers)
	var wg sync.WaitGroup
	for i := 0; i < togglers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := repo.Toggle(ctx, item)
			if err != nil {
				errs <- err
				return
			}
			results <- added
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("toggle: %v", err)
	}

	balance := 0
	for added := range results {
		if added {
			balance++
		} else {
			balance--
		}
	}

	present, err := repo.Contains(ctx, user.ID, 603)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	// Each reported add that is not undone by a reported removal must be
	// visible, and vice versa.
	want := 0
	if present {
		want = 1
	}
	if balance != want {
		t.Fatalf("reported adds minus removals = %d, but item present = %v", balance, present)
	}
}

func TestPostgresReviewRepository_UpsertAverageAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	author := createTestUser(t, users, "critic")
	other := createTestUser(t, users, "bystander")

	repo := NewPostgresReviewRepository(testPool)
	rating := func(v int) *int { return &v }

	write := func(userID string, r *int, text string) {
		t.Helper()
		if err := repo.Upsert(ctx, models.Review{
			UserID:    userID,
			MovieID:   550,
			Rating:    r,
			Text:      text,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("upsert review: %v", err)
		}
	}

	write(author.ID, rating(6), "fine")
	write(author.ID, rating(8), "better on rewatch")

	list, err := repo.ListForMovie(ctx, 550)
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected a single review after two writes, got %d", len(list))
	}
	mine := list[0]
	if mine.Rating == nil || *mine.Rating != 8 || mine.Text != "better on rewatch" || mine.Username != "critic" {
		t.Fatalf("unexpected review: %+v", mine)
	}
	if mine.UpdatedAt == nil {
		t.Fatal("expected updated_at to be set by the second write")
	}

	write(other.ID, nil, "no score")
	avg, err := repo.AverageRating(ctx, 550)
	if err != nil {
		t.Fatalf("average rating: %v", err)
	}
	if avg == nil || *avg != 8 {
		t.Fatalf("expected unrated reviews to be ignored, got %v", avg)
	}

	none, err := repo.AverageRating(ctx, 603)
	if err != nil {
		t.Fatalf("average rating without reviews: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil average, got %v", *none)
	}

	if err := repo.Delete(ctx, mine.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner delete, got %v", err)
	}
	if _, err := repo.Find(ctx, mine.ID); err != nil {
		t.Fatalf("expected review to survive non-owner delete, got %v", err)
	}

	if err := repo.Delete(ctx, mine.ID, author.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := repo.Find(ctx, mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	byUser, err := repo.ListForUser(ctx, other.ID, 20)
	if err != nil {
		t.Fatalf("list user reviews: %v", err)
	}
	if len(byUser) != 1 || byUser[0].Rating != nil {
		t.Fatalf("unexpected user reviews: %+v", byUser)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE reviews, watchlist_items, movie_genres, movies, genres, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func assertTitles(t *testing.T, movies []models.Movie, want ...string) {
	t.Helper()
	if len(movies) != len(want) {
		t.Fatalf("expected %d movies, got %d", len(want), len(movies))
	}
	for i, m := range movies {
		if m.Title != want[i] {
			t.Fatalf("movie %d: expected %q, got %q", i, want[i], m.Title)
		}
	}
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
