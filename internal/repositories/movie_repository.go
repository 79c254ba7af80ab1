package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/moviehub/backend/internal/db"
	"github.com/moviehub/backend/internal/models"
)

const movieColumns = `m.id, m.external_id, m.title, m.original_title, m.overview,
        m.poster_path, m.poster_url, m.backdrop_path, m.release_date, m.runtime,
        m.vote_average, m.vote_count, m.popularity, m.featured, m.created_at, m.updated_at`

// PostgresMovieRepository provides PostgreSQL-backed persistence for movies.
type PostgresMovieRepository struct {
	pool db.Pool
}

// NewPostgresMovieRepository constructs a movie repository backed by PostgreSQL.
func NewPostgresMovieRepository(pool db.Pool) *PostgresMovieRepository {
	return &PostgresMovieRepository{pool: pool}
}

// Recent returns the most recently created movies.
func (r *PostgresMovieRepository) Recent(ctx context.Context, limit int) ([]models.Movie, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+movieColumns+`
        FROM movies m
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent movies: %w", err)
	}
	return collectMovies(rows)
}

// TopRated orders movies by vote average then vote count, missing values last.
func (r *PostgresMovieRepository) TopRated(ctx context.Context, limit, offset int) ([]models.Movie, int, error) {
	return r.page(ctx, `
        SELECT COUNT(*) FROM movies m
    `, `
        SELECT `+movieColumns+`
        FROM movies m
        ORDER BY (m.vote_average IS NULL), m.vote_average DESC,
                 (m.vote_count IS NULL), m.vote_count DESC, m.id
        LIMIT $1 OFFSET $2
    `, limit, offset)
}

// Upcoming returns movies releasing on or after from, soonest first then by title.
func (r *PostgresMovieRepository) Upcoming(ctx context.Context, from time.Time, limit, offset int) ([]models.Movie, int, error) {
	return r.page(ctx, `
        SELECT COUNT(*) FROM movies m WHERE m.release_date >= $1
    `, `
        SELECT `+movieColumns+`
        FROM movies m
        WHERE m.release_date >= $3
        ORDER BY m.release_date, m.title, m.id
        LIMIT $1 OFFSET $2
    `, limit, offset, from)
}

// ByGenre returns the movies linked to a genre, newest release first then by title.
func (r *PostgresMovieRepository) ByGenre(ctx context.Context, genreID int64, limit, offset int) ([]models.Movie, int, error) {
	return r.page(ctx, `
        SELECT COUNT(*) FROM movie_genres mg WHERE mg.genre_id = $1
    `, `
        SELECT `+movieColumns+`
        FROM movies m
        JOIN movie_genres mg ON mg.movie_id = m.id
        WHERE mg.genre_id = $3
        ORDER BY (m.release_date IS NULL), m.release_date DESC, m.title, m.id
        LIMIT $1 OFFSET $2
    `, limit, offset, genreID)
}

// page runs a count query (taking the optional filter as $1) and a listing
// query (taking limit, offset and then the filter).
func (r *PostgresMovieRepository) page(ctx context.Context, countSQL, listSQL string, limit, offset int, filter ...any) ([]models.Movie, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int
	if err := conn.QueryRow(ctx, countSQL, filter...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count movies: %w", err)
	}

	args := append([]any{limit, offset}, filter...)
	rows, err := conn.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query movies: %w", err)
	}
	movies, err := collectMovies(rows)
	if err != nil {
		return nil, 0, err
	}
	return movies, total, nil
}

// FindByExternalID fetches a movie by its vendor id together with its genres.
func (r *PostgresMovieRepository) FindByExternalID(ctx context.Context, externalID int64) (models.Movie, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Movie{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	movie, err := scanMovie(conn.QueryRow(ctx, `
        SELECT `+movieColumns+` FROM movies m WHERE m.external_id = $1
    `, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Movie{}, ErrNotFound
		}
		return models.Movie{}, fmt.Errorf("select movie: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT g.id, g.name, g.external_id, g.slug
        FROM genres g
        JOIN movie_genres mg ON mg.genre_id = g.id
        WHERE mg.movie_id = $1
        ORDER BY g.name
    `, movie.ID)
	if err != nil {
		return models.Movie{}, fmt.Errorf("query movie genres: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.ExternalID, &g.Slug); err != nil {
			return models.Movie{}, fmt.Errorf("scan movie genre: %w", err)
		}
		movie.Genres = append(movie.Genres, g)
	}
	if err := rows.Err(); err != nil {
		return models.Movie{}, fmt.Errorf("iterate movie genres: %w", err)
	}
	return movie, nil
}

// ImportPage writes one page of vendor movies in a single transaction. Movies
// already stored are skipped unless overwrite is set. Genre links resolve by
// vendor genre id; unknown ids are ignored and existing links are kept.
func (r *PostgresMovieRepository) ImportPage(ctx context.Context, movies []models.MovieImport, overwrite bool) (models.ImportResult, error) {
	var result models.ImportResult
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		result = models.ImportResult{}
		for _, m := range movies {
			movie, written, err := importMovie(ctx, tx, m, overwrite)
			if err != nil {
				return err
			}
			if len(m.GenreExternalIDs) > 0 {
				if _, err := tx.Exec(ctx, `
                    INSERT INTO movie_genres (movie_id, genre_id)
                    SELECT $1, g.id FROM genres g WHERE g.external_id = ANY($2)
                    ON CONFLICT DO NOTHING
                `, movie.ID, m.GenreExternalIDs); err != nil {
					return fmt.Errorf("link genres for movie %d: %w", m.ExternalID, err)
				}
			}
			if written {
				result.Imported++
				result.Written = append(result.Written, movie)
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return models.ImportResult{}, fmt.Errorf("import movies: %w", err)
	}
	return result, nil
}

func importMovie(ctx context.Context, tx pgx.Tx, m models.MovieImport, overwrite bool) (models.Movie, bool, error) {
	existing, err := scanMovie(tx.QueryRow(ctx, `
        SELECT `+movieColumns+` FROM movies m WHERE m.external_id = $1
    `, m.ExternalID))
	switch {
	case err == nil:
		if !overwrite {
			return existing, false, nil
		}
		updated, err := scanMovie(tx.QueryRow(ctx, `
            UPDATE movies m SET
                title = $2, original_title = $3, overview = $4, poster_path = $5,
                backdrop_path = $6, release_date = $7, vote_average = $8,
                vote_count = $9, popularity = $10, updated_at = NOW()
            WHERE m.id = $1
            RETURNING `+movieColumns,
			existing.ID, m.Title, m.OriginalTitle, m.Overview, m.PosterPath,
			m.BackdropPath, m.ReleaseDate, m.VoteAverage, m.VoteCount, m.Popularity))
		if err != nil {
			return models.Movie{}, false, fmt.Errorf("update movie %d: %w", m.ExternalID, err)
		}
		return updated, true, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return models.Movie{}, false, fmt.Errorf("select movie %d: %w", m.ExternalID, err)
	}

	inserted, err := scanMovie(tx.QueryRow(ctx, `
        INSERT INTO movies AS m (external_id, title, original_title, overview, poster_path,
            backdrop_path, release_date, vote_average, vote_count, popularity)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING `+movieColumns,
		m.ExternalID, m.Title, m.OriginalTitle, m.Overview, m.PosterPath,
		m.BackdropPath, m.ReleaseDate, m.VoteAverage, m.VoteCount, m.Popularity))
	if err != nil {
		return models.Movie{}, false, fmt.Errorf("insert movie %d: %w", m.ExternalID, err)
	}
	return inserted, true, nil
}

// MarkPosterMirrored records where a movie's poster was copied to.
func (r *PostgresMovieRepository) MarkPosterMirrored(ctx context.Context, movieID int64, location string) error {
	return r.exec(ctx, `
        UPDATE movies SET poster_url = $2, updated_at = NOW() WHERE id = $1
    `, movieID, location)
}

// SetFeatured flags or unflags a movie for the home page.
func (r *PostgresMovieRepository) SetFeatured(ctx context.Context, movieID int64, featured bool) error {
	return r.exec(ctx, `
        UPDATE movies SET featured = $2, updated_at = NOW() WHERE id = $1
    `, movieID, featured)
}

func (r *PostgresMovieRepository) exec(ctx context.Context, sql string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update movie: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMovie(row pgx.Row) (models.Movie, error) {
	var m models.Movie
	err := row.Scan(
		&m.ID, &m.ExternalID, &m.Title, &m.OriginalTitle, &m.Overview,
		&m.PosterPath, &m.PosterURL, &m.BackdropPath, &m.ReleaseDate, &m.Runtime,
		&m.VoteAverage, &m.VoteCount, &m.Popularity, &m.Featured, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func collectMovies(rows pgx.Rows) ([]models.Movie, error) {
	defer rows.Close()

	var movies []models.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}
	return movies, nil
}
