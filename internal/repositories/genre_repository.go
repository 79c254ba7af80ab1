package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/moviehub/backend/internal/db"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/slugs"
)

// PostgresGenreRepository provides PostgreSQL-backed persistence for genres.
type PostgresGenreRepository struct {
	pool db.Pool
}

// NewPostgresGenreRepository constructs a genre repository backed by PostgreSQL.
func NewPostgresGenreRepository(pool db.Pool) *PostgresGenreRepository {
	return &PostgresGenreRepository{pool: pool}
}

// List returns a page of genres ordered by name along with the total count.
func (r *PostgresGenreRepository) List(ctx context.Context, limit, offset int) ([]models.Genre, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM genres`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count genres: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT id, name, external_id, slug
        FROM genres
        ORDER BY name
        LIMIT $1 OFFSET $2
    `, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query genres: %w", err)
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.ExternalID, &g.Slug); err != nil {
			return nil, 0, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate genres: %w", err)
	}

	return genres, total, nil
}

// FindByID fetches a genre by primary key.
func (r *PostgresGenreRepository) FindByID(ctx context.Context, id int64) (models.Genre, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindBySlug fetches a genre by slug.
func (r *PostgresGenreRepository) FindBySlug(ctx context.Context, slug string) (models.Genre, error) {
	return r.findOne(ctx, `WHERE slug = $1`, slug)
}

func (r *PostgresGenreRepository) findOne(ctx context.Context, where string, arg any) (models.Genre, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Genre{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var g models.Genre
	err = conn.QueryRow(ctx, `SELECT id, name, external_id, slug FROM genres `+where, arg).
		Scan(&g.ID, &g.Name, &g.ExternalID, &g.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Genre{}, ErrNotFound
		}
		return models.Genre{}, fmt.Errorf("select genre: %w", err)
	}
	return g, nil
}

// Create inserts a genre with a freshly allocated slug.
func (r *PostgresGenreRepository) Create(ctx context.Context, name string, externalID *int64) (models.Genre, error) {
	name = strings.TrimSpace(name)
	var genre models.Genre
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		slug, err := slugs.Allocate(ctx, name, slugTaken(tx))
		if err != nil {
			return err
		}
		genre = models.Genre{Name: name, ExternalID: externalID, Slug: slug}
		return tx.QueryRow(ctx, `
            INSERT INTO genres (name, external_id, slug)
            VALUES ($1, $2, $3)
            RETURNING id
        `, name, externalID, slug).Scan(&genre.ID)
	})
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return models.Genre{}, ErrConflict
		}
		return models.Genre{}, fmt.Errorf("insert genre: %w", err)
	}
	return genre, nil
}

// SyncGenres upserts the vendor taxonomy in one transaction. Rows are matched by
// external id first, then by name; existing rows keep their slug.
func (r *PostgresGenreRepository) SyncGenres(ctx context.Context, genres []models.GenreImport) (models.GenreSyncResult, error) {
	var result models.GenreSyncResult
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		result = models.GenreSyncResult{}
		for _, g := range genres {
			created, err := syncGenre(ctx, tx, g)
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return models.GenreSyncResult{}, fmt.Errorf("sync genres: %w", ErrConflict)
		}
		return models.GenreSyncResult{}, fmt.Errorf("sync genres: %w", err)
	}
	return result, nil
}

func syncGenre(ctx context.Context, tx pgx.Tx, g models.GenreImport) (bool, error) {
	var id int64
	err := tx.QueryRow(ctx, `
        SELECT id FROM genres
        WHERE external_id = $1 OR (external_id IS NULL AND name = $2)
        ORDER BY (external_id IS NULL), id
        LIMIT 1
    `, g.ExternalID, g.Name).Scan(&id)
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx, `
            UPDATE genres SET name = $2, external_id = $3 WHERE id = $1
        `, id, g.Name, g.ExternalID); err != nil {
			return false, fmt.Errorf("update genre %d: %w", g.ExternalID, err)
		}
		return false, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return false, fmt.Errorf("match genre %d: %w", g.ExternalID, err)
	}

	slug, err := slugs.Allocate(ctx, g.Name, slugTaken(tx))
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO genres (name, external_id, slug) VALUES ($1, $2, $3)
    `, g.Name, g.ExternalID, slug); err != nil {
		return false, fmt.Errorf("insert genre %d: %w", g.ExternalID, err)
	}
	return true, nil
}

func slugTaken(tx pgx.Tx) slugs.TakenFunc {
	return func(ctx context.Context, candidate string) (bool, error) {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM genres WHERE slug = $1)`, candidate).Scan(&exists)
		return exists, err
	}
}
