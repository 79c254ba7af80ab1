package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/moviehub/backend/internal/db"
	"github.com/moviehub/backend/internal/models"
)

// PostgresWatchlistRepository provides PostgreSQL-backed persistence for watchlists.
type PostgresWatchlistRepository struct {
	pool db.Pool
}

// NewPostgresWatchlistRepository constructs a watchlist repository backed by PostgreSQL.
func NewPostgresWatchlistRepository(pool db.Pool) *PostgresWatchlistRepository {
	return &PostgresWatchlistRepository{pool: pool}
}

// Toggle deletes the item if present and inserts it otherwise. It reports
// whether the item ended up on the watchlist.
func (r *PostgresWatchlistRepository) Toggle(ctx context.Context, item models.WatchlistItem) (bool, error) {
	var added bool
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		added = false
		tag, err := tx.Exec(ctx, `
            DELETE FROM watchlist_items WHERE user_id = $1 AND external_movie_id = $2
        `, item.UserID, item.MovieID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}

		// A concurrent toggle may insert between the delete and the insert. The
		// loser then removes the committed row so every toggle flips the state.
		tag, err = tx.Exec(ctx, `
            INSERT INTO watchlist_items (user_id, external_movie_id, title, poster_path, added_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (user_id, external_movie_id) DO NOTHING
        `, item.UserID, item.MovieID, item.Title, item.PosterPath, item.AddedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			added = true
			return nil
		}
		_, err = tx.Exec(ctx, `
            DELETE FROM watchlist_items WHERE user_id = $1 AND external_movie_id = $2
        `, item.UserID, item.MovieID)
		return err
	})
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle watchlist item: %w", err)
	}
	return added, nil
}

// Remove deletes the item if present. Removing a missing item is not an error.
func (r *PostgresWatchlistRepository) Remove(ctx context.Context, userID string, movieID int64) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM watchlist_items WHERE user_id = $1 AND external_movie_id = $2
    `, userID, movieID); err != nil {
		return fmt.Errorf("delete watchlist item: %w", err)
	}
	return nil
}

// Contains reports whether the movie is on the user's watchlist.
func (r *PostgresWatchlistRepository) Contains(ctx context.Context, userID string, movieID int64) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM watchlist_items WHERE user_id = $1 AND external_movie_id = $2
        )
    `, userID, movieID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check watchlist item: %w", err)
	}
	return exists, nil
}

// ListForUser returns the user's watchlist, most recently added first.
func (r *PostgresWatchlistRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.WatchlistItem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, external_movie_id, title, poster_path, added_at
        FROM watchlist_items
        WHERE user_id = $1
        ORDER BY added_at DESC, id DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var items []models.WatchlistItem
	for rows.Next() {
		var item models.WatchlistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.MovieID, &item.Title, &item.PosterPath, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan watchlist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlist: %w", err)
	}
	return items, nil
}
