package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/moviehub/backend/internal/db"
	"github.com/moviehub/backend/internal/models"
)

const reviewColumns = `r.id, r.user_id, u.username, r.external_movie_id, r.rating, r.text, r.created_at, r.updated_at`

// PostgresReviewRepository provides PostgreSQL-backed persistence for reviews.
type PostgresReviewRepository struct {
	pool db.Pool
}

// NewPostgresReviewRepository constructs a review repository backed by PostgreSQL.
func NewPostgresReviewRepository(pool db.Pool) *PostgresReviewRepository {
	return &PostgresReviewRepository{pool: pool}
}

// Upsert stores the user's review for a movie, replacing rating and text when
// one already exists.
func (r *PostgresReviewRepository) Upsert(ctx context.Context, review models.Review) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO reviews (user_id, external_movie_id, rating, text, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, external_movie_id)
        DO UPDATE SET rating = excluded.rating, text = excluded.text, updated_at = excluded.created_at
    `, review.UserID, review.MovieID, review.Rating, review.Text, review.CreatedAt)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

// Find fetches a review by id.
func (r *PostgresReviewRepository) Find(ctx context.Context, id int64) (models.Review, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Review{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	review, err := scanReview(conn.QueryRow(ctx, `
        SELECT `+reviewColumns+`
        FROM reviews r
        JOIN users u ON u.id = r.user_id
        WHERE r.id = $1
    `, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Review{}, ErrNotFound
		}
		return models.Review{}, fmt.Errorf("select review: %w", err)
	}
	return review, nil
}

// Delete removes a review owned by userID. It returns ErrNotFound when no such
// review belongs to the user.
func (r *PostgresReviewRepository) Delete(ctx context.Context, id int64, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM reviews WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForMovie returns every review of a movie, newest first.
func (r *PostgresReviewRepository) ListForMovie(ctx context.Context, movieID int64) ([]models.Review, error) {
	return r.list(ctx, `
        SELECT `+reviewColumns+`
        FROM reviews r
        JOIN users u ON u.id = r.user_id
        WHERE r.external_movie_id = $1
        ORDER BY r.created_at DESC, r.id DESC
    `, movieID)
}

// ListForUser returns the user's most recent reviews.
func (r *PostgresReviewRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Review, error) {
	return r.list(ctx, `
        SELECT `+reviewColumns+`
        FROM reviews r
        JOIN users u ON u.id = r.user_id
        WHERE r.user_id = $1
        ORDER BY r.created_at DESC, r.id DESC
        LIMIT $2
    `, userID, limit)
}

// AverageRating averages the non-null ratings of a movie. It returns nil when
// no review carries a rating.
func (r *PostgresReviewRepository) AverageRating(ctx context.Context, movieID int64) (*float64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var avg *float64
	if err := conn.QueryRow(ctx, `
        SELECT AVG(rating)::FLOAT8 FROM reviews WHERE external_movie_id = $1 AND rating IS NOT NULL
    `, movieID).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average rating: %w", err)
	}
	return avg, nil
}

func (r *PostgresReviewRepository) list(ctx context.Context, sql string, args ...any) ([]models.Review, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}

func scanReview(row pgx.Row) (models.Review, error) {
	var review models.Review
	var rating *int16
	err := row.Scan(&review.ID, &review.UserID, &review.Username, &review.MovieID,
		&rating, &review.Text, &review.CreatedAt, &review.UpdatedAt)
	if rating != nil {
		v := int(*rating)
		review.Rating = &v
	}
	return review, err
}
