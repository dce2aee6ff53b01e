package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vuny-labs/marketplace-service/internal/domain"
)

// StaffMessageRepository persists the staff chat transcript.
type StaffMessageRepository interface {
	Create(ctx context.Context, msg *domain.StaffMessage) error
	ListRecent(ctx context.Context, limit int) ([]domain.StaffMessage, error)
	DeleteAll(ctx context.Context) error
}

type staffMessageRepository struct {
	pool *pgxpool.Pool
}

// NewStaffMessageRepository instantiates repository.
func NewStaffMessageRepository(pool *pgxpool.Pool) StaffMessageRepository {
	return &staffMessageRepository{pool: pool}
}

func (r *staffMessageRepository) Create(ctx context.Context, msg *domain.StaffMessage) error {
	const query = `
        INSERT INTO staff_messages (sender_id, content, image_url)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.SenderID,
		msg.Content,
		msg.ImageURL,
	).Scan(&msg.ID, &msg.CreatedAt)
}

// ListRecent returns the newest messages in chronological order.
func (r *staffMessageRepository) ListRecent(ctx context.Context, limit int) ([]domain.StaffMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, sender_id, content, image_url, created_at
        FROM staff_messages ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffMessage
	for rows.Next() {
		var msg domain.StaffMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.Content,
			&msg.ImageURL,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Query runs newest-first for the LIMIT; readers want oldest-first.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

func (r *staffMessageRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM staff_messages`)
	return err
}
