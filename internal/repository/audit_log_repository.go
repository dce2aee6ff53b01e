package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vuny-labs/marketplace-service/internal/domain"
)

// AuditLogRepository encapsulates the immutable audit trail.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository instantiates repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if entry.ActorName == "" {
		entry.ActorName = "system"
	}

	const query = `
        INSERT INTO audit_logs (type, message, actor_id, actor_name, target, meta)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.Type,
		entry.Message,
		entry.ActorID,
		entry.ActorName,
		entry.Target,
		metaJSON,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, type, message, actor_id, actor_name, target, meta, created_at
        FROM audit_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var metaJSON []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.Type,
			&entry.Message,
			&entry.ActorID,
			&entry.ActorName,
			&entry.Target,
			&metaJSON,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &entry.Meta)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
