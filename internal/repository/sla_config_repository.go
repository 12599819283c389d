package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/helpdesk/internal/domain"
)

// SLAConfigRepository holds the single active SLA configuration per priority.
type SLAConfigRepository interface {
	Get(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error)
	List(ctx context.Context) ([]domain.SLAConfig, error)
	Upsert(ctx context.Context, cfg *domain.SLAConfig) error
}

type slaConfigRepository struct {
	pool *pgxpool.Pool
}

// NewSLAConfigRepository builds repository.
func NewSLAConfigRepository(pool *pgxpool.Pool) SLAConfigRepository {
	return &slaConfigRepository{pool: pool}
}

func (r *slaConfigRepository) Get(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error) {
	const query = `SELECT priority, response_minutes, resolution_minutes, updated_at FROM sla_configs WHERE priority=$1`
	var cfg domain.SLAConfig
	if err := r.pool.QueryRow(ctx, query, priority).Scan(
		&cfg.Priority, &cfg.ResponseMinutes, &cfg.ResolutionMinutes, &cfg.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &cfg, nil
}

func (r *slaConfigRepository) List(ctx context.Context) ([]domain.SLAConfig, error) {
	const query = `SELECT priority, response_minutes, resolution_minutes, updated_at FROM sla_configs ORDER BY response_minutes ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAConfig
	for rows.Next() {
		var cfg domain.SLAConfig
		if err := rows.Scan(&cfg.Priority, &cfg.ResponseMinutes, &cfg.ResolutionMinutes, &cfg.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

func (r *slaConfigRepository) Upsert(ctx context.Context, cfg *domain.SLAConfig) error {
	const query = `
        INSERT INTO sla_configs (priority, response_minutes, resolution_minutes, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (priority) DO UPDATE
            SET response_minutes=EXCLUDED.response_minutes, resolution_minutes=EXCLUDED.resolution_minutes, updated_at=EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query, cfg.Priority, cfg.ResponseMinutes, cfg.ResolutionMinutes, cfg.UpdatedAt)
	return err
}
