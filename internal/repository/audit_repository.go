package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/helpdesk/internal/domain"
)

// AuditQuery selects audit entries. Empty fields do not filter.
type AuditQuery struct {
	TicketID string
	Actor    string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// AuditRepository reads the append-only audit log. Entries are written only
// through TicketStore.Create and TicketStore.Commit.
type AuditRepository interface {
	// Query returns matching entries oldest first together with the total match count.
	Query(ctx context.Context, q AuditQuery) ([]domain.AuditLogEntry, int, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func insertAudit(ctx context.Context, tx pgx.Tx, entry *domain.AuditLogEntry) error {
	const query = `
        INSERT INTO audit_log (actor, action, ticket_id, before_version, after_version, from_status, to_status, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`
	return tx.QueryRow(ctx, query,
		entry.Actor,
		entry.Action,
		entry.TicketID,
		entry.BeforeVersion,
		entry.AfterVersion,
		entry.FromStatus,
		entry.ToStatus,
		entry.Details,
		entry.Timestamp,
	).Scan(&entry.ID)
}

func (r *auditRepository) Query(ctx context.Context, q AuditQuery) ([]domain.AuditLogEntry, int, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if q.TicketID != "" {
		args = append(args, q.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if q.Actor != "" {
		args = append(args, q.Actor)
		clauses = append(clauses, fmt.Sprintf("actor=$%d", len(args)))
	}
	if q.From != nil {
		args = append(args, *q.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.To != nil {
		args = append(args, *q.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := page(q.Limit, q.Offset)
	query := fmt.Sprintf(`
        SELECT id, actor, action, ticket_id, before_version, after_version, from_status, to_status, details, created_at
        FROM audit_log WHERE %s ORDER BY id ASC LIMIT %d OFFSET %d`, where, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.AuditLogEntry
	for rows.Next() {
		var entry domain.AuditLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Actor,
			&entry.Action,
			&entry.TicketID,
			&entry.BeforeVersion,
			&entry.AfterVersion,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Details,
			&entry.Timestamp,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, entry)
	}
	return result, total, rows.Err()
}
