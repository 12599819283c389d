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

// VisibilityScope restricts a listing to tickets a caller may see. Set
// parts are OR-ed together; All disables the restriction.
type VisibilityScope struct {
	All        bool
	CreatedBy  string
	AssigneeID string
	TeamIDs    []string
	Unowned    bool
}

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Scope      VisibilityScope
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Category   *domain.TicketCategory
	Limit      int
	Offset     int
}

// Mutation is one atomic commit: the new ticket state, the version it was
// computed from, its audit entry and any owned records created with it.
type Mutation struct {
	Ticket          *domain.Ticket
	ExpectedVersion int64
	Audit           *domain.AuditLogEntry
	Comment         *domain.Comment
	Feedback        *domain.Feedback
}

// TicketStore is the authoritative versioned record of tickets.
type TicketStore interface {
	// Create inserts a new ticket together with its creation audit entry.
	Create(ctx context.Context, ticket *domain.Ticket, entry *domain.AuditLogEntry) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Commit applies m only when the stored version equals m.ExpectedVersion.
	// On success m.Audit.ID holds the assigned sequence.
	Commit(ctx context.Context, m Mutation) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListOverdue returns active, not yet escalated tickets whose deadline is before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error)
	// ListResolvedBefore returns resolved tickets whose resolvedAt is before cutoff.
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres ticket store.
func NewTicketRepository(pool *pgxpool.Pool) TicketStore {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, category, status, priority, created_by, assignee_id, team_id,
               created_at, updated_at, due_at, sla_phase, phase_started_at, resolved_at, closed_at,
               resolution, reopen_count, escalated, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, entry *domain.AuditLogEntry) error {
	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, query, ticketArgs(ticket)...); err != nil {
		return translate(err)
	}
	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Commit(ctx context.Context, m Mutation) error {
	const query = `
        UPDATE tickets SET title=$2, description=$3, category=$4, status=$5, priority=$6, created_by=$7,
            assignee_id=$8, team_id=$9, created_at=$10, updated_at=$11, due_at=$12, sla_phase=$13,
            phase_started_at=$14, resolved_at=$15, closed_at=$16, resolution=$17, reopen_count=$18,
            escalated=$19, version=$20
        WHERE id=$1 AND version=$21`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	args := append(ticketArgs(m.Ticket), m.ExpectedVersion)
	cmd, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, m.Ticket.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	if m.Comment != nil {
		if err := insertComment(ctx, tx, m.Comment); err != nil {
			return err
		}
	}
	if m.Feedback != nil {
		if err := insertFeedback(ctx, tx, m.Feedback); err != nil {
			return err
		}
	}
	if err := insertAudit(ctx, tx, m.Audit); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if !filter.Scope.All {
		var scope []string
		if filter.Scope.CreatedBy != "" {
			args = append(args, filter.Scope.CreatedBy)
			scope = append(scope, fmt.Sprintf("created_by=$%d", len(args)))
		}
		if filter.Scope.AssigneeID != "" {
			args = append(args, filter.Scope.AssigneeID)
			scope = append(scope, fmt.Sprintf("assignee_id=$%d", len(args)))
		}
		if len(filter.Scope.TeamIDs) > 0 {
			args = append(args, filter.Scope.TeamIDs)
			scope = append(scope, fmt.Sprintf("team_id = ANY($%d)", len(args)))
		}
		if filter.Scope.Unowned {
			scope = append(scope, "(assignee_id IS NULL AND team_id IS NULL)")
		}
		if len(scope) == 0 {
			scope = append(scope, "FALSE")
		}
		clauses = append(clauses, "("+strings.Join(scope, " OR ")+")")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}

	limit, offset := page(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE status IN ('new','open','in_progress') AND escalated = FALSE AND due_at IS NOT NULL AND due_at < $1
        ORDER BY due_at ASC LIMIT $2`
	limit, _ = page(limit, 0)
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE status = 'resolved' AND resolved_at IS NOT NULL AND resolved_at < $1
        ORDER BY resolved_at ASC LIMIT $2`
	limit, _ = page(limit, 0)
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func ticketArgs(t *domain.Ticket) []any {
	return []any{
		t.ID,
		t.Title,
		t.Description,
		t.Category,
		t.Status,
		t.Priority,
		t.CreatedBy,
		t.AssigneeID,
		t.TeamID,
		t.CreatedAt,
		t.UpdatedAt,
		t.DueAt,
		t.SLAPhase,
		t.PhaseStartedAt,
		t.ResolvedAt,
		t.ClosedAt,
		t.Resolution,
		t.ReopenCount,
		t.Escalated,
		t.Version,
	}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedBy,
		&ticket.AssigneeID,
		&ticket.TeamID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.DueAt,
		&ticket.SLAPhase,
		&ticket.PhaseStartedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.Resolution,
		&ticket.ReopenCount,
		&ticket.Escalated,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
