package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/helpdesk/internal/domain"
)

// FeedbackRepository reads satisfaction feedback.
type FeedbackRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Feedback, error)
}

type feedbackRepository struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepository builds repository.
func NewFeedbackRepository(pool *pgxpool.Pool) FeedbackRepository {
	return &feedbackRepository{pool: pool}
}

func insertFeedback(ctx context.Context, tx pgx.Tx, feedback *domain.Feedback) error {
	const query = `
        INSERT INTO ticket_feedback (id, ticket_id, author_id, rating, comment, cycle, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := tx.Exec(ctx, query,
		feedback.ID,
		feedback.TicketID,
		feedback.AuthorID,
		feedback.Rating,
		feedback.Comment,
		feedback.Cycle,
		feedback.CreatedAt,
	)
	return translate(err)
}

func (r *feedbackRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Feedback, error) {
	const query = `
        SELECT id, ticket_id, author_id, rating, comment, cycle, created_at
        FROM ticket_feedback WHERE ticket_id=$1 ORDER BY cycle ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(&fb.ID, &fb.TicketID, &fb.AuthorID, &fb.Rating, &fb.Comment, &fb.Cycle, &fb.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}
