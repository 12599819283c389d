package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/helpdesk/internal/domain"
)

// TeamRepository reads teams and their members.
type TeamRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	ListByMember(ctx context.Context, userID string) ([]domain.TeamMembership, error)
}

type teamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository constructs repository.
func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &teamRepository{pool: pool}
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	const query = `SELECT id, name, created_at FROM teams WHERE id=$1`
	var team domain.Team
	if err := r.pool.QueryRow(ctx, query, id).Scan(&team.ID, &team.Name, &team.CreatedAt); err != nil {
		return nil, translate(err)
	}

	rows, err := r.pool.Query(ctx, `SELECT user_id, role FROM team_members WHERE team_id=$1 ORDER BY user_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var member domain.TeamMember
		if err := rows.Scan(&member.UserID, &member.Role); err != nil {
			return nil, err
		}
		team.Members = append(team.Members, member)
	}
	return &team, rows.Err()
}

func (r *teamRepository) ListByMember(ctx context.Context, userID string) ([]domain.TeamMembership, error) {
	const query = `SELECT team_id, role FROM team_members WHERE user_id=$1 ORDER BY team_id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TeamMembership
	for rows.Next() {
		var membership domain.TeamMembership
		if err := rows.Scan(&membership.TeamID, &membership.Role); err != nil {
			return nil, err
		}
		result = append(result, membership)
	}
	return result, rows.Err()
}
