package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/sla"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// AssignmentService resolves ticket ownership. Exactly one of assignee and
// team is the active owner; each operation clears the other in the same commit.
type AssignmentService struct {
	mutator
	accounts repository.AccountRepository
	teams    repository.TeamRepository
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketStore
	AccountRepo repository.AccountRepository
	TeamRepo    repository.TeamRepository
	Gate        *auth.Gate
	Clock       *sla.SLAClock
	Audit       *AuditService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		mutator: mutator{
			tickets:    deps.TicketRepo,
			gate:       deps.Gate,
			clock:      deps.Clock,
			recorder:   deps.Audit,
			dispatcher: deps.Dispatcher,
			logger:     logger,
		},
		accounts: deps.AccountRepo,
		teams:    deps.TeamRepo,
	}
}

// Assign makes userID the individual owner of the ticket and clears its team.
// Managers may assign any active staff; a team leader may assign any active
// staff; a plain team member may assign within the owning team, including
// to themselves.
func (s *AssignmentService) Assign(ctx context.Context, id domain.Identity, ticketID, userID string, version int64) (*domain.Ticket, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidationError("assignee is required", map[string]any{"field": "assignee_id"})
	}
	current, err := s.loadAuthorized(ctx, id, auth.OpAssign, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(current, version); err != nil {
		return nil, err
	}
	if err := checkMutable(current); err != nil {
		return nil, err
	}

	memberOnly := false
	if !id.Role.AtLeast(domain.RoleManager) {
		if current.TeamID == nil || !id.MemberOf(*current.TeamID) {
			return nil, apperrors.NewForbidden("only managers or members of the owning team may assign")
		}
		memberOnly = !id.LeaderOf(*current.TeamID)
	}

	if _, err := s.activeStaff(ctx, userID); err != nil {
		return nil, err
	}
	if memberOnly {
		team, err := s.team(ctx, *current.TeamID)
		if err != nil {
			return nil, err
		}
		if !team.HasMember(userID) {
			return nil, apperrors.NewForbidden("team members may only assign within their team")
		}
	}
	if current.AssigneeID != nil && *current.AssigneeID == userID {
		return nil, apperrors.NewValidationError("ticket already assigned to this user", map[string]any{"assignee_id": userID})
	}

	next := s.next(current)
	next.AssigneeID = &userID
	next.TeamID = nil
	return s.commitOwnership(ctx, id.UserID, domain.ActionAssigned, current, next)
}

// AssignToTeam makes teamID the owner of the ticket and clears the assignee.
func (s *AssignmentService) AssignToTeam(ctx context.Context, id domain.Identity, ticketID, teamID string, version int64) (*domain.Ticket, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, apperrors.NewValidationError("team is required", map[string]any{"field": "team_id"})
	}
	current, err := s.loadAuthorized(ctx, id, auth.OpAssignTeam, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(current, version); err != nil {
		return nil, err
	}
	if err := checkMutable(current); err != nil {
		return nil, err
	}
	if _, err := s.team(ctx, teamID); err != nil {
		return nil, err
	}
	if current.TeamID != nil && *current.TeamID == teamID {
		return nil, apperrors.NewValidationError("ticket already owned by this team", map[string]any{"team_id": teamID})
	}

	next := s.next(current)
	next.TeamID = &teamID
	next.AssigneeID = nil
	return s.commitOwnership(ctx, id.UserID, domain.ActionTeamAssigned, current, next)
}

// AutoAssign picks an active staff member of the owning team for a
// team-owned ticket. The choice is stable for a given ticket and roster.
func (s *AssignmentService) AutoAssign(ctx context.Context, id domain.Identity, ticketID string, version int64) (*domain.Ticket, error) {
	current, err := s.loadAuthorized(ctx, id, auth.OpAssign, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(current, version); err != nil {
		return nil, err
	}
	if err := checkMutable(current); err != nil {
		return nil, err
	}
	if current.TeamID == nil {
		return nil, apperrors.NewValidationError("ticket has no owning team", nil)
	}
	if !id.Role.AtLeast(domain.RoleManager) && !id.LeaderOf(*current.TeamID) {
		return nil, apperrors.NewForbidden("only managers or the team leader may auto-assign")
	}
	team, err := s.team(ctx, *current.TeamID)
	if err != nil {
		return nil, err
	}

	var candidates []string
	for _, member := range team.Members {
		if _, err := s.activeStaff(ctx, member.UserID); err == nil {
			candidates = append(candidates, member.UserID)
		} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewConflict("no eligible staff in team", map[string]any{"team_id": team.ID})
	}
	sort.Strings(candidates)
	assignee := candidates[selectIndex(current.ID, len(candidates))]

	next := s.next(current)
	next.AssigneeID = &assignee
	next.TeamID = nil
	return s.commitOwnership(ctx, id.UserID, domain.ActionAssigned, current, next)
}

// commitOwnership finishes an ownership change: first ownership of a new
// ticket also opens it.
func (s *AssignmentService) commitOwnership(ctx context.Context, actor string, action domain.AuditAction, current, next *domain.Ticket) (*domain.Ticket, error) {
	opened := false
	if current.Status == domain.TicketStatusNew {
		next.Status = domain.TicketStatusOpen
		opened = true
		if err := s.clock.Recompute(ctx, next); err != nil {
			return nil, calendarError(err)
		}
	}
	if err := s.commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Audit: s.recorder.Entry(actor, action, current, next, map[string]any{
			"previous_assignee_id": current.AssigneeID,
			"previous_team_id":     current.TeamID,
			"assignee_id":          next.AssigneeID,
			"team_id":              next.TeamID,
		}),
	}); err != nil {
		return nil, err
	}

	evts := []events.Event{events.New(events.EventTicketAssigned, next, actor, next.UpdatedAt, events.TicketAssignedPayload{
		PreviousAssigneeID: current.AssigneeID,
		PreviousTeamID:     current.TeamID,
		AssigneeID:         next.AssigneeID,
		TeamID:             next.TeamID,
	})}
	if opened {
		evts = append(evts, statusChanged(current, next, actor))
	}
	s.publish(ctx, evts...)
	return next, nil
}

func (s *AssignmentService) activeStaff(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("staff account", map[string]any{"user_id": userID})
		}
		return nil, apperrors.NewUnavailable("identity provider", err)
	}
	if !account.Active || !account.Role.IsStaff() {
		return nil, apperrors.NewNotFound("staff account", map[string]any{"user_id": userID})
	}
	return account, nil
}

func (s *AssignmentService) team(ctx context.Context, teamID string) (*domain.Team, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("team", map[string]any{"team_id": teamID})
		}
		return nil, apperrors.NewUnavailable("team store", err)
	}
	return team, nil
}

func selectIndex(key string, length int) int {
	if length == 0 {
		return 0
	}
	sum := 0
	for _, ch := range key {
		sum += int(ch)
	}
	return sum % length
}
