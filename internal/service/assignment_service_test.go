package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

func TestAssign_EndUserForbidden(t *testing.T) {
	h := newHarness(t)
	ticket := h.create(t, domain.TicketPriorityLow)

	_, err := h.assignments.Assign(context.Background(), requester, ticket.ID, agent.UserID, ticket.Version)

	requireCode(t, err, apperrors.CodeForbidden)
	assert.Len(t, h.trail(t, ticket.ID), 1)
}

func TestAssign_ManagerOpensNewTicket(t *testing.T) {
	h := newHarness(t)
	ticket := h.create(t, domain.TicketPriorityLow)

	assigned, err := h.assignments.Assign(context.Background(), manager, ticket.ID, outsider.UserID, ticket.Version)

	require.NoError(t, err)
	require.NotNil(t, assigned.AssigneeID)
	assert.Equal(t, outsider.UserID, *assigned.AssigneeID)
	assert.Nil(t, assigned.TeamID)
	assert.Equal(t, domain.TicketStatusOpen, assigned.Status)
	assert.Equal(t, ticket.DueAt, assigned.DueAt)
	assert.Len(t, h.events.ofType(events.EventTicketAssigned), 1)
	assert.Len(t, h.events.ofType(events.EventTicketStatusChanged), 1)
}

func TestAssign_TeamMemberTakesTicketClearsTeam(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)
	ticket, err := h.assignments.AssignToTeam(ctx, manager, ticket.ID, teamNet, ticket.Version)
	require.NoError(t, err)

	_, err = h.assignments.Assign(ctx, agent, ticket.ID, outsider.UserID, ticket.Version)
	requireCode(t, err, apperrors.CodeForbidden)

	assigned, err := h.assignments.Assign(ctx, agent, ticket.ID, agent.UserID, ticket.Version)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssigneeID)
	assert.Equal(t, agent.UserID, *assigned.AssigneeID)
	assert.Nil(t, assigned.TeamID)

	trail := h.trail(t, ticket.ID)
	last := trail[len(trail)-1]
	assert.Equal(t, domain.ActionAssigned, last.Action)
	assert.Equal(t, teamNet, *(last.Details["previous_team_id"].(*string)))
}

func TestAssign_LeaderMayAssignOutsideTeam(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)
	ticket, err := h.assignments.AssignToTeam(ctx, manager, ticket.ID, teamNet, ticket.Version)
	require.NoError(t, err)

	assigned, err := h.assignments.Assign(ctx, leader, ticket.ID, outsider.UserID, ticket.Version)

	require.NoError(t, err)
	assert.Equal(t, outsider.UserID, *assigned.AssigneeID)
}

func TestAssign_TargetMustBeActiveStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)

	_, err := h.assignments.Assign(ctx, manager, ticket.ID, requester.UserID, ticket.Version)
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.assignments.Assign(ctx, manager, ticket.ID, "s9", ticket.Version)
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.assignments.Assign(ctx, manager, ticket.ID, "", ticket.Version)
	requireCode(t, err, apperrors.CodeValidation)
}

func TestAssign_SameAssigneeRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)
	ticket, err := h.assignments.Assign(ctx, manager, ticket.ID, agent.UserID, ticket.Version)
	require.NoError(t, err)

	_, err = h.assignments.Assign(ctx, manager, ticket.ID, agent.UserID, ticket.Version)

	requireCode(t, err, apperrors.CodeValidation)
}

func TestAssignToTeam_ClearsAssignee(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)
	ticket, err := h.assignments.Assign(ctx, manager, ticket.ID, outsider.UserID, ticket.Version)
	require.NoError(t, err)

	_, err = h.assignments.AssignToTeam(ctx, leader, ticket.ID, teamNet, ticket.Version)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.assignments.AssignToTeam(ctx, manager, ticket.ID, "no-such-team", ticket.Version)
	requireCode(t, err, apperrors.CodeNotFound)

	ticket, err = h.assignments.AssignToTeam(ctx, manager, ticket.ID, teamNet, ticket.Version)
	require.NoError(t, err)
	assert.Nil(t, ticket.AssigneeID)
	require.NotNil(t, ticket.TeamID)
	assert.Equal(t, teamNet, *ticket.TeamID)
}

func TestAssign_ClosedTicketRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.resolved(t)
	ticket, err := h.tickets.CloseTicket(ctx, agent, ticket.ID, ticket.Version)
	require.NoError(t, err)

	_, err = h.assignments.Assign(ctx, manager, ticket.ID, agent.UserID, ticket.Version)

	requireCode(t, err, apperrors.CodeInvalidTransition)
}

func TestAutoAssign_PicksActiveTeamMember(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)

	_, err := h.assignments.AutoAssign(ctx, manager, ticket.ID, ticket.Version)
	requireCode(t, err, apperrors.CodeValidation)

	ticket, err = h.assignments.AssignToTeam(ctx, manager, ticket.ID, teamNet, ticket.Version)
	require.NoError(t, err)

	_, err = h.assignments.AutoAssign(ctx, agent, ticket.ID, ticket.Version)
	requireCode(t, err, apperrors.CodeForbidden)

	assigned, err := h.assignments.AutoAssign(ctx, leader, ticket.ID, ticket.Version)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssigneeID)
	assert.Contains(t, []string{agent.UserID, leader.UserID}, *assigned.AssigneeID)
	assert.Nil(t, assigned.TeamID)
}
