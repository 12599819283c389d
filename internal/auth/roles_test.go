package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deskflow/helpdesk/internal/domain"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

func strPtr(s string) *string { return &s }

func TestGate_Authorize(t *testing.T) {
	gate := NewGate()
	ticket := &domain.Ticket{ID: "t1", CreatedBy: "u1", TeamID: strPtr("net")}
	unowned := &domain.Ticket{ID: "t2", CreatedBy: "u1"}

	endUser := domain.Identity{UserID: "u1", Role: domain.RoleEndUser, Active: true}
	stranger := domain.Identity{UserID: "u2", Role: domain.RoleEndUser, Active: true}
	member := domain.Identity{UserID: "s1", Role: domain.RoleSupportStaff, Active: true,
		Teams: []domain.TeamMembership{{TeamID: "net", Role: domain.TeamRoleMember}}}
	outsider := domain.Identity{UserID: "s2", Role: domain.RoleSupportStaff, Active: true}
	manager := domain.Identity{UserID: "m1", Role: domain.RoleManager, Active: true}
	lead := domain.Identity{UserID: "m2", Role: domain.RoleManager, Active: true,
		Teams: []domain.TeamMembership{{TeamID: "net", Role: domain.TeamRoleLeader}}}
	admin := domain.Identity{UserID: "a1", Role: domain.RoleAdmin, Active: true}
	disabled := domain.Identity{UserID: "a2", Role: domain.RoleAdmin, Active: false}

	cases := []struct {
		name    string
		id      domain.Identity
		op      Operation
		ticket  *domain.Ticket
		allowed bool
	}{
		{"end user creates", endUser, OpCreateTicket, nil, true},
		{"end user views own", endUser, OpViewTicket, ticket, true},
		{"end user views other", stranger, OpViewTicket, ticket, false},
		{"end user resolves", endUser, OpResolveTicket, ticket, false},
		{"end user internal comment", endUser, OpAddInternalComment, ticket, false},
		{"end user reopens own", endUser, OpReopenTicket, ticket, true},
		{"member resolves team ticket", member, OpResolveTicket, ticket, true},
		{"outsider resolves", outsider, OpResolveTicket, ticket, false},
		{"staff views sla", outsider, OpViewSLA, nil, true},
		{"staff edits sla", member, OpEditSLA, nil, false},
		{"staff assigns team", member, OpAssignTeam, ticket, false},
		{"manager assigns team", manager, OpAssignTeam, ticket, true},
		{"manager queries audit", manager, OpQueryAudit, nil, true},
		{"manager views all", manager, OpViewAllTickets, nil, false},
		{"manager views other team ticket", manager, OpViewTicket, ticket, false},
		{"manager resolves other team ticket", manager, OpResolveTicket, ticket, false},
		{"manager closes other team ticket", manager, OpCloseTicket, ticket, false},
		{"manager reprioritizes other team ticket", manager, OpUpdatePriority, ticket, false},
		{"manager assigns other team ticket", manager, OpAssign, ticket, true},
		{"manager resolves own team ticket", lead, OpResolveTicket, ticket, true},
		{"manager starts unowned ticket", manager, OpStartTicket, unowned, true},
		{"staff starts unowned ticket", outsider, OpStartTicket, unowned, false},
		{"staff assigns other team ticket", outsider, OpAssign, ticket, false},
		{"admin resolves any ticket", admin, OpResolveTicket, ticket, true},
		{"admin views all", admin, OpViewAllTickets, nil, true},
		{"deactivated admin", disabled, OpViewTicket, ticket, false},
		{"unknown op", admin, Operation("delete_everything"), nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.Authorize(tc.id, tc.op, tc.ticket)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden), "got %v", err)
		})
	}
}

func TestInScope_Assignee(t *testing.T) {
	staff := domain.Identity{UserID: "s1", Role: domain.RoleSupportStaff, Active: true}
	ticket := &domain.Ticket{CreatedBy: "u1", AssigneeID: strPtr("s1")}

	assert.True(t, InScope(staff, ticket))
	ticket.AssigneeID = strPtr("s9")
	assert.False(t, InScope(staff, ticket))
}

func TestInScope_ManagerMatchesListVisibility(t *testing.T) {
	manager := domain.Identity{UserID: "m1", Role: domain.RoleManager, Active: true,
		Teams: []domain.TeamMembership{{TeamID: "db", Role: domain.TeamRoleMember}}}

	assert.True(t, InScope(manager, &domain.Ticket{CreatedBy: "u1"}))
	assert.True(t, InScope(manager, &domain.Ticket{CreatedBy: "u1", TeamID: strPtr("db")}))
	assert.True(t, InScope(manager, &domain.Ticket{CreatedBy: "u1", AssigneeID: strPtr("m1")}))
	assert.False(t, InScope(manager, &domain.Ticket{CreatedBy: "u1", TeamID: strPtr("net")}))
	assert.False(t, InScope(manager, &domain.Ticket{CreatedBy: "u1", AssigneeID: strPtr("s1")}))
}

func TestRole_Ranking(t *testing.T) {
	assert.True(t, domain.RoleAdmin.AtLeast(domain.RoleManager))
	assert.False(t, domain.RoleSupportStaff.AtLeast(domain.RoleManager))
	assert.False(t, domain.Role("ghost").AtLeast(domain.RoleEndUser))
	assert.True(t, domain.RoleManager.IsStaff())
	assert.False(t, domain.RoleEndUser.IsStaff())

	_, err := domain.ParseRole("ghost")
	assert.Error(t, err)
}
