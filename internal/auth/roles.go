package auth

import (
	"fmt"

	"github.com/deskflow/helpdesk/internal/domain"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// Operation names an action checked by the Gate.
type Operation string

const (
	OpCreateTicket       Operation = "create_ticket"
	OpViewTicket         Operation = "view_ticket"
	OpAddComment         Operation = "add_comment"
	OpAddInternalComment Operation = "add_internal_comment"
	OpSubmitFeedback     Operation = "submit_feedback"
	OpReopenTicket       Operation = "reopen_ticket"
	OpStartTicket        Operation = "start_ticket"
	OpResolveTicket      Operation = "resolve_ticket"
	OpCloseTicket        Operation = "close_ticket"
	OpUpdatePriority     Operation = "update_priority"
	OpAssign             Operation = "assign"
	OpAssignTeam         Operation = "assign_team"
	OpViewAudit          Operation = "view_audit"
	OpQueryAudit         Operation = "query_audit"
	OpViewSLA            Operation = "view_sla"
	OpEditSLA            Operation = "edit_sla"
	OpViewAllTickets     Operation = "view_all_tickets"
)

// Rule is the minimum role for an operation. Scoped rules additionally
// require the caller to be within reach of the ticket (see InScope).
// CrossTeam lifts the scope check for managers, who route work between teams.
type Rule struct {
	MinRole   domain.Role
	Scoped    bool
	CrossTeam bool
}

// DefaultRules is the single authorization table for the engine.
var DefaultRules = map[Operation]Rule{
	OpCreateTicket:       {MinRole: domain.RoleEndUser},
	OpViewTicket:         {MinRole: domain.RoleEndUser, Scoped: true},
	OpAddComment:         {MinRole: domain.RoleEndUser, Scoped: true},
	OpSubmitFeedback:     {MinRole: domain.RoleEndUser, Scoped: true},
	OpReopenTicket:       {MinRole: domain.RoleEndUser, Scoped: true},
	OpAddInternalComment: {MinRole: domain.RoleSupportStaff, Scoped: true},
	OpStartTicket:        {MinRole: domain.RoleSupportStaff, Scoped: true},
	OpResolveTicket:      {MinRole: domain.RoleSupportStaff, Scoped: true},
	OpCloseTicket:        {MinRole: domain.RoleSupportStaff, Scoped: true},
	OpUpdatePriority:     {MinRole: domain.RoleSupportStaff, Scoped: true},
	OpAssign:             {MinRole: domain.RoleSupportStaff, Scoped: true, CrossTeam: true},
	OpViewAudit:          {MinRole: domain.RoleSupportStaff, Scoped: true},
	OpViewSLA:            {MinRole: domain.RoleSupportStaff},
	OpAssignTeam:         {MinRole: domain.RoleManager},
	OpQueryAudit:         {MinRole: domain.RoleManager},
	OpEditSLA:            {MinRole: domain.RoleManager},
	OpViewAllTickets:     {MinRole: domain.RoleAdmin},
}

// Gate evaluates whether an identity may perform an operation on a ticket.
type Gate struct {
	rules map[Operation]Rule
}

// NewGate builds a gate over DefaultRules.
func NewGate() *Gate {
	return &Gate{rules: DefaultRules}
}

// Authorize returns a FORBIDDEN error when id may not perform op. ticket
// may be nil for operations that are not bound to a ticket.
func (g *Gate) Authorize(id domain.Identity, op Operation, ticket *domain.Ticket) error {
	if !id.Active {
		return apperrors.NewForbidden("account deactivated")
	}
	rule, ok := g.rules[op]
	if !ok {
		return apperrors.NewForbidden(fmt.Sprintf("operation %s not permitted", op))
	}
	if !id.Role.AtLeast(rule.MinRole) {
		return apperrors.NewForbidden(fmt.Sprintf("%s requires role %s", op, rule.MinRole))
	}
	if !rule.Scoped || ticket == nil {
		return nil
	}
	if rule.CrossTeam && id.Role.AtLeast(domain.RoleManager) {
		return nil
	}
	if !InScope(id, ticket) {
		return apperrors.NewForbidden("access denied")
	}
	return nil
}

// InScope reports whether the ticket is within id's reach. Admins reach
// every ticket. Support staff reach tickets they created, are assigned to,
// or that their team owns; managers additionally reach unowned tickets.
// End users reach tickets they created. This mirrors the list visibility
// in the ticket service.
func InScope(id domain.Identity, ticket *domain.Ticket) bool {
	switch {
	case id.Role.AtLeast(domain.RoleAdmin):
		return true
	case id.Role.AtLeast(domain.RoleSupportStaff):
		if ticket.CreatedBy == id.UserID {
			return true
		}
		if ticket.AssigneeID != nil && *ticket.AssigneeID == id.UserID {
			return true
		}
		if ticket.TeamID != nil && id.MemberOf(*ticket.TeamID) {
			return true
		}
		unowned := ticket.AssigneeID == nil && ticket.TeamID == nil
		return unowned && id.Role.AtLeast(domain.RoleManager)
	case id.Role.AtLeast(domain.RoleEndUser):
		return ticket.CreatedBy == id.UserID
	}
	return false
}
