package domain

import "time"

// AuditAction captures what an audit entry records.
type AuditAction string

const (
	ActionTicketCreated     AuditAction = "ticket.created"
	ActionTicketStarted     AuditAction = "ticket.started"
	ActionWorkStarted       AuditAction = "ticket.work_started"
	ActionPriorityChanged   AuditAction = "ticket.priority_changed"
	ActionAssigned          AuditAction = "ticket.assigned"
	ActionTeamAssigned      AuditAction = "ticket.team_assigned"
	ActionCommentAdded      AuditAction = "ticket.comment_added"
	ActionResolved          AuditAction = "ticket.resolved"
	ActionClosed            AuditAction = "ticket.closed"
	ActionReopened          AuditAction = "ticket.reopened"
	ActionFeedbackSubmitted AuditAction = "ticket.feedback_submitted"
	ActionEscalated         AuditAction = "ticket.escalated"
)

// AuditLogEntry is an immutable record of one accepted mutation. ID is a
// store-assigned monotonic sequence.
type AuditLogEntry struct {
	ID            int64
	Actor         string
	Action        AuditAction
	TicketID      string
	BeforeVersion int64
	AfterVersion  int64
	FromStatus    TicketStatus
	ToStatus      TicketStatus
	Details       map[string]any
	Timestamp     time.Time
}
