package events

import (
	"fmt"
	"time"

	"github.com/deskflow/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketResolved      EventType = "ticket_resolved"
	EventTicketReopened      EventType = "ticket_reopened"
)

// Event represents a domain event emitted after a committed mutation.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Version   int64     `json:"version"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// EventID derives a stable id from the committed ticket version, so a
// redelivered event carries the same id and receivers can deduplicate.
func EventID(ticketID string, eventType EventType, version int64) string {
	return fmt.Sprintf("%s:%s:%d", ticketID, eventType, version)
}

// New builds an event for the committed ticket snapshot.
func New(eventType EventType, ticket *domain.Ticket, actor string, at time.Time, payload any) Event {
	return Event{
		ID:        EventID(ticket.ID, eventType, ticket.Version),
		Type:      eventType,
		TicketID:  ticket.ID,
		Version:   ticket.Version,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	DueAt    *time.Time            `json:"due_at,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAssigneeID *string `json:"previous_assignee_id,omitempty"`
	PreviousTeamID     *string `json:"previous_team_id,omitempty"`
	AssigneeID         *string `json:"assignee_id,omitempty"`
	TeamID             *string `json:"team_id,omitempty"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	Priority domain.TicketPriority `json:"priority"`
	Phase    domain.SLAPhase       `json:"phase"`
	DueAt    time.Time             `json:"due_at"`
	TeamID   *string               `json:"team_id,omitempty"`
	Assignee *string               `json:"assignee_id,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Resolution string    `json:"resolution"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	Reason      string     `json:"reason"`
	ReopenCount int        `json:"reopen_count"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}
