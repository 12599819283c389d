package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Active reports whether the ticket still runs against an SLA deadline.
func (s TicketStatus) Active() bool {
	return s == TicketStatusNew || s == TicketStatusOpen || s == TicketStatusInProgress
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent}

func (p TicketPriority) Valid() bool {
	for _, candidate := range Priorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// TicketCategory classifies the request.
type TicketCategory string

const (
	CategoryGeneral        TicketCategory = "general"
	CategoryTechnical      TicketCategory = "technical"
	CategoryBilling        TicketCategory = "billing"
	CategoryAccount        TicketCategory = "account"
	CategoryFeatureRequest TicketCategory = "feature_request"
	CategoryOther          TicketCategory = "other"
)

// Categories lists the accepted ticket categories.
var Categories = []TicketCategory{
	CategoryGeneral, CategoryTechnical, CategoryBilling,
	CategoryAccount, CategoryFeatureRequest, CategoryOther,
}

func (c TicketCategory) Valid() bool {
	for _, candidate := range Categories {
		if candidate == c {
			return true
		}
	}
	return false
}

// SLAPhase names which deadline dueAt currently tracks.
type SLAPhase string

const (
	SLAPhaseResponse   SLAPhase = "response"
	SLAPhaseResolution SLAPhase = "resolution"
	SLAPhaseNone       SLAPhase = "none"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             string
	Title          string
	Description    string
	Category       TicketCategory
	Status         TicketStatus
	Priority       TicketPriority
	CreatedBy      string
	AssigneeID     *string
	TeamID         *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DueAt          *time.Time
	SLAPhase       SLAPhase
	PhaseStartedAt time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
	Resolution     *string
	ReopenCount    int
	Escalated      bool
	Version        int64
}

// Clone returns a deep copy so callers can compute a new state without
// touching a shared snapshot.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.AssigneeID = cloneString(t.AssigneeID)
	cp.TeamID = cloneString(t.TeamID)
	cp.Resolution = cloneString(t.Resolution)
	cp.DueAt = cloneTime(t.DueAt)
	cp.ResolvedAt = cloneTime(t.ResolvedAt)
	cp.ClosedAt = cloneTime(t.ClosedAt)
	return &cp
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
