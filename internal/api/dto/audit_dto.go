package dto

import (
	"time"

	"github.com/deskflow/helpdesk/internal/domain"
)

// AuditEntryResponse is one audit record.
type AuditEntryResponse struct {
	ID            int64               `json:"id"`
	Actor         string              `json:"actor"`
	Action        domain.AuditAction  `json:"action"`
	TicketID      string              `json:"ticket_id"`
	BeforeVersion int64               `json:"before_version"`
	AfterVersion  int64               `json:"after_version"`
	FromStatus    domain.TicketStatus `json:"from_status,omitempty"`
	ToStatus      domain.TicketStatus `json:"to_status"`
	Details       map[string]any      `json:"details,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

// SLAConfigResponse is the budget for one priority.
type SLAConfigResponse struct {
	Priority          domain.TicketPriority `json:"priority"`
	ResponseMinutes   int                   `json:"response_minutes"`
	ResolutionMinutes int                   `json:"resolution_minutes"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// UpdateSLAConfigRequest payload.
type UpdateSLAConfigRequest struct {
	ResponseMinutes   int `json:"response_minutes"`
	ResolutionMinutes int `json:"resolution_minutes"`
}
