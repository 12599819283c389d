package dto

import (
	"time"

	"github.com/deskflow/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// VersionRequest carries only the version the caller last read.
type VersionRequest struct {
	Version int64 `json:"version"`
}

// UpdateStatusRequest payload. Note is the resolution when resolving and
// the reason when reopening.
type UpdateStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Note    string              `json:"note"`
	Version int64               `json:"version"`
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
	Version  int64                 `json:"version"`
}

// ResolveTicketRequest payload.
type ResolveTicketRequest struct {
	Resolution string `json:"resolution"`
	Version    int64  `json:"version"`
}

// ReopenTicketRequest payload.
type ReopenTicketRequest struct {
	Reason  string `json:"reason"`
	Version int64  `json:"version"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
	Version    int64  `json:"version"`
}

// AssignTeamRequest payload.
type AssignTeamRequest struct {
	TeamID  string `json:"team_id"`
	Version int64  `json:"version"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content     string              `json:"content"`
	IsInternal  bool                `json:"is_internal"`
	Attachments []AttachmentRequest `json:"attachments"`
	Version     int64               `json:"version"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// FeedbackRequest payload.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
	Version int64  `json:"version"`
}

// TicketResponse is the full ticket snapshot.
type TicketResponse struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Category       domain.TicketCategory `json:"category"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	CreatedBy      string                `json:"created_by"`
	AssigneeID     *string               `json:"assignee_id"`
	TeamID         *string               `json:"team_id"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	DueAt          *time.Time            `json:"due_at"`
	SLAPhase       domain.SLAPhase       `json:"sla_phase"`
	PhaseStartedAt time.Time             `json:"phase_started_at"`
	ResolvedAt     *time.Time            `json:"resolved_at"`
	ClosedAt       *time.Time            `json:"closed_at"`
	Resolution     *string               `json:"resolution"`
	ReopenCount    int                   `json:"reopen_count"`
	Escalated      bool                  `json:"escalated"`
	Version        int64                 `json:"version"`
}

// CommentResponse represents a thread comment.
type CommentResponse struct {
	ID          string               `json:"id"`
	TicketID    string               `json:"ticket_id"`
	AuthorID    string               `json:"author_id"`
	Content     string               `json:"content"`
	IsInternal  bool                 `json:"is_internal"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string `json:"id"`
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// FeedbackResponse represents submitted feedback.
type FeedbackResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Cycle     int       `json:"cycle"`
	CreatedAt time.Time `json:"created_at"`
}

// Pagination describes a page of results.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total,omitempty"`
}
