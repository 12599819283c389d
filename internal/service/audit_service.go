package service

import (
	"context"

	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/repository"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// AuditService records and reads the audit trail. Entries are appended as
// part of the ticket commit so they land or fail together with the change.
type AuditService struct {
	audit   repository.AuditRepository
	tickets repository.TicketStore
	gate    *auth.Gate
}

// AuditPage is one page of audit entries, oldest first.
type AuditPage struct {
	Entries []domain.AuditLogEntry
	Total   int
	Limit   int
	Offset  int
}

// NewAuditService creates the service.
func NewAuditService(audit repository.AuditRepository, tickets repository.TicketStore, gate *auth.Gate) *AuditService {
	return &AuditService{audit: audit, tickets: tickets, gate: gate}
}

// Entry builds the audit record for the change from before to after.
// before is nil for creation.
func (s *AuditService) Entry(actor string, action domain.AuditAction, before, after *domain.Ticket, details map[string]any) *domain.AuditLogEntry {
	entry := &domain.AuditLogEntry{
		Actor:        actor,
		Action:       action,
		TicketID:     after.ID,
		AfterVersion: after.Version,
		ToStatus:     after.Status,
		Details:      details,
		Timestamp:    after.UpdatedAt,
	}
	if before != nil {
		entry.BeforeVersion = before.Version
		entry.FromStatus = before.Status
	}
	return entry
}

// ListForTicket returns the trail of one ticket.
func (s *AuditService) ListForTicket(ctx context.Context, id domain.Identity, ticketID string, limit, offset int) (*AuditPage, error) {
	m := mutator{tickets: s.tickets, gate: s.gate}
	if _, err := m.loadAuthorized(ctx, id, auth.OpViewAudit, ticketID); err != nil {
		return nil, err
	}
	return s.query(ctx, repository.AuditQuery{TicketID: ticketID, Limit: limit, Offset: offset})
}

// Query searches the whole log by ticket, actor and date range.
func (s *AuditService) Query(ctx context.Context, id domain.Identity, q repository.AuditQuery) (*AuditPage, error) {
	if err := s.gate.Authorize(id, auth.OpQueryAudit, nil); err != nil {
		return nil, err
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, apperrors.NewValidationError("from must not be after to", map[string]any{"from": q.From, "to": q.To})
	}
	return s.query(ctx, q)
}

func (s *AuditService) query(ctx context.Context, q repository.AuditQuery) (*AuditPage, error) {
	entries, total, err := s.audit.Query(ctx, q)
	if err != nil {
		return nil, apperrors.NewUnavailable("audit store", err)
	}
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	return &AuditPage{Entries: entries, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}
