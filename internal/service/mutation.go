package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/sla"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// mutator holds the read-authorize-commit-publish plumbing shared by every
// ticket-mutating service.
type mutator struct {
	tickets    repository.TicketStore
	gate       *auth.Gate
	clock      *sla.SLAClock
	recorder   *AuditService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// load reads the current snapshot of a ticket.
func (m *mutator) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id is required", nil)
	}
	ticket, err := m.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewUnavailable("ticket store", err)
	}
	return ticket, nil
}

// loadAuthorized reads a ticket and checks op against it.
func (m *mutator) loadAuthorized(ctx context.Context, id domain.Identity, op auth.Operation, ticketID string) (*domain.Ticket, error) {
	ticket, err := m.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := m.gate.Authorize(id, op, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// next prepares the successor snapshot of current: a deep copy with the
// version bumped and updatedAt set.
func (m *mutator) next(current *domain.Ticket) *domain.Ticket {
	t := current.Clone()
	t.Version = current.Version + 1
	t.UpdatedAt = m.clock.Now()
	return t
}

// commit writes the mutation with a version check and maps store failures.
func (m *mutator) commit(ctx context.Context, mut repository.Mutation) error {
	if err := m.tickets.Commit(ctx, mut); err != nil {
		return storeError(err)
	}
	return nil
}

func (m *mutator) publish(ctx context.Context, evts ...events.Event) {
	if m.dispatcher == nil {
		return
	}
	for _, event := range evts {
		if err := m.dispatcher.Publish(ctx, event); err != nil {
			m.logger.Warn("publish event", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
}

func checkVersion(ticket *domain.Ticket, expected int64) error {
	if expected <= 0 {
		return apperrors.NewValidationError("version is required", map[string]any{"field": "version"})
	}
	if ticket.Version != expected {
		return apperrors.NewConflict("ticket was modified concurrently", map[string]any{
			"expected_version": expected,
			"current_version":  ticket.Version,
		})
	}
	return nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("ticket was modified concurrently", nil)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", nil)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict("record already exists", nil)
	}
	return apperrors.NewUnavailable("ticket store", err)
}

func calendarError(err error) error {
	return apperrors.NewUnavailable("business calendar", err)
}

func isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicate)
}
