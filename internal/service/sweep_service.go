package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/sla"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// SweepResult summarizes one sweep cycle.
type SweepResult struct {
	Scanned    int
	Escalated  int
	AutoClosed int
	Conflicts  int
	Failed     int
}

// SweepService flips escalated on breached tickets and closes resolved
// tickets whose grace period has passed. Every change is a version-checked
// commit by the system actor; losing a race skips the ticket until the next cycle.
type SweepService struct {
	mutator
	lifecycle      *TicketService
	batch          int
	autoCloseAfter time.Duration
}

// SweepDependencies bundles collaborators.
type SweepDependencies struct {
	TicketRepo     repository.TicketStore
	Lifecycle      *TicketService
	Clock          *sla.SLAClock
	Audit          *AuditService
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Batch          int
	AutoCloseAfter time.Duration
}

// NewSweepService creates the sweeper.
func NewSweepService(deps SweepDependencies) *SweepService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	batch := deps.Batch
	if batch <= 0 {
		batch = 500
	}
	return &SweepService{
		mutator: mutator{
			tickets:    deps.TicketRepo,
			clock:      deps.Clock,
			recorder:   deps.Audit,
			dispatcher: deps.Dispatcher,
			logger:     logger,
		},
		lifecycle:      deps.Lifecycle,
		batch:          batch,
		autoCloseAfter: deps.AutoCloseAfter,
	}
}

// Sweep runs one cycle. A returned error means the cycle could not read
// its work list; nothing was mutated for that part of the cycle.
func (s *SweepService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.clock.Now()

	overdue, err := s.tickets.ListOverdue(ctx, now, s.batch)
	if err != nil {
		return result, apperrors.NewUnavailable("ticket store", err)
	}
	for i := range overdue {
		result.Scanned++
		s.escalate(ctx, &overdue[i], now, &result)
	}

	if s.autoCloseAfter <= 0 || s.lifecycle == nil {
		return result, nil
	}
	stale, err := s.tickets.ListResolvedBefore(ctx, now.Add(-s.autoCloseAfter), s.batch)
	if err != nil {
		return result, apperrors.NewUnavailable("ticket store", err)
	}
	for i := range stale {
		result.Scanned++
		ticket := &stale[i]
		if ticket.Status != domain.TicketStatusResolved {
			continue
		}
		_, err := s.lifecycle.close(ctx, domain.SystemActor, ticket, map[string]any{"reason": "auto_close"})
		s.tally(err, ticket, "auto-close", &result, &result.AutoClosed)
	}
	return result, nil
}

func (s *SweepService) escalate(ctx context.Context, current *domain.Ticket, now time.Time, result *SweepResult) {
	if !sla.Breached(current, now) {
		return
	}
	next := s.next(current)
	next.Escalated = true
	err := s.commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Audit: s.recorder.Entry(domain.SystemActor, domain.ActionEscalated, current, next, map[string]any{
			"due_at": current.DueAt,
			"phase":  current.SLAPhase,
		}),
	})
	if !s.tally(err, current, "escalation", result, &result.Escalated) {
		return
	}
	s.publish(ctx, events.New(events.EventTicketEscalated, next, domain.SystemActor, now, events.TicketEscalatedPayload{
		Priority: next.Priority,
		Phase:    next.SLAPhase,
		DueAt:    *current.DueAt,
		TeamID:   next.TeamID,
		Assignee: next.AssigneeID,
	}))
}

// tally records the outcome of one commit and reports whether it succeeded.
func (s *SweepService) tally(err error, ticket *domain.Ticket, what string, result *SweepResult, success *int) bool {
	switch {
	case err == nil:
		*success++
		return true
	case apperrors.IsCode(err, apperrors.CodeConflict), apperrors.IsCode(err, apperrors.CodeInvalidTransition):
		result.Conflicts++
		s.logger.Debug("sweep skipped ticket changed concurrently",
			zap.String("ticket_id", ticket.ID), zap.String("step", what))
	default:
		result.Failed++
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) && domainErr.Err != nil {
			err = domainErr.Err
		}
		s.logger.Error("sweep step failed",
			zap.String("ticket_id", ticket.ID), zap.String("step", what), zap.Error(err))
	}
	return false
}
