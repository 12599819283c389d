package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/deskflow/helpdesk/internal/domain"
)

// ConfigSource resolves the active SLA configuration for a priority.
type ConfigSource interface {
	Get(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error)
}

// SLAClock computes phase deadlines and detects breaches. It keeps no
// per-ticket state; configuration is looked up on every computation.
type SLAClock struct {
	calendar Calendar
	configs  ConfigSource
}

// NewSLAClock wires a clock over a calendar and a config source.
func NewSLAClock(calendar Calendar, configs ConfigSource) *SLAClock {
	return &SLAClock{calendar: calendar, configs: configs}
}

// Now returns the calendar's current time.
func (c *SLAClock) Now() time.Time {
	return c.calendar.Now()
}

// Deadline returns the deadline for phase at priority, anchored at anchor.
// The none phase has no deadline.
func (c *SLAClock) Deadline(ctx context.Context, priority domain.TicketPriority, phase domain.SLAPhase, anchor time.Time) (*time.Time, error) {
	if phase == domain.SLAPhaseNone || phase == "" {
		return nil, nil
	}
	cfg, err := c.configs.Get(ctx, priority)
	if err != nil {
		return nil, fmt.Errorf("sla config for %s: %w", priority, err)
	}
	minutes := cfg.MinutesFor(phase)
	if minutes <= 0 {
		return nil, fmt.Errorf("sla config for %s has no %s budget", priority, phase)
	}
	due, err := c.calendar.Advance(anchor, minutes)
	if err != nil {
		return nil, err
	}
	return &due, nil
}

// Recompute sets t.DueAt for its current phase, anchored at the phase start.
func (c *SLAClock) Recompute(ctx context.Context, t *domain.Ticket) error {
	due, err := c.Deadline(ctx, t.Priority, t.SLAPhase, t.PhaseStartedAt)
	if err != nil {
		return err
	}
	t.DueAt = due
	return nil
}

// EnterPhase moves t into phase starting at anchor and recomputes its deadline.
func (c *SLAClock) EnterPhase(ctx context.Context, t *domain.Ticket, phase domain.SLAPhase, anchor time.Time) error {
	t.SLAPhase = phase
	t.PhaseStartedAt = anchor
	return c.Recompute(ctx, t)
}

// Breached reports whether t is an active, not yet escalated ticket whose
// deadline lies strictly before now.
func Breached(t *domain.Ticket, now time.Time) bool {
	return t.Status.Active() && !t.Escalated && t.DueAt != nil && now.After(*t.DueAt)
}
