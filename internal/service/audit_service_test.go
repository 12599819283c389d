package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/repository"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

func TestAudit_Access(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.working(t, domain.TicketPriorityMedium)

	_, err := h.audit.ListForTicket(ctx, requester, ticket.ID, 10, 0)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.audit.ListForTicket(ctx, outsider, ticket.ID, 10, 0)
	requireCode(t, err, apperrors.CodeForbidden)

	page, err := h.audit.ListForTicket(ctx, agent, ticket.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, domain.ActionTeamAssigned, page.Entries[0].Action)

	_, err = h.audit.Query(ctx, agent, repository.AuditQuery{})
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestAudit_QueryFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, domain.TicketPriorityLow)
	h.clock.Advance(time.Hour)
	second := h.create(t, domain.TicketPriorityLow)
	_, err := h.tickets.StartTicket(ctx, manager, second.ID, second.Version)
	require.NoError(t, err)

	byActor, err := h.audit.Query(ctx, manager, repository.AuditQuery{Actor: manager.UserID})
	require.NoError(t, err)
	assert.Equal(t, 1, byActor.Total)

	from := monday09.Add(30 * time.Minute)
	byRange, err := h.audit.Query(ctx, manager, repository.AuditQuery{From: &from})
	require.NoError(t, err)
	assert.Equal(t, 2, byRange.Total)

	to := monday09
	_, err = h.audit.Query(ctx, manager, repository.AuditQuery{From: &from, To: &to})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestSLAConfigService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	configs, err := h.slaConfigs.List(ctx, agent)
	require.NoError(t, err)
	assert.Len(t, configs, 4)

	_, err = h.slaConfigs.List(ctx, requester)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.slaConfigs.Update(ctx, agent, domain.TicketPriorityHigh, 10, 20)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.slaConfigs.Update(ctx, manager, domain.TicketPriorityHigh, 0, 20)
	requireCode(t, err, apperrors.CodeValidation)

	h.clock.Advance(90 * time.Minute)
	updated, err := h.slaConfigs.Update(ctx, manager, domain.TicketPriorityHigh, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.ResponseMinutes)
	assert.Equal(t, monday09.Add(90*time.Minute), updated.UpdatedAt)

	stored, err := h.mem.SLAConfigs().Get(ctx, domain.TicketPriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, monday09.Add(90*time.Minute), stored.UpdatedAt)
}

type flakySink struct {
	failures  int
	delivered []events.Event
}

func (f *flakySink) Deliver(_ context.Context, event events.Event) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("broker down")
	}
	f.delivered = append(f.delivered, event)
	return nil
}

func TestNotificationService_RetriesThroughDispatcher(t *testing.T) {
	dispatcher := events.NewAsyncDispatcher(events.Options{Buffer: 4, MaxAttempts: 3, BaseBackoff: time.Millisecond}, nil)
	sink := &flakySink{failures: 2}
	NewNotificationService(dispatcher, sink, nil).RegisterHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Run(ctx)
	}()

	ticket := &domain.Ticket{ID: "t1", Version: 2}
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventTicketEscalated, ticket, domain.SystemActor, monday09, nil)))
	dispatcher.Wait()
	cancel()
	<-done

	require.Len(t, sink.delivered, 1)
	assert.Equal(t, "t1:ticket_escalated:2", sink.delivered[0].ID)
}
