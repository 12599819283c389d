package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/sla"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

func TestCreateTicket_SetsResponseDeadline(t *testing.T) {
	h := newHarness(t)

	ticket := h.create(t, domain.TicketPriorityHigh)

	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, int64(1), ticket.Version)
	assert.Equal(t, domain.SLAPhaseResponse, ticket.SLAPhase)
	require.NotNil(t, ticket.DueAt)
	assert.Equal(t, monday09.Add(time.Hour), *ticket.DueAt)

	trail := h.trail(t, ticket.ID)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.ActionTicketCreated, trail[0].Action)
	assert.Equal(t, int64(0), trail[0].BeforeVersion)
	assert.Equal(t, int64(1), trail[0].AfterVersion)

	assert.Len(t, h.events.ofType(events.EventTicketCreated), 1)
}

func TestCreateTicket_DefaultsAndValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket, err := h.tickets.CreateTicket(ctx, requester, TicketCreateInput{Title: "t", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, domain.CategoryGeneral, ticket.Category)

	_, err = h.tickets.CreateTicket(ctx, requester, TicketCreateInput{Title: " ", Description: "d"})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.tickets.CreateTicket(ctx, requester, TicketCreateInput{Title: "t", Description: "d", Priority: "critical"})
	requireCode(t, err, apperrors.CodeValidation)

	inactive := requester
	inactive.Active = false
	_, err = h.tickets.CreateTicket(ctx, inactive, TicketCreateInput{Title: "t", Description: "d"})
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestLifecycle_AuditTrailIsContiguous(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket := h.working(t, domain.TicketPriorityMedium)
	ticket, err := h.tickets.ResolveTicket(ctx, agent, ticket.ID, "Rebooted", ticket.Version)
	require.NoError(t, err)
	ticket, err = h.tickets.CloseTicket(ctx, agent, ticket.ID, ticket.Version)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	ticket, err = h.tickets.ReopenTicket(ctx, requester, ticket.ID, "Still broken", ticket.Version)
	require.NoError(t, err)

	trail := h.trail(t, ticket.ID)
	wantActions := []domain.AuditAction{
		domain.ActionTicketCreated,
		domain.ActionTeamAssigned,
		domain.ActionWorkStarted,
		domain.ActionResolved,
		domain.ActionClosed,
		domain.ActionReopened,
	}
	require.Len(t, trail, len(wantActions))
	for i, entry := range trail {
		assert.Equal(t, wantActions[i], entry.Action)
		assert.Equal(t, int64(i), entry.BeforeVersion)
		assert.Equal(t, int64(i+1), entry.AfterVersion)
		if i > 0 {
			assert.Equal(t, trail[i-1].ToStatus, entry.FromStatus)
		}
	}
	assert.Equal(t, ticket.Version, trail[len(trail)-1].AfterVersion)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, 1, ticket.ReopenCount)
	assert.Nil(t, ticket.Resolution)
	assert.Nil(t, ticket.ClosedAt)
}

func TestStartTicket_KeepsResponseDeadline(t *testing.T) {
	h := newHarness(t)
	ticket := h.create(t, domain.TicketPriorityMedium)
	due := *ticket.DueAt
	h.clock.Advance(30 * time.Minute)

	started, err := h.tickets.StartTicket(context.Background(), manager, ticket.ID, ticket.Version)

	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, started.Status)
	assert.Equal(t, domain.SLAPhaseResponse, started.SLAPhase)
	assert.Equal(t, due, *started.DueAt)
}

func TestBeginWork_StartsResolutionPhase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityHigh)
	ticket, err := h.assignments.AssignToTeam(ctx, manager, ticket.ID, teamNet, ticket.Version)
	require.NoError(t, err)
	h.clock.Advance(30 * time.Minute)

	_, err = h.tickets.BeginWork(ctx, manager, ticket.ID, ticket.Version)
	requireCode(t, err, apperrors.CodeForbidden)

	ticket, err = h.tickets.BeginWork(ctx, agent, ticket.ID, ticket.Version)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
	assert.Equal(t, domain.SLAPhaseResolution, ticket.SLAPhase)
	assert.Equal(t, monday09.Add(30*time.Minute), ticket.PhaseStartedAt)
	// 480 business minutes from 09:30 end at 17:30.
	assert.Equal(t, monday09.Add(8*time.Hour+30*time.Minute), *ticket.DueAt)
}

func TestBeginWork_ReopenedTicketKeepsDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.resolved(t)
	h.clock.Advance(24 * time.Hour)

	reopened, err := h.tickets.ReopenTicket(ctx, requester, ticket.ID, "still dropping", ticket.Version)
	require.NoError(t, err)
	require.Equal(t, domain.SLAPhaseResolution, reopened.SLAPhase)
	// 1440 business minutes from Tuesday 09:00 end Thursday 15:00.
	require.Equal(t, time.Date(2026, 10, 22, 15, 0, 0, 0, time.UTC), *reopened.DueAt)
	h.clock.Advance(48 * time.Hour)

	worked, err := h.tickets.BeginWork(ctx, agent, ticket.ID, reopened.Version)

	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, worked.Status)
	assert.Equal(t, domain.SLAPhaseResolution, worked.SLAPhase)
	assert.Equal(t, reopened.PhaseStartedAt, worked.PhaseStartedAt)
	require.NotNil(t, worked.DueAt)
	assert.Equal(t, *reopened.DueAt, *worked.DueAt)
}

func TestResolve_RequiresResolutionAndWritesNothing(t *testing.T) {
	h := newHarness(t)
	ticket := h.working(t, domain.TicketPriorityMedium)
	before := len(h.trail(t, ticket.ID))

	_, err := h.tickets.ResolveTicket(context.Background(), agent, ticket.ID, "   ", ticket.Version)

	requireCode(t, err, apperrors.CodeValidation)
	assert.Len(t, h.trail(t, ticket.ID), before)
	current, err := h.tickets.GetTicket(context.Background(), agent, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Version, current.Version)
}

func TestResolve_ClearsDeadline(t *testing.T) {
	h := newHarness(t)

	ticket := h.resolved(t)

	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	assert.Equal(t, domain.SLAPhaseNone, ticket.SLAPhase)
	assert.Nil(t, ticket.DueAt)
	require.NotNil(t, ticket.ResolvedAt)
	require.NotNil(t, ticket.Resolution)
	assert.Equal(t, "Replaced router", *ticket.Resolution)
	assert.Len(t, h.events.ofType(events.EventTicketResolved), 1)
}

func TestInvalidTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)

	_, err := h.tickets.CloseTicket(ctx, manager, ticket.ID, ticket.Version)
	requireCode(t, err, apperrors.CodeInvalidTransition)

	_, err = h.tickets.UpdateStatus(ctx, manager, ticket.ID, StatusUpdateInput{Status: domain.TicketStatusNew, Version: ticket.Version})
	requireCode(t, err, apperrors.CodeInvalidTransition)

	_, err = h.tickets.UpdateStatus(ctx, manager, ticket.ID, StatusUpdateInput{Status: "archived", Version: ticket.Version})
	requireCode(t, err, apperrors.CodeValidation)

	assert.True(t, IsValidTransition(domain.TicketStatusResolved, domain.TicketStatusOpen))
	assert.False(t, IsValidTransition(domain.TicketStatusInProgress, domain.TicketStatusOpen))
	assert.False(t, IsValidTransition(domain.TicketStatusClosed, domain.TicketStatusResolved))
}

func TestUpdateStatus_RoutesToTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)

	ticket, err := h.tickets.UpdateStatus(ctx, manager, ticket.ID, StatusUpdateInput{Status: domain.TicketStatusOpen, Version: ticket.Version})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)

	ticket, err = h.tickets.UpdateStatus(ctx, manager, ticket.ID, StatusUpdateInput{Status: domain.TicketStatusResolved, Note: "duplicate", Version: ticket.Version})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)

	ticket, err = h.tickets.UpdateStatus(ctx, requester, ticket.ID, StatusUpdateInput{Status: domain.TicketStatusOpen, Note: "not a duplicate", Version: ticket.Version})
	require.NoError(t, err)
	assert.Equal(t, 1, ticket.ReopenCount)
}

func TestVersionChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)

	_, err := h.tickets.StartTicket(ctx, manager, ticket.ID, 0)
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.tickets.StartTicket(ctx, manager, ticket.ID, ticket.Version+1)
	requireCode(t, err, apperrors.CodeConflict)

	_, err = h.tickets.StartTicket(ctx, manager, "missing", 1)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestConcurrentWriters_OneWinsLoserRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.working(t, domain.TicketPriorityMedium)
	_, _, err := h.tickets.AddComment(ctx, agent, ticket.ID, CommentInput{Content: "looking", Version: 3})
	require.NoError(t, err)
	current, _, err := h.tickets.AddComment(ctx, requester, ticket.ID, CommentInput{Content: "thanks", Version: 4})
	require.NoError(t, err)
	require.Equal(t, int64(5), current.Version)
	before := len(h.trail(t, ticket.ID))

	writers := []domain.Identity{agent, requester}
	errs := make([]error, len(writers))
	var wg sync.WaitGroup
	for i, who := range writers {
		wg.Add(1)
		go func(i int, who domain.Identity) {
			defer wg.Done()
			_, _, errs[i] = h.tickets.AddComment(ctx, who, ticket.ID, CommentInput{Content: "race", Version: 5})
		}(i, who)
	}
	wg.Wait()

	loser := -1
	for i, err := range errs {
		if err != nil {
			requireCode(t, err, apperrors.CodeConflict)
			loser = i
		}
	}
	require.NotEqual(t, -1, loser, "exactly one writer must lose")

	fresh, err := h.tickets.GetTicket(ctx, writers[loser], ticket.ID)
	require.NoError(t, err)
	require.Equal(t, int64(6), fresh.Version)
	retried, _, err := h.tickets.AddComment(ctx, writers[loser], ticket.ID, CommentInput{Content: "race", Version: fresh.Version})
	require.NoError(t, err)
	assert.Equal(t, int64(7), retried.Version)

	trail := h.trail(t, ticket.ID)
	require.Len(t, trail, before+2)
	assert.Equal(t, int64(5), trail[before].BeforeVersion)
	assert.Equal(t, int64(6), trail[before+1].BeforeVersion)
	assert.Equal(t, int64(7), trail[before+1].AfterVersion)
}

func TestPriorityThenStaleStatus_LoserResubmits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.working(t, domain.TicketPriorityMedium)
	for v := int64(3); v < 5; v++ {
		_, _, err := h.tickets.AddComment(ctx, agent, ticket.ID, CommentInput{Content: "update", Version: v})
		require.NoError(t, err)
	}
	before := len(h.trail(t, ticket.ID))

	reprioritized, err := h.tickets.UpdatePriority(ctx, agent, ticket.ID, domain.TicketPriorityHigh, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), reprioritized.Version)

	_, err = h.tickets.UpdateStatus(ctx, leader, ticket.ID, StatusUpdateInput{Status: domain.TicketStatusResolved, Note: "fixed", Version: 5})
	requireCode(t, err, apperrors.CodeConflict)
	assert.Len(t, h.trail(t, ticket.ID), before+1)

	fresh, err := h.tickets.GetTicket(ctx, leader, ticket.ID)
	require.NoError(t, err)
	resolved, err := h.tickets.UpdateStatus(ctx, leader, ticket.ID, StatusUpdateInput{Status: domain.TicketStatusResolved, Note: "fixed", Version: fresh.Version})
	require.NoError(t, err)
	assert.Equal(t, int64(7), resolved.Version)
	assert.Equal(t, domain.TicketPriorityHigh, resolved.Priority)

	trail := h.trail(t, ticket.ID)
	require.Len(t, trail, before+2)
	assert.Equal(t, domain.ActionPriorityChanged, trail[before].Action)
	assert.Equal(t, domain.ActionResolved, trail[before+1].Action)
	assert.Equal(t, int64(6), trail[before+1].BeforeVersion)
}

func TestConcurrentPriorityAndStatus_OneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityMedium)
	ticket, err := h.assignments.AssignToTeam(ctx, manager, ticket.ID, teamNet, ticket.Version)
	require.NoError(t, err)
	for v := ticket.Version; v < 5; v++ {
		_, _, err := h.tickets.AddComment(ctx, agent, ticket.ID, CommentInput{Content: "triage", Version: v})
		require.NoError(t, err)
	}
	before := len(h.trail(t, ticket.ID))

	submit := []func(version int64) error{
		func(version int64) error {
			_, err := h.tickets.UpdatePriority(ctx, agent, ticket.ID, domain.TicketPriorityUrgent, version)
			return err
		},
		func(version int64) error {
			_, err := h.tickets.UpdateStatus(ctx, leader, ticket.ID, StatusUpdateInput{Status: domain.TicketStatusInProgress, Version: version})
			return err
		},
	}
	errs := make([]error, len(submit))
	var wg sync.WaitGroup
	for i := range submit {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = submit[i](5)
		}(i)
	}
	wg.Wait()

	loser := -1
	for i, err := range errs {
		if err != nil {
			requireCode(t, err, apperrors.CodeConflict)
			loser = i
		}
	}
	require.NotEqual(t, -1, loser, "exactly one writer must lose")
	assert.Len(t, h.trail(t, ticket.ID), before+1)

	fresh, err := h.tickets.GetTicket(ctx, leader, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, int64(6), fresh.Version)
	require.NoError(t, submit[loser](fresh.Version))

	final, err := h.tickets.GetTicket(ctx, leader, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), final.Version)
	assert.Equal(t, domain.TicketPriorityUrgent, final.Priority)
	assert.Equal(t, domain.TicketStatusInProgress, final.Status)
	assert.Len(t, h.trail(t, ticket.ID), before+2)
}

func TestReopenWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inWindow := h.resolved(t)
	late := h.resolved(t)

	h.clock.Advance(6 * 24 * time.Hour)
	reopened, err := h.tickets.ReopenTicket(ctx, requester, inWindow.ID, "came back", inWindow.Version)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
	assert.Equal(t, domain.SLAPhaseResolution, reopened.SLAPhase)
	assert.Equal(t, h.clock.Now(), reopened.PhaseStartedAt)
	assert.NotNil(t, reopened.DueAt)
	assert.Len(t, h.events.ofType(events.EventTicketReopened), 1)

	h.clock.Advance(2 * 24 * time.Hour)
	_, err = h.tickets.ReopenTicket(ctx, requester, late.ID, "came back", late.Version)
	requireCode(t, err, apperrors.CodeReopenWindowExpired)

	_, err = h.tickets.ReopenTicket(ctx, requester, late.ID, "", late.Version)
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.tickets.ReopenTicket(ctx, otherUser, late.ID, "not mine", late.Version)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestReopen_WindowMeasuredFromClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.resolved(t)

	h.clock.Advance(5 * 24 * time.Hour)
	ticket, err := h.tickets.CloseTicket(ctx, agent, ticket.ID, ticket.Version)
	require.NoError(t, err)

	h.clock.Advance(5 * 24 * time.Hour)
	ticket, err = h.tickets.ReopenTicket(ctx, requester, ticket.ID, "again", ticket.Version)
	require.NoError(t, err)
	assert.Equal(t, 1, ticket.ReopenCount)
}

func TestUpdatePriority_RecomputesFromPhaseStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityMedium)
	assert.Equal(t, monday09.Add(4*time.Hour), *ticket.DueAt)

	h.clock.Advance(30 * time.Minute)
	ticket, err := h.tickets.UpdatePriority(ctx, manager, ticket.ID, domain.TicketPriorityUrgent, ticket.Version)
	require.NoError(t, err)
	assert.Equal(t, monday09.Add(15*time.Minute), *ticket.DueAt)

	_, err = h.tickets.UpdatePriority(ctx, manager, ticket.ID, domain.TicketPriorityUrgent, ticket.Version)
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.tickets.UpdatePriority(ctx, requester, ticket.ID, domain.TicketPriorityLow, ticket.Version)
	requireCode(t, err, apperrors.CodeForbidden)

	resolved := h.resolved(t)
	_, err = h.tickets.UpdatePriority(ctx, leader, resolved.ID, domain.TicketPriorityLow, resolved.Version)
	requireCode(t, err, apperrors.CodeInvalidTransition)
}

func TestSLAConfigEdit_AppliesOnNextRecompute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.TicketPriorityLow)
	original := *ticket.DueAt

	_, err := h.slaConfigs.Update(ctx, manager, domain.TicketPriorityLow, 30, 120)
	require.NoError(t, err)

	current, err := h.tickets.GetTicket(ctx, manager, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, original, *current.DueAt)

	started, err := h.tickets.StartTicket(ctx, manager, ticket.ID, ticket.Version)
	require.NoError(t, err)
	assert.Equal(t, monday09.Add(30*time.Minute), *started.DueAt)
}

func TestCalendarFailure_IsUnavailableAndWritesNothing(t *testing.T) {
	clock := sla.NewFakeClock(monday09)
	h := buildHarness(clock, failingCalendar{clock: clock})

	_, err := h.tickets.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "t", Description: "d"})

	requireCode(t, err, apperrors.CodeUnavailable)
	assert.True(t, apperrors.ToDomainError(err).Retryable())
	page, err := h.audit.Query(context.Background(), admin, repository.AuditQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, h.events.ofType(events.EventTicketCreated))
}

func TestStoreFailure_IsUnavailable(t *testing.T) {
	h := newHarness(t)
	ticket := h.create(t, domain.TicketPriorityLow)
	h.mem.FailWrites(errors.New("connection reset"))

	_, err := h.tickets.StartTicket(context.Background(), manager, ticket.ID, ticket.Version)

	requireCode(t, err, apperrors.CodeUnavailable)
	h.mem.FailWrites(nil)
	current, err := h.tickets.GetTicket(context.Background(), manager, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, current.Status)
}

func TestComments_InternalHiddenFromRequester(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.working(t, domain.TicketPriorityMedium)

	ticket, _, err := h.tickets.AddComment(ctx, agent, ticket.ID, CommentInput{
		Content: "check firmware", IsInternal: true, Version: ticket.Version,
	})
	require.NoError(t, err)
	ticket, comment, err := h.tickets.AddComment(ctx, requester, ticket.ID, CommentInput{
		Content:     "screenshot attached",
		Attachments: []AttachmentInput{{StorageKey: "s3://bucket/shot.png", FileName: "shot.png", SizeBytes: 2048}},
		Version:     ticket.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", comment.Attachments[0].MimeType)

	_, _, err = h.tickets.AddComment(ctx, requester, ticket.ID, CommentInput{Content: "sneaky", IsInternal: true, Version: ticket.Version})
	requireCode(t, err, apperrors.CodeForbidden)

	forRequester, err := h.tickets.ListComments(ctx, requester, ticket.ID)
	require.NoError(t, err)
	require.Len(t, forRequester, 1)
	require.Len(t, forRequester[0].Attachments, 1)
	assert.Equal(t, "shot.png", forRequester[0].Attachments[0].FileName)

	forAgent, err := h.tickets.ListComments(ctx, agent, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, forAgent, 2)
}

func TestComments_ClosedTicketRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.resolved(t)
	ticket, err := h.tickets.CloseTicket(ctx, agent, ticket.ID, ticket.Version)
	require.NoError(t, err)

	_, _, err = h.tickets.AddComment(ctx, requester, ticket.ID, CommentInput{Content: "hello?", Version: ticket.Version})

	requireCode(t, err, apperrors.CodeInvalidTransition)
}

func TestFeedback_ClosedTicketKeepsLifecycleState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.resolved(t)
	closed, err := h.tickets.CloseTicket(ctx, agent, ticket.ID, ticket.Version)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	_, _, err = h.tickets.AddComment(ctx, requester, ticket.ID, CommentInput{Content: "one more thing", Version: closed.Version})
	requireCode(t, err, apperrors.CodeInvalidTransition)

	rated, fb, err := h.tickets.SubmitFeedback(ctx, requester, ticket.ID, FeedbackInput{Rating: 4, Version: closed.Version})

	require.NoError(t, err)
	assert.Equal(t, 4, fb.Rating)
	assert.Equal(t, closed.Version+1, rated.Version)
	assert.Equal(t, domain.TicketStatusClosed, rated.Status)
	assert.Equal(t, closed.ClosedAt, rated.ClosedAt)
	assert.Equal(t, closed.ResolvedAt, rated.ResolvedAt)
	assert.Equal(t, closed.Resolution, rated.Resolution)
	assert.Equal(t, closed.SLAPhase, rated.SLAPhase)
	assert.Nil(t, rated.DueAt)
	trail := h.trail(t, ticket.ID)
	assert.Equal(t, domain.ActionFeedbackSubmitted, trail[len(trail)-1].Action)
}

func TestFeedback_OncePerResolutionCycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.resolved(t)

	_, _, err := h.tickets.SubmitFeedback(ctx, requester, ticket.ID, FeedbackInput{Rating: 6, Version: ticket.Version})
	requireCode(t, err, apperrors.CodeValidation)

	_, _, err = h.tickets.SubmitFeedback(ctx, agent, ticket.ID, FeedbackInput{Rating: 5, Version: ticket.Version})
	requireCode(t, err, apperrors.CodeForbidden)

	ticket, fb, err := h.tickets.SubmitFeedback(ctx, requester, ticket.ID, FeedbackInput{Rating: 5, Comment: "fast", Version: ticket.Version})
	require.NoError(t, err)
	assert.Equal(t, 0, fb.Cycle)

	_, _, err = h.tickets.SubmitFeedback(ctx, requester, ticket.ID, FeedbackInput{Rating: 1, Version: ticket.Version})
	requireCode(t, err, apperrors.CodeConflict)

	ticket, err = h.tickets.ReopenTicket(ctx, requester, ticket.ID, "broke again", ticket.Version)
	require.NoError(t, err)
	_, _, err = h.tickets.SubmitFeedback(ctx, requester, ticket.ID, FeedbackInput{Rating: 3, Version: ticket.Version})
	requireCode(t, err, apperrors.CodeInvalidTransition)

	ticket, err = h.tickets.ResolveTicket(ctx, agent, ticket.ID, "new cable", ticket.Version)
	require.NoError(t, err)
	_, fb, err = h.tickets.SubmitFeedback(ctx, requester, ticket.ID, FeedbackInput{Rating: 4, Version: ticket.Version})
	require.NoError(t, err)
	assert.Equal(t, 1, fb.Cycle)

	all, err := h.tickets.ListFeedback(ctx, requester, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListTickets_Visibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mine := h.create(t, domain.TicketPriorityLow)
	teamOwned := h.working(t, domain.TicketPriorityLow)
	_, err := h.tickets.CreateTicket(ctx, otherUser, TicketCreateInput{Title: "other", Description: "d"})
	require.NoError(t, err)

	forRequester, err := h.tickets.ListTickets(ctx, requester, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, forRequester, 2)

	forOther, err := h.tickets.ListTickets(ctx, otherUser, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, forOther, 1)

	forAgent, err := h.tickets.ListTickets(ctx, agent, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, forAgent, 1)
	assert.Equal(t, teamOwned.ID, forAgent[0].ID)

	forOutsider, err := h.tickets.ListTickets(ctx, outsider, TicketListFilter{})
	require.NoError(t, err)
	assert.Empty(t, forOutsider)

	forManager, err := h.tickets.ListTickets(ctx, manager, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, forManager, 2)

	forAdmin, err := h.tickets.ListTickets(ctx, admin, TicketListFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusNew},
	})
	require.NoError(t, err)
	assert.Len(t, forAdmin, 2)
	for _, tk := range forAdmin {
		assert.NotEqual(t, teamOwned.ID, tk.ID)
	}
	assert.NotEmpty(t, mine.ID)

	_, err = h.tickets.GetTicket(ctx, outsider, mine.ID)
	requireCode(t, err, apperrors.CodeForbidden)
}
