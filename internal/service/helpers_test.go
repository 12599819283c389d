package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/sla"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// monday09 is Monday 2026-10-19 09:00 UTC, the start of a business day.
var monday09 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

const teamNet = "team-net"

var (
	requester = domain.Identity{UserID: "u1", Role: domain.RoleEndUser, Active: true}
	otherUser = domain.Identity{UserID: "u2", Role: domain.RoleEndUser, Active: true}
	agent     = domain.Identity{UserID: "s1", Role: domain.RoleSupportStaff, Active: true,
		Teams: []domain.TeamMembership{{TeamID: teamNet, Role: domain.TeamRoleMember}}}
	leader = domain.Identity{UserID: "s2", Role: domain.RoleSupportStaff, Active: true,
		Teams: []domain.TeamMembership{{TeamID: teamNet, Role: domain.TeamRoleLeader}}}
	outsider = domain.Identity{UserID: "s3", Role: domain.RoleSupportStaff, Active: true}
	manager  = domain.Identity{UserID: "m1", Role: domain.RoleManager, Active: true}
	admin    = domain.Identity{UserID: "a1", Role: domain.RoleAdmin, Active: true}
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (r *recordingDispatcher) ofType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type failingCalendar struct{ clock sla.Clock }

func (f failingCalendar) Now() time.Time { return f.clock.Now() }

func (f failingCalendar) Advance(time.Time, int) (time.Time, error) {
	return time.Time{}, errors.New("calendar offline")
}

type harness struct {
	mem         *repository.Memory
	clock       *sla.FakeClock
	events      *recordingDispatcher
	audit       *AuditService
	tickets     *TicketService
	assignments *AssignmentService
	sweep       *SweepService
	slaConfigs  *SLAConfigService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := sla.NewFakeClock(monday09)
	calendar, err := sla.NewBusinessCalendar(clock, sla.BusinessHours{
		Location: time.UTC,
		Open:     9 * 60,
		Close:    18 * 60,
		Workdays: map[time.Weekday]bool{
			time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true,
		},
	})
	require.NoError(t, err)
	return buildHarness(clock, calendar)
}

func buildHarness(clock *sla.FakeClock, calendar sla.Calendar) *harness {
	mem := repository.NewMemory()
	for _, id := range []domain.Identity{requester, otherUser, agent, leader, outsider, manager, admin} {
		mem.PutAccount(domain.Account{ID: id.UserID, Role: id.Role, Active: true})
	}
	mem.PutAccount(domain.Account{ID: "s9", Role: domain.RoleSupportStaff, Active: false})
	mem.PutTeam(domain.Team{ID: teamNet, Name: "Network", Members: []domain.TeamMember{
		{UserID: agent.UserID, Role: domain.TeamRoleMember},
		{UserID: leader.UserID, Role: domain.TeamRoleLeader},
	}})

	slaClock := sla.NewSLAClock(calendar, mem.SLAConfigs())
	gate := auth.NewGate()
	recorder := &recordingDispatcher{}
	auditService := NewAuditService(mem.Audit(), mem.Tickets(), gate)
	tickets := NewTicketService(TicketDependencies{
		TicketRepo:     mem.Tickets(),
		CommentRepo:    mem.Comments(),
		AttachmentRepo: mem.Attachments(),
		FeedbackRepo:   mem.Feedback(),
		Gate:           gate,
		Clock:          slaClock,
		Audit:          auditService,
		Dispatcher:     recorder,
		ReopenWindow:   7 * 24 * time.Hour,
	})
	return &harness{
		mem:     mem,
		clock:   clock,
		events:  recorder,
		audit:   auditService,
		tickets: tickets,
		assignments: NewAssignmentService(AssignmentDependencies{
			TicketRepo:  mem.Tickets(),
			AccountRepo: mem.Accounts(),
			TeamRepo:    mem.Teams(),
			Gate:        gate,
			Clock:       slaClock,
			Audit:       auditService,
			Dispatcher:  recorder,
		}),
		sweep: NewSweepService(SweepDependencies{
			TicketRepo:     mem.Tickets(),
			Lifecycle:      tickets,
			Clock:          slaClock,
			Audit:          auditService,
			Dispatcher:     recorder,
			AutoCloseAfter: 72 * time.Hour,
		}),
		slaConfigs: NewSLAConfigService(mem.SLAConfigs(), gate, slaClock),
	}
}

func (h *harness) create(t *testing.T, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.CreateTicket(context.Background(), requester, TicketCreateInput{
		Title:       "VPN drops",
		Description: "Connection resets every few minutes",
		Priority:    priority,
	})
	require.NoError(t, err)
	return ticket
}

// working returns a team-owned ticket that the agent has begun work on.
func (h *harness) working(t *testing.T, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	ticket := h.create(t, priority)
	ticket, err := h.assignments.AssignToTeam(ctx, manager, ticket.ID, teamNet, ticket.Version)
	require.NoError(t, err)
	ticket, err = h.tickets.BeginWork(ctx, agent, ticket.ID, ticket.Version)
	require.NoError(t, err)
	return ticket
}

func (h *harness) resolved(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := h.working(t, domain.TicketPriorityMedium)
	ticket, err := h.tickets.ResolveTicket(context.Background(), agent, ticket.ID, "Replaced router", ticket.Version)
	require.NoError(t, err)
	return ticket
}

func (h *harness) trail(t *testing.T, ticketID string) []domain.AuditLogEntry {
	t.Helper()
	page, err := h.audit.ListForTicket(context.Background(), admin, ticketID, 1000, 0)
	require.NoError(t, err)
	return page.Entries
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.IsCode(err, code), "expected %s, got %v", code, err)
}
