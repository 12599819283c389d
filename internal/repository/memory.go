package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deskflow/helpdesk/internal/domain"
)

// Memory is an in-process store used when no database is configured and in
// tests. Ticket reads are lock-free atomic snapshot loads; commits lock only
// the ticket being written plus the short append section of the logs.
type Memory struct {
	tickets sync.Map // id -> *ticketSlot

	logMu       sync.Mutex
	seq         int64
	audit       []domain.AuditLogEntry
	comments    map[string][]domain.Comment
	attachments map[string][]domain.Attachment
	feedback    map[string][]domain.Feedback

	dirMu    sync.RWMutex
	accounts map[string]domain.Account
	teams    map[string]domain.Team
	sla      map[domain.TicketPriority]domain.SLAConfig

	// failWrites, when set, makes every write fail with the returned error.
	failWrites atomic.Pointer[error]
}

type ticketSlot struct {
	mu      sync.Mutex
	current atomic.Pointer[domain.Ticket]
}

// NewMemory builds an empty store seeded with the default SLA configuration.
func NewMemory() *Memory {
	m := &Memory{
		comments:    make(map[string][]domain.Comment),
		attachments: make(map[string][]domain.Attachment),
		feedback:    make(map[string][]domain.Feedback),
		accounts:    make(map[string]domain.Account),
		teams:       make(map[string]domain.Team),
		sla:         make(map[domain.TicketPriority]domain.SLAConfig),
	}
	for _, cfg := range domain.DefaultSLAConfigs() {
		m.sla[cfg.Priority] = cfg
	}
	return m
}

// FailWrites makes subsequent writes return err; nil restores normal behavior.
func (m *Memory) FailWrites(err error) {
	if err == nil {
		m.failWrites.Store(nil)
		return
	}
	m.failWrites.Store(&err)
}

func (m *Memory) writeErr() error {
	if p := m.failWrites.Load(); p != nil {
		return *p
	}
	return nil
}

// PutAccount inserts or replaces an account.
func (m *Memory) PutAccount(account domain.Account) {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()
	m.accounts[account.ID] = account
}

// PutTeam inserts or replaces a team.
func (m *Memory) PutTeam(team domain.Team) {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()
	team.Members = append([]domain.TeamMember(nil), team.Members...)
	m.teams[team.ID] = team
}

// Tickets returns the TicketStore view.
func (m *Memory) Tickets() TicketStore { return memoryTickets{m} }

// Audit returns the AuditRepository view.
func (m *Memory) Audit() AuditRepository { return memoryAudit{m} }

// Comments returns the CommentRepository view.
func (m *Memory) Comments() CommentRepository { return memoryComments{m} }

// Attachments returns the AttachmentRepository view.
func (m *Memory) Attachments() AttachmentRepository { return memoryAttachments{m} }

// Feedback returns the FeedbackRepository view.
func (m *Memory) Feedback() FeedbackRepository { return memoryFeedback{m} }

// Teams returns the TeamRepository view.
func (m *Memory) Teams() TeamRepository { return memoryTeams{m} }

// Accounts returns the AccountRepository view.
func (m *Memory) Accounts() AccountRepository { return memoryAccounts{m} }

// SLAConfigs returns the SLAConfigRepository view.
func (m *Memory) SLAConfigs() SLAConfigRepository { return memorySLA{m} }

// appendLocked appends the mutation's owned records and audit entry. Callers hold logMu.
func (m *Memory) appendLocked(entry *domain.AuditLogEntry, comment *domain.Comment, feedback *domain.Feedback) {
	if comment != nil {
		cp := *comment
		cp.Attachments = append([]domain.Attachment(nil), comment.Attachments...)
		m.comments[cp.TicketID] = append(m.comments[cp.TicketID], cp)
		m.attachments[cp.TicketID] = append(m.attachments[cp.TicketID], cp.Attachments...)
	}
	if feedback != nil {
		m.feedback[feedback.TicketID] = append(m.feedback[feedback.TicketID], *feedback)
	}
	m.seq++
	entry.ID = m.seq
	stored := *entry
	stored.Details = copyDetails(entry.Details)
	m.audit = append(m.audit, stored)
}

func copyDetails(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type memoryTickets struct{ m *Memory }

func (s memoryTickets) Create(_ context.Context, ticket *domain.Ticket, entry *domain.AuditLogEntry) error {
	if err := s.m.writeErr(); err != nil {
		return err
	}
	slot := &ticketSlot{}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if _, loaded := s.m.tickets.LoadOrStore(ticket.ID, slot); loaded {
		return ErrDuplicate
	}

	s.m.logMu.Lock()
	s.m.appendLocked(entry, nil, nil)
	s.m.logMu.Unlock()

	slot.current.Store(ticket.Clone())
	return nil
}

func (s memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	v, ok := s.m.tickets.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	current := v.(*ticketSlot).current.Load()
	if current == nil {
		return nil, ErrNotFound
	}
	return current.Clone(), nil
}

func (s memoryTickets) Commit(_ context.Context, mut Mutation) error {
	if err := s.m.writeErr(); err != nil {
		return err
	}
	v, ok := s.m.tickets.Load(mut.Ticket.ID)
	if !ok {
		return ErrNotFound
	}
	slot := v.(*ticketSlot)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	current := slot.current.Load()
	if current == nil {
		return ErrNotFound
	}
	if current.Version != mut.ExpectedVersion {
		return ErrVersionConflict
	}

	s.m.logMu.Lock()
	if mut.Feedback != nil {
		for _, existing := range s.m.feedback[mut.Feedback.TicketID] {
			if existing.Cycle == mut.Feedback.Cycle {
				s.m.logMu.Unlock()
				return ErrDuplicate
			}
		}
	}
	s.m.appendLocked(mut.Audit, mut.Comment, mut.Feedback)
	s.m.logMu.Unlock()

	slot.current.Store(mut.Ticket.Clone())
	return nil
}

func (s memoryTickets) snapshot(match func(*domain.Ticket) bool) []domain.Ticket {
	var result []domain.Ticket
	s.m.tickets.Range(func(_, v any) bool {
		if current := v.(*ticketSlot).current.Load(); current != nil && match(current) {
			result = append(result, *current.Clone())
		}
		return true
	})
	return result
}

func (s memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	result := s.snapshot(func(t *domain.Ticket) bool {
		return visible(filter.Scope, t) &&
			containsStatus(filter.Statuses, t.Status) &&
			containsPriority(filter.Priorities, t.Priority) &&
			(filter.Category == nil || *filter.Category == t.Category)
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	limit, offset := page(filter.Limit, filter.Offset)
	return window(result, limit, offset), nil
}

func (s memoryTickets) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	result := s.snapshot(func(t *domain.Ticket) bool {
		return t.Status.Active() && !t.Escalated && t.DueAt != nil && t.DueAt.Before(now)
	})
	sort.Slice(result, func(i, j int) bool { return result[i].DueAt.Before(*result[j].DueAt) })
	limit, _ = page(limit, 0)
	return window(result, limit, 0), nil
}

func (s memoryTickets) ListResolvedBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	result := s.snapshot(func(t *domain.Ticket) bool {
		return t.Status == domain.TicketStatusResolved && t.ResolvedAt != nil && t.ResolvedAt.Before(cutoff)
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ResolvedAt.Before(*result[j].ResolvedAt) })
	limit, _ = page(limit, 0)
	return window(result, limit, 0), nil
}

func visible(scope VisibilityScope, t *domain.Ticket) bool {
	if scope.All {
		return true
	}
	if scope.CreatedBy != "" && t.CreatedBy == scope.CreatedBy {
		return true
	}
	if scope.AssigneeID != "" && t.AssigneeID != nil && *t.AssigneeID == scope.AssigneeID {
		return true
	}
	if t.TeamID != nil {
		for _, id := range scope.TeamIDs {
			if id == *t.TeamID {
				return true
			}
		}
	}
	return scope.Unowned && t.AssigneeID == nil && t.TeamID == nil
}

func containsStatus(set []domain.TicketStatus, v domain.TicketStatus) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsPriority(set []domain.TicketPriority, v domain.TicketPriority) bool {
	if len(set) == 0 {
		return true
	}
	for _, p := range set {
		if p == v {
			return true
		}
	}
	return false
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type memoryAudit struct{ m *Memory }

func (s memoryAudit) Query(_ context.Context, q AuditQuery) ([]domain.AuditLogEntry, int, error) {
	s.m.logMu.Lock()
	var matched []domain.AuditLogEntry
	for _, entry := range s.m.audit {
		if q.TicketID != "" && entry.TicketID != q.TicketID {
			continue
		}
		if q.Actor != "" && entry.Actor != q.Actor {
			continue
		}
		if q.From != nil && entry.Timestamp.Before(*q.From) {
			continue
		}
		if q.To != nil && entry.Timestamp.After(*q.To) {
			continue
		}
		cp := entry
		cp.Details = copyDetails(entry.Details)
		matched = append(matched, cp)
	}
	s.m.logMu.Unlock()

	limit, offset := page(q.Limit, q.Offset)
	return window(matched, limit, offset), len(matched), nil
}

type memoryComments struct{ m *Memory }

func (s memoryComments) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	s.m.logMu.Lock()
	defer s.m.logMu.Unlock()
	result := make([]domain.Comment, 0, len(s.m.comments[ticketID]))
	for _, c := range s.m.comments[ticketID] {
		c.Attachments = nil
		result = append(result, c)
	}
	return result, nil
}

type memoryAttachments struct{ m *Memory }

func (s memoryAttachments) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	s.m.logMu.Lock()
	defer s.m.logMu.Unlock()
	return append([]domain.Attachment(nil), s.m.attachments[ticketID]...), nil
}

type memoryFeedback struct{ m *Memory }

func (s memoryFeedback) ListByTicket(_ context.Context, ticketID string) ([]domain.Feedback, error) {
	s.m.logMu.Lock()
	defer s.m.logMu.Unlock()
	return append([]domain.Feedback(nil), s.m.feedback[ticketID]...), nil
}

type memoryTeams struct{ m *Memory }

func (s memoryTeams) GetByID(_ context.Context, id string) (*domain.Team, error) {
	s.m.dirMu.RLock()
	defer s.m.dirMu.RUnlock()
	team, ok := s.m.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	team.Members = append([]domain.TeamMember(nil), team.Members...)
	return &team, nil
}

func (s memoryTeams) ListByMember(_ context.Context, userID string) ([]domain.TeamMembership, error) {
	s.m.dirMu.RLock()
	defer s.m.dirMu.RUnlock()
	var result []domain.TeamMembership
	for _, team := range s.m.teams {
		for _, member := range team.Members {
			if member.UserID == userID {
				result = append(result, domain.TeamMembership{TeamID: team.ID, Role: member.Role})
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TeamID < result[j].TeamID })
	return result, nil
}

type memoryAccounts struct{ m *Memory }

func (s memoryAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.m.dirMu.RLock()
	defer s.m.dirMu.RUnlock()
	account, ok := s.m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

type memorySLA struct{ m *Memory }

func (s memorySLA) Get(_ context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error) {
	s.m.dirMu.RLock()
	defer s.m.dirMu.RUnlock()
	cfg, ok := s.m.sla[priority]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (s memorySLA) List(_ context.Context) ([]domain.SLAConfig, error) {
	s.m.dirMu.RLock()
	defer s.m.dirMu.RUnlock()
	result := make([]domain.SLAConfig, 0, len(s.m.sla))
	for _, cfg := range s.m.sla {
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ResponseMinutes < result[j].ResponseMinutes })
	return result, nil
}

func (s memorySLA) Upsert(_ context.Context, cfg *domain.SLAConfig) error {
	if err := s.m.writeErr(); err != nil {
		return err
	}
	s.m.dirMu.Lock()
	defer s.m.dirMu.Unlock()
	s.m.sla[cfg.Priority] = *cfg
	return nil
}
