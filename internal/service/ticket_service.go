package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/sla"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// TicketService is the lifecycle engine: it enforces the transition graph,
// keeps SLA deadlines current and commits every change with its audit entry.
type TicketService struct {
	mutator
	comments     repository.CommentRepository
	attachments  repository.AttachmentRepository
	feedback     repository.FeedbackRepository
	reopenWindow time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketStore
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	FeedbackRepo   repository.FeedbackRepository
	Gate           *auth.Gate
	Clock          *sla.SLAClock
	Audit          *AuditService
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	ReopenWindow   time.Duration
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
}

// StatusUpdateInput is the generic status change request. Note carries the
// resolution when resolving and the reason when reopening.
type StatusUpdateInput struct {
	Status  domain.TicketStatus
	Note    string
	Version int64
}

// CommentInput describes a new comment.
type CommentInput struct {
	Content     string
	IsInternal  bool
	Attachments []AttachmentInput
	Version     int64
}

// AttachmentInput defines attachment metadata.
type AttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// FeedbackInput describes satisfaction feedback.
type FeedbackInput struct {
	Rating  int
	Comment string
	Version int64
}

// TicketListFilter describes listing parameters; visibility is derived from the caller.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Category   *domain.TicketCategory
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := deps.ReopenWindow
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &TicketService{
		mutator: mutator{
			tickets:    deps.TicketRepo,
			gate:       deps.Gate,
			clock:      deps.Clock,
			recorder:   deps.Audit,
			dispatcher: deps.Dispatcher,
			logger:     logger,
		},
		comments:     deps.CommentRepo,
		attachments:  deps.AttachmentRepo,
		feedback:     deps.FeedbackRepo,
		reopenWindow: window,
	}
}

// CreateTicket opens a new ticket in status new with its response deadline.
func (s *TicketService) CreateTicket(ctx context.Context, id domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if input.Category == "" {
		input.Category = domain.CategoryGeneral
	}
	details := map[string]any{}
	if title == "" {
		details["title"] = "required"
	}
	if description == "" {
		details["description"] = "required"
	}
	if !input.Priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if !input.Category.Valid() {
		details["category"] = "unknown category"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}
	if err := s.gate.Authorize(id, auth.OpCreateTicket, nil); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Category:    input.Category,
		Status:      domain.TicketStatusNew,
		Priority:    input.Priority,
		CreatedBy:   id.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	if err := s.clock.EnterPhase(ctx, ticket, domain.SLAPhaseResponse, now); err != nil {
		return nil, calendarError(err)
	}

	entry := s.recorder.Entry(id.UserID, domain.ActionTicketCreated, nil, ticket, map[string]any{
		"priority": ticket.Priority,
		"category": ticket.Category,
	})
	if err := s.tickets.Create(ctx, ticket, entry); err != nil {
		return nil, storeError(err)
	}

	s.publish(ctx, events.New(events.EventTicketCreated, ticket, id.UserID, now, events.TicketCreatedPayload{
		Title:    ticket.Title,
		Category: ticket.Category,
		Priority: ticket.Priority,
		DueAt:    ticket.DueAt,
	}))
	return ticket, nil
}

// GetTicket returns the current snapshot when the caller may view it.
func (s *TicketService) GetTicket(ctx context.Context, id domain.Identity, ticketID string) (*domain.Ticket, error) {
	return s.loadAuthorized(ctx, id, auth.OpViewTicket, ticketID)
}

// ListTickets returns the tickets visible to the caller.
func (s *TicketService) ListTickets(ctx context.Context, id domain.Identity, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := s.gate.Authorize(id, auth.OpViewTicket, nil); err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": st})
		}
	}
	for _, p := range filter.Priorities {
		if !p.Valid() {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": p})
		}
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Scope:      s.visibility(id),
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Category:   filter.Category,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, apperrors.NewUnavailable("ticket store", err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func (s *TicketService) visibility(id domain.Identity) repository.VisibilityScope {
	switch {
	case s.gate.Authorize(id, auth.OpViewAllTickets, nil) == nil:
		return repository.VisibilityScope{All: true}
	case id.Role.AtLeast(domain.RoleManager):
		return repository.VisibilityScope{CreatedBy: id.UserID, AssigneeID: id.UserID, TeamIDs: id.TeamIDs(), Unowned: true}
	case id.Role.IsStaff():
		return repository.VisibilityScope{CreatedBy: id.UserID, AssigneeID: id.UserID, TeamIDs: id.TeamIDs()}
	}
	return repository.VisibilityScope{CreatedBy: id.UserID}
}

// UpdateStatus routes a requested target status to the matching transition.
func (s *TicketService) UpdateStatus(ctx context.Context, id domain.Identity, ticketID string, input StatusUpdateInput) (*domain.Ticket, error) {
	if !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": input.Status})
	}
	switch input.Status {
	case domain.TicketStatusOpen:
		current, err := s.load(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.TicketStatusNew {
			return s.StartTicket(ctx, id, ticketID, input.Version)
		}
		if current.Status == domain.TicketStatusResolved || current.Status == domain.TicketStatusClosed {
			return s.ReopenTicket(ctx, id, ticketID, input.Note, input.Version)
		}
		if err := s.gate.Authorize(id, auth.OpViewTicket, current); err != nil {
			return nil, err
		}
		return nil, apperrors.NewInvalidTransition(string(current.Status), string(input.Status))
	case domain.TicketStatusInProgress:
		return s.BeginWork(ctx, id, ticketID, input.Version)
	case domain.TicketStatusResolved:
		return s.ResolveTicket(ctx, id, ticketID, input.Note, input.Version)
	case domain.TicketStatusClosed:
		return s.CloseTicket(ctx, id, ticketID, input.Version)
	}

	current, err := s.loadAuthorized(ctx, id, auth.OpViewTicket, ticketID)
	if err != nil {
		return nil, err
	}
	return nil, apperrors.NewInvalidTransition(string(current.Status), string(input.Status))
}

// StartTicket moves a new ticket to open, keeping the response deadline.
func (s *TicketService) StartTicket(ctx context.Context, id domain.Identity, ticketID string, version int64) (*domain.Ticket, error) {
	current, err := s.loadAuthorized(ctx, id, auth.OpStartTicket, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(current, version); err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, domain.TicketStatusOpen); err != nil {
		return nil, err
	}

	next := s.next(current)
	next.Status = domain.TicketStatusOpen
	if err := s.clock.Recompute(ctx, next); err != nil {
		return nil, calendarError(err)
	}
	if err := s.commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Audit:           s.recorder.Entry(id.UserID, domain.ActionTicketStarted, current, next, nil),
	}); err != nil {
		return nil, err
	}
	s.publish(ctx, statusChanged(current, next, id.UserID))
	return next, nil
}

// BeginWork moves an open ticket to in_progress. A ticket still in its
// response phase starts the resolution phase here.
func (s *TicketService) BeginWork(ctx context.Context, id domain.Identity, ticketID string, version int64) (*domain.Ticket, error) {
	current, err := s.loadAuthorized(ctx, id, auth.OpStartTicket, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(current, version); err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, domain.TicketStatusInProgress); err != nil {
		return nil, err
	}
	if !ownsTicket(id, current) {
		return nil, apperrors.NewForbidden("only the assignee or a member of the owning team may begin work")
	}

	next := s.next(current)
	next.Status = domain.TicketStatusInProgress
	// A reopened ticket is already in its resolution phase; its deadline stands.
	if current.SLAPhase == domain.SLAPhaseResponse {
		if err := s.clock.EnterPhase(ctx, next, domain.SLAPhaseResolution, next.UpdatedAt); err != nil {
			return nil, calendarError(err)
		}
	}
	if err := s.commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Audit:           s.recorder.Entry(id.UserID, domain.ActionWorkStarted, current, next, map[string]any{"due_at": next.DueAt}),
	}); err != nil {
		return nil, err
	}
	s.publish(ctx, statusChanged(current, next, id.UserID))
	return next, nil
}

// UpdatePriority changes priority and recomputes the active deadline from
// the start of the current phase.
func (s *TicketService) UpdatePriority(ctx context.Context, id domain.Identity, ticketID string, priority domain.TicketPriority, version int64) (*domain.Ticket, error) {
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	current, err := s.loadAuthorized(ctx, id, auth.OpUpdatePriority, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(current, version); err != nil {
		return nil, err
	}
	if !current.Status.Active() {
		return nil, apperrors.NewInvalidTransition(string(current.Status), string(current.Status))
	}
	if current.Priority == priority {
		return nil, apperrors.NewValidationError("priority unchanged", map[string]any{"priority": priority})
	}

	next := s.next(current)
	next.Priority = priority
	if err := s.clock.Recompute(ctx, next); err != nil {
		return nil, calendarError(err)
	}
	if err := s.commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Audit: s.recorder.Entry(id.UserID, domain.ActionPriorityChanged, current, next, map[string]any{
			"old_priority": current.Priority,
			"new_priority": next.Priority,
			"due_at":       next.DueAt,
		}),
	}); err != nil {
		return nil, err
	}
	return next, nil
}

// ResolveTicket records the resolution and clears the deadline.
func (s *TicketService) ResolveTicket(ctx context.Context, id domain.Identity, ticketID, resolution string, version int64) (*domain.Ticket, error) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, apperrors.NewValidationError("resolution is required", map[string]any{"field": "resolution"})
	}
	current, err := s.loadAuthorized(ctx, id, auth.OpResolveTicket, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(current, version); err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, domain.TicketStatusResolved); err != nil {
		return nil, err
	}

	next := s.next(current)
	resolvedAt := next.UpdatedAt
	next.Status = domain.TicketStatusResolved
	next.Resolution = &resolution
	next.ResolvedAt = &resolvedAt
	next.SLAPhase = domain.SLAPhaseNone
	next.DueAt = nil
	if err := s.commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Audit:           s.recorder.Entry(id.UserID, domain.ActionResolved, current, next, nil),
	}); err != nil {
		return nil, err
	}
	s.publish(ctx,
		statusChanged(current, next, id.UserID),
		events.New(events.EventTicketResolved, next, id.UserID, resolvedAt, events.TicketResolvedPayload{
			Resolution: resolution,
			ResolvedAt: resolvedAt,
		}),
	)
	return next, nil
}

// CloseTicket closes a resolved ticket.
func (s *TicketService) CloseTicket(ctx context.Context, id domain.Identity, ticketID string, version int64) (*domain.Ticket, error) {
	current, err := s.loadAuthorized(ctx, id, auth.OpCloseTicket, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(current, version); err != nil {
		return nil, err
	}
	return s.close(ctx, id.UserID, current, nil)
}

func (s *TicketService) close(ctx context.Context, actor string, current *domain.Ticket, details map[string]any) (*domain.Ticket, error) {
	if err := checkTransition(current.Status, domain.TicketStatusClosed); err != nil {
		return nil, err
	}
	next := s.next(current)
	closedAt := next.UpdatedAt
	next.Status = domain.TicketStatusClosed
	next.ClosedAt = &closedAt
	if err := s.commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Audit:           s.recorder.Entry(actor, domain.ActionClosed, current, next, details),
	}); err != nil {
		return nil, err
	}
	s.publish(ctx, statusChanged(current, next, actor))
	return next, nil
}

// ReopenTicket returns a resolved or closed ticket to open within the
// reopen window and starts a fresh resolution phase.
func (s *TicketService) ReopenTicket(ctx context.Context, id domain.Identity, ticketID, reason string, version int64) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason is required", map[string]any{"field": "reason"})
	}
	current, err := s.loadAuthorized(ctx, id, auth.OpReopenTicket, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(current, version); err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, domain.TicketStatusOpen); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	reference := current.ResolvedAt
	if current.Status == domain.TicketStatusClosed && current.ClosedAt != nil {
		reference = current.ClosedAt
	}
	if reference != nil && now.Sub(*reference) > s.reopenWindow {
		return nil, apperrors.NewReopenWindowExpired(map[string]any{
			"since":         reference,
			"window_hours":  s.reopenWindow.Hours(),
			"ticket_status": current.Status,
		})
	}

	next := s.next(current)
	next.Status = domain.TicketStatusOpen
	next.ReopenCount++
	next.ResolvedAt = nil
	next.ClosedAt = nil
	next.Resolution = nil
	if err := s.clock.EnterPhase(ctx, next, domain.SLAPhaseResolution, next.UpdatedAt); err != nil {
		return nil, calendarError(err)
	}
	if err := s.commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Audit: s.recorder.Entry(id.UserID, domain.ActionReopened, current, next, map[string]any{
			"reason":       reason,
			"reopen_count": next.ReopenCount,
		}),
	}); err != nil {
		return nil, err
	}
	s.publish(ctx,
		statusChanged(current, next, id.UserID),
		events.New(events.EventTicketReopened, next, id.UserID, next.UpdatedAt, events.TicketReopenedPayload{
			Reason:      reason,
			ReopenCount: next.ReopenCount,
			DueAt:       next.DueAt,
		}),
	)
	return next, nil
}

// AddComment appends a comment with its attachments to the ticket thread.
func (s *TicketService) AddComment(ctx context.Context, id domain.Identity, ticketID string, input CommentInput) (*domain.Ticket, *domain.Comment, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, nil, apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
	}
	for i, att := range input.Attachments {
		if strings.TrimSpace(att.FileName) == "" || strings.TrimSpace(att.StorageKey) == "" || att.SizeBytes < 0 {
			return nil, nil, apperrors.NewValidationError("invalid attachment", map[string]any{"index": i})
		}
	}
	op := auth.OpAddComment
	if input.IsInternal {
		op = auth.OpAddInternalComment
	}
	current, err := s.loadAuthorized(ctx, id, op, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkVersion(current, input.Version); err != nil {
		return nil, nil, err
	}
	if err := checkMutable(current); err != nil {
		return nil, nil, err
	}

	next := s.next(current)
	comment := &domain.Comment{
		ID:         uuid.NewString(),
		TicketID:   current.ID,
		AuthorID:   id.UserID,
		Content:    content,
		IsInternal: input.IsInternal,
		CreatedAt:  next.UpdatedAt,
	}
	for _, att := range input.Attachments {
		mime := att.MimeType
		if mime == "" {
			mime = "application/octet-stream"
		}
		comment.Attachments = append(comment.Attachments, domain.Attachment{
			ID:         uuid.NewString(),
			TicketID:   current.ID,
			CommentID:  comment.ID,
			StorageKey: strings.TrimSpace(att.StorageKey),
			FileName:   strings.TrimSpace(att.FileName),
			MimeType:   mime,
			SizeBytes:  att.SizeBytes,
			CreatedAt:  next.UpdatedAt,
		})
	}
	if err := s.commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Comment:         comment,
		Audit: s.recorder.Entry(id.UserID, domain.ActionCommentAdded, current, next, map[string]any{
			"comment_id":  comment.ID,
			"internal":    comment.IsInternal,
			"attachments": len(comment.Attachments),
		}),
	}); err != nil {
		return nil, nil, err
	}
	return next, comment, nil
}

// ListComments returns the thread with attachments; internal comments are
// hidden from callers below support_staff.
func (s *TicketService) ListComments(ctx context.Context, id domain.Identity, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.loadAuthorized(ctx, id, auth.OpViewTicket, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewUnavailable("comment store", err)
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewUnavailable("attachment store", err)
	}
	byComment := make(map[string][]domain.Attachment)
	for _, att := range attachments {
		byComment[att.CommentID] = append(byComment[att.CommentID], att)
	}

	showInternal := s.gate.Authorize(id, auth.OpAddInternalComment, ticket) == nil
	visible := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		if c.IsInternal && !showInternal {
			continue
		}
		c.Attachments = byComment[c.ID]
		visible = append(visible, c)
	}
	return visible, nil
}

// SubmitFeedback records the requester's rating for the current resolution cycle.
func (s *TicketService) SubmitFeedback(ctx context.Context, id domain.Identity, ticketID string, input FeedbackInput) (*domain.Ticket, *domain.Feedback, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": input.Rating})
	}
	current, err := s.loadAuthorized(ctx, id, auth.OpSubmitFeedback, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if current.CreatedBy != id.UserID {
		return nil, nil, apperrors.NewForbidden("only the requester may submit feedback")
	}
	if err := checkVersion(current, input.Version); err != nil {
		return nil, nil, err
	}
	if current.Status != domain.TicketStatusResolved && current.Status != domain.TicketStatusClosed {
		return nil, nil, apperrors.NewInvalidTransition(string(current.Status), string(current.Status))
	}

	next := s.next(current)
	fb := &domain.Feedback{
		ID:        uuid.NewString(),
		TicketID:  current.ID,
		AuthorID:  id.UserID,
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
		Cycle:     current.ReopenCount,
		CreatedAt: next.UpdatedAt,
	}
	err = s.tickets.Commit(ctx, repository.Mutation{
		Ticket:          next,
		ExpectedVersion: current.Version,
		Feedback:        fb,
		Audit: s.recorder.Entry(id.UserID, domain.ActionFeedbackSubmitted, current, next, map[string]any{
			"rating": fb.Rating,
			"cycle":  fb.Cycle,
		}),
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, nil, apperrors.NewConflict("feedback already submitted for this resolution", map[string]any{"cycle": fb.Cycle})
		}
		return nil, nil, storeError(err)
	}
	return next, fb, nil
}

// ListFeedback returns feedback recorded for a ticket.
func (s *TicketService) ListFeedback(ctx context.Context, id domain.Identity, ticketID string) ([]domain.Feedback, error) {
	ticket, err := s.loadAuthorized(ctx, id, auth.OpViewTicket, ticketID)
	if err != nil {
		return nil, err
	}
	result, err := s.feedback.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewUnavailable("feedback store", err)
	}
	if result == nil {
		result = []domain.Feedback{}
	}
	return result, nil
}

func ownsTicket(id domain.Identity, ticket *domain.Ticket) bool {
	if ticket.AssigneeID != nil && *ticket.AssigneeID == id.UserID {
		return true
	}
	return ticket.TeamID != nil && id.MemberOf(*ticket.TeamID)
}

func statusChanged(before, after *domain.Ticket, actor string) events.Event {
	return events.New(events.EventTicketStatusChanged, after, actor, after.UpdatedAt, events.TicketStatusChangedPayload{
		OldStatus: before.Status,
		NewStatus: after.Status,
	})
}
