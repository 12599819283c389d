package service

import (
	"github.com/deskflow/helpdesk/internal/domain"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:        {domain.TicketStatusOpen},
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusOpen},
	domain.TicketStatusClosed:     {domain.TicketStatusOpen},
}

// IsValidTransition reports whether the lifecycle graph has an edge from current to next.
func IsValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func checkTransition(current, next domain.TicketStatus) error {
	if !IsValidTransition(current, next) {
		return apperrors.NewInvalidTransition(string(current), string(next))
	}
	return nil
}

// checkMutable rejects status-preserving changes on tickets that only a
// reopen may alter.
func checkMutable(ticket *domain.Ticket) error {
	if ticket.Status == domain.TicketStatusClosed {
		return apperrors.NewInvalidTransition(string(ticket.Status), string(ticket.Status))
	}
	return nil
}
