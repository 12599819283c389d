package domain

import "time"

// Feedback is the requester's satisfaction rating for one resolution cycle.
// Cycle equals the ticket's reopen count at submission time.
type Feedback struct {
	ID        string
	TicketID  string
	AuthorID  string
	Rating    int
	Comment   string
	Cycle     int
	CreatedAt time.Time
}
