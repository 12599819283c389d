package domain

import "time"

// Comment is an immutable entry in a ticket thread. Internal comments are
// visible to staff roles only.
type Comment struct {
	ID          string
	TicketID    string
	AuthorID    string
	Content     string
	IsInternal  bool
	Attachments []Attachment
	CreatedAt   time.Time
}

// Attachment stores metadata for a file uploaded alongside a comment.
type Attachment struct {
	ID         string
	TicketID   string
	CommentID  string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
