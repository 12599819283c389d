package domain

import "time"

// TeamRole is a member's role inside a team.
type TeamRole string

const (
	TeamRoleLeader TeamRole = "leader"
	TeamRoleMember TeamRole = "member"
)

// TeamMember links an account to a team.
type TeamMember struct {
	UserID string
	Role   TeamRole
}

// Team groups staff that can own tickets collectively.
type Team struct {
	ID        string
	Name      string
	Members   []TeamMember
	CreatedAt time.Time
}

// HasMember reports whether userID belongs to the team.
func (t *Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
