package domain

import (
	"fmt"
	"time"
)

// Role is a caller's capability level. Each role is a strict superset of
// the ones ranked below it.
type Role string

const (
	RoleEndUser      Role = "end_user"
	RoleSupportStaff Role = "support_staff"
	RoleManager      Role = "manager"
	RoleAdmin        Role = "admin"
)

var roleRank = map[Role]int{
	RoleEndUser:      1,
	RoleSupportStaff: 2,
	RoleManager:      3,
	RoleAdmin:        4,
}

// ParseRole validates a role name.
func ParseRole(v string) (Role, error) {
	role := Role(v)
	if _, ok := roleRank[role]; !ok {
		return "", fmt.Errorf("unknown role %q", v)
	}
	return role, nil
}

// Rank returns the capability rank; unknown roles rank 0.
func (r Role) Rank() int {
	return roleRank[r]
}

// AtLeast reports whether r has every capability of min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() > 0 && r.Rank() >= min.Rank()
}

// IsStaff reports whether r is support_staff or above.
func (r Role) IsStaff() bool {
	return r.AtLeast(RoleSupportStaff)
}

// Account is a user known to the identity provider.
type Account struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TeamMembership is one team an identity belongs to.
type TeamMembership struct {
	TeamID string
	Role   TeamRole
}

// Identity is the caller value supplied with every operation. The engine
// trusts it as given.
type Identity struct {
	UserID string
	Role   Role
	Teams  []TeamMembership
	Active bool
}

// SystemActor is recorded as the actor of sweep-driven mutations.
const SystemActor = "system"

// MemberOf reports whether the identity belongs to teamID in any role.
func (i Identity) MemberOf(teamID string) bool {
	for _, m := range i.Teams {
		if m.TeamID == teamID {
			return true
		}
	}
	return false
}

// LeaderOf reports whether the identity leads teamID.
func (i Identity) LeaderOf(teamID string) bool {
	for _, m := range i.Teams {
		if m.TeamID == teamID && m.Role == TeamRoleLeader {
			return true
		}
	}
	return false
}

// TeamIDs returns the ids of every team the identity belongs to.
func (i Identity) TeamIDs() []string {
	ids := make([]string, 0, len(i.Teams))
	for _, m := range i.Teams {
		ids = append(ids, m.TeamID)
	}
	return ids
}
