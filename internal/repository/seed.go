package repository

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deskflow/helpdesk/internal/domain"
)

// Seed describes directory data loaded into the in-memory store.
type Seed struct {
	Accounts []SeedAccount `yaml:"accounts"`
	Teams    []SeedTeam    `yaml:"teams"`
}

// SeedAccount is one account entry.
type SeedAccount struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Role     string `yaml:"role"`
	Inactive bool   `yaml:"inactive"`
}

// SeedTeam is one team entry; members map user id to team role.
type SeedTeam struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Members map[string]string `yaml:"members"`
}

// LoadSeedFile reads a YAML seed file.
func LoadSeedFile(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// Apply validates the seed and writes it into m.
func (s *Seed) Apply(m *Memory, now time.Time) error {
	for _, a := range s.Accounts {
		if a.ID == "" {
			return errors.New("seed account without id")
		}
		role, err := domain.ParseRole(a.Role)
		if err != nil {
			return fmt.Errorf("seed account %s: %w", a.ID, err)
		}
		m.PutAccount(domain.Account{
			ID:        a.ID,
			Name:      a.Name,
			Email:     a.Email,
			Role:      role,
			Active:    !a.Inactive,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	for _, t := range s.Teams {
		if t.ID == "" {
			return errors.New("seed team without id")
		}
		team := domain.Team{ID: t.ID, Name: t.Name, CreatedAt: now}
		for userID, role := range t.Members {
			teamRole := domain.TeamRole(role)
			if teamRole != domain.TeamRoleLeader && teamRole != domain.TeamRoleMember {
				return fmt.Errorf("seed team %s: unknown member role %q", t.ID, role)
			}
			team.Members = append(team.Members, domain.TeamMember{UserID: userID, Role: teamRole})
		}
		sort.Slice(team.Members, func(i, j int) bool { return team.Members[i].UserID < team.Members[j].UserID })
		m.PutTeam(team)
	}
	return nil
}
