package domain

import (
	"strings"
	"time"
)

// Initiative owns one board.
type Initiative struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// NewInitiative constructs a validated initiative.
func NewInitiative(id, name, ownerID string, now time.Time) (Initiative, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Initiative{}, ErrInvalidID
	}
	if name == "" {
		return Initiative{}, ErrInvalidName
	}
	return Initiative{
		ID:        id,
		Name:      name,
		OwnerID:   strings.TrimSpace(ownerID),
		CreatedAt: now.UTC(),
	}, nil
}

// TeamMember is a collaborator on an initiative. Used for assignee display.
type TeamMember struct {
	ID           string `json:"id"`
	InitiativeID string `json:"initiativeId"`
	Name         string `json:"name"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
}

// NewTeamMember constructs a validated team member.
func NewTeamMember(id, initiativeID, name, avatarURL string) (TeamMember, error) {
	id = strings.TrimSpace(id)
	initiativeID = strings.TrimSpace(initiativeID)
	name = strings.TrimSpace(name)
	if id == "" || initiativeID == "" {
		return TeamMember{}, ErrInvalidID
	}
	if name == "" {
		return TeamMember{}, ErrInvalidName
	}
	return TeamMember{
		ID:           id,
		InitiativeID: initiativeID,
		Name:         name,
		AvatarURL:    strings.TrimSpace(avatarURL),
	}, nil
}

// Access describes what the current user may do on a board.
type Access struct {
	IsOwner      bool `json:"isOwner"`
	IsTeamMember bool `json:"isTeamMember"`
}

// CanEdit reports whether the user may reorder tasks.
func (a Access) CanEdit() bool {
	return a.IsOwner || a.IsTeamMember
}
