package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents a row in the users table. Identity is keyed on the
// (issuer, external subject id) pair, so identical subject ids issued by
// two different platforms never collide onto one row.
type User struct {
	ID         uuid.UUID
	Issuer     string
	ExternalID string
	Attributes map[string]string
	Groups     []Group
	CreatedAt  time.Time
}

// Group is a group membership, represented by its external identifier.
type Group struct {
	ID         uuid.UUID
	ExternalID string
}

// DisplayName returns the user's name attribute, empty when unset.
func (u *User) DisplayName() string {
	return u.Attributes["name"]
}

// GroupExternalIDs returns the external ids of all groups the user
// belongs to.
func (u *User) GroupExternalIDs() []string {
	ids := make([]string, 0, len(u.Groups))
	for _, g := range u.Groups {
		ids = append(ids, g.ExternalID)
	}
	return ids
}
