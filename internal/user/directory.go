package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Directory provides the narrow read/upsert contract the launch handler
// consumes.
type Directory struct {
	repo Repository
}

// NewDirectory creates a Directory over the given repository.
func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// Upsert finds or creates the user identified by (issuer, externalID) and
// refreshes its display name. A concurrent first launch for the same
// identity is resolved by retrying the lookup after a duplicate insert:
// the unique constraint guarantees exactly one row.
func (d *Directory) Upsert(ctx context.Context, issuer, externalID, name string) (*User, error) {
	u, err := d.repo.FindByLaunch(ctx, issuer, externalID)
	if errors.Is(err, ErrUserNotFound) {
		u = &User{
			Issuer:     issuer,
			ExternalID: externalID,
			Attributes: map[string]string{},
			Groups:     []Group{},
		}
		if createErr := d.repo.Create(ctx, u); createErr != nil {
			if !errors.Is(createErr, ErrDuplicateUser) {
				return nil, fmt.Errorf("creating user: %w", createErr)
			}
			if u, err = d.repo.FindByLaunch(ctx, issuer, externalID); err != nil {
				return nil, fmt.Errorf("refetching user after duplicate insert: %w", err)
			}
		}
	} else if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}

	if err := d.repo.SetAttribute(ctx, u.ID, "name", name); err != nil {
		return nil, fmt.Errorf("setting user name: %w", err)
	}
	u.Attributes["name"] = name

	return u, nil
}

// GetByID returns the user with the given id, groups resolved.
func (d *Directory) GetByID(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return d.repo.GetByID(ctx, uid)
}
