package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateUser is returned when creating a user whose
// (issuer, external id) pair already exists.
var ErrDuplicateUser = errors.New("user already exists")

// Repository provides operations on the users and groups tables.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByLaunch(ctx context.Context, issuer, externalID string) (*User, error)
	SetAttribute(ctx context.Context, id uuid.UUID, key, value string) error
}
