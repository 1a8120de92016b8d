package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrAlreadyExists   = errors.New("user already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict means the read-modify-write kept colliding with concurrent writers.
	ErrConflict = errors.New("user update conflict")
)

// MutateFunc edits u in place. exists is false when no row was found; u is
// then zero-valued apart from ID. Returning write=false skips the write.
// Any error aborts the transaction and nothing is stored.
type MutateFunc func(u *User, exists bool) (write bool, err error)

// Store is the persistence contract for users and pending invitations.
type Store interface {
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u User) error
	// Mutate runs fn against the locked row inside one transaction,
	// inserting the row if it did not exist and fn asked to write.
	Mutate(ctx context.Context, id string, fn MutateFunc) error
	// IncrementTokenUsage is a single atomic increment.
	IncrementTokenUsage(ctx context.Context, id string, n int64) error
	Delete(ctx context.Context, id string) error

	PutPending(ctx context.Context, p PendingUser) error
	GetPending(ctx context.Context, email string) (PendingUser, error)
	DeletePending(ctx context.Context, email string) error
}

// Update is Mutate for rows that must already exist.
func Update(ctx context.Context, s Store, id string, fn func(u *User) (bool, error)) error {
	return s.Mutate(ctx, id, func(u *User, exists bool) (bool, error) {
		if !exists {
			return false, ErrNotFound
		}
		return fn(u)
	})
}
