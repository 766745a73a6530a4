package user

import "context"

// Directory resolves accounts and their current roles.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

type Repo interface {
	Directory
	Create(ctx context.Context, u *User) error
	AssignRoles(ctx context.Context, userID int64, roles []string) error
}
