package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/campauth/internal/domain/user"
	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserInsert = `
INSERT INTO coordinators (email, password_hash, first_name, last_name, district, phone)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at;`

	qUserAssignRoles = `
INSERT INTO coordinator_roles (coordinator_id, role_id)
SELECT $1, r.id FROM roles r WHERE r.name = ANY($2)
ON CONFLICT DO NOTHING;`

	qUserSelect = `
SELECT c.id, c.email, c.password_hash, c.first_name, c.last_name, c.district, c.phone,
       c.created_at, c.updated_at,
       COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
FROM coordinators c
LEFT JOIN coordinator_roles cr ON cr.coordinator_id = c.id
LEFT JOIN roles r ON r.id = cr.role_id`

	qUserByID    = qUserSelect + "\nWHERE c.id = $1\nGROUP BY c.id;"
	qUserByEmail = qUserSelect + "\nWHERE c.email = $1\nGROUP BY c.id;"
)

// Create inserts the account. It joins the transaction carried by ctx, if any.
func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qUserInsert,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.District, u.Phone).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return user.ErrConflict
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) AssignRoles(ctx context.Context, userID int64, roles []string) error {
	if len(roles) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qUserAssignRoles, userID, roles)
	if err != nil {
		return fmt.Errorf("assign roles: %w", err)
	}
	if tag.RowsAffected() < int64(len(roles)) {
		return fmt.Errorf("%w: %v", user.ErrUnknownRole, roles)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByID, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByEmail, email), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	if err := row.Scan(&out.ID, &out.Email, &out.PasswordHash, &out.FirstName, &out.LastName,
		&out.District, &out.Phone, &out.CreatedAt, &out.UpdatedAt, &out.Roles); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return fmt.Errorf("scan user: %w", err)
	}
	return nil
}
