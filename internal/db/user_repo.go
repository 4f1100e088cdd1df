package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"bizpulse/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user. Emails are compared case-insensitively; a duplicate
// returns ErrCodeConflictEmail.
func (r *UserRepository) Create(ctx context.Context, u *types.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		u.ID,
		strings.ToLower(u.Email),
		u.PasswordHash,
		u.Name,
		u.Role,
		u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "Email already registered", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// GetByID returns ErrCodeNotFoundUser when no user matches.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "User not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}

// GetByEmail returns ErrCodeAuthUserNotFound when no user matches, so that
// login can map it to a generic credential error.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`,
		email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthUserNotFound, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user by email", err)
	}
	return u, nil
}

// UpdateRole sets a user's role.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role types.Role) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`,
		role,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update user role", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "User not found", nil)
	}
	return nil
}

// CountByRole returns the number of users holding role.
func (r *UserRepository) CountByRole(ctx context.Context, role types.Role) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count users", err)
	}
	return n, nil
}

// List returns users matching the filter, newest first, together with the
// total number of matches ignoring the limit.
func (r *UserRepository) List(ctx context.Context, f types.UserFilter) ([]*types.User, int, error) {
	var w whereBuilder
	if f.Role.Valid() {
		w.add("role = ?", f.Role)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add(`(name ILIKE ? OR email ILIKE ?)`, likePattern(s))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count users", err)
	}

	where := w.sql()
	limit := w.next(f.Limit)
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users`+where+` ORDER BY created_at DESC LIMIT `+limit,
		w.args...,
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list users", err)
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate users", err)
	}
	return users, total, nil
}

// CountPerRole returns user counts keyed by role.
func (r *UserRepository) CountPerRole(ctx context.Context) (map[types.Role]int, error) {
	rows, err := r.db.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role ORDER BY role`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to group users by role", err)
	}
	defer rows.Close()

	out := make(map[types.Role]int)
	for rows.Next() {
		var role types.Role
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan role count", err)
		}
		out[role] = n
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate role counts", err)
	}
	return out, nil
}
