package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"geoadmin-control/internal/db"
	"geoadmin-control/internal/domain"
)

const userColumns = `id, username, first_name, last_name, email, provider_id, deleted_at, created_at, updated_at`

// UserRepo implements domain.UserRepository.
type UserRepo struct {
	q db.DBTX
}

// NewUserRepo creates a UserRepo bound to a pool or a transaction.
func NewUserRepo(q db.DBTX) *UserRepo {
	return &UserRepo{q: q}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var deletedAt sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email,
		&u.ProviderID, &deletedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.DeletedAt = timePtr(deletedAt)
	return &u, nil
}

// GetByUsername returns a user, soft-deleted or not.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundAs(mapDBError(err), "user %q not found", username)
	}
	return u, nil
}

// List returns a page of active users.
func (r *UserRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}
	out, err := r.query(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY username LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	return out, total, err
}

// ListAll returns every user including soft-deleted ones.
func (r *UserRepo) ListAll(ctx context.Context) ([]domain.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
}

func (r *UserRepo) query(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Insert persists a new user.
func (r *UserRepo) Insert(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = domain.NewID()
	}
	now := time.Now().UTC()
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("users").
		Cols("id", "username", "first_name", "last_name", "email", "provider_id", "deleted_at", "created_at", "updated_at").
		Values(u.ID, u.Username, u.FirstName, u.LastName, u.Email, u.ProviderID, nullTime(u.DeletedAt), now, now)
	query, args := ib.Build()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return mapDBError(err)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// Update writes the mutable attributes of a user, including its soft-delete state.
func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	cols := []string{"id", "first_name", "last_name", "email", "provider_id", "deleted_at", "updated_at"}
	vals := []any{u.ID, u.FirstName, u.LastName, u.Email, u.ProviderID, nullTime(u.DeletedAt), now}
	if err := updateRow(ctx, r.q, "users", u.ID, cols, vals); err != nil {
		return notFoundAs(err, "user %q not found", u.Username)
	}
	u.UpdatedAt = now
	return nil
}
