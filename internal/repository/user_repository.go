package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/filmoteca/filmoteca/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns the stored row. The email is normalized
// to lower case before insert so the unique key enforces case-insensitive
// uniqueness.
func (r *UserRepo) Create(ctx context.Context, name, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, registered_at) VALUES (?,?,?)",
		name, email, now)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return model.User{ID: uint64(id), Name: name, Email: email, RegisteredAt: now}, nil
}

// GetByID fetches a user by id. Returns sql.ErrNoRows when absent.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,registered_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Name, &u.Email, &u.RegisteredAt)
	return u, err
}

// GetByNameAndEmail is the login lookup: both values must match, the email
// case-insensitively. This is an identification check only, there is no
// credential secret involved.
func (r *UserRepo) GetByNameAndEmail(ctx context.Context, name, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,registered_at FROM users WHERE email=? AND name=? LIMIT 1",
		email, name).Scan(&u.ID, &u.Name, &u.Email, &u.RegisteredAt)
	return u, err
}

// List returns one page of users ordered by id ascending, plus the total
// record count for the pagination metadata.
func (r *UserRepo) List(ctx context.Context, page, limit int) ([]model.User, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,email,registered_at FROM users ORDER BY id ASC LIMIT ? OFFSET ?",
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.User, 0, limit)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.RegisteredAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update applies a partial update: nil fields keep their current value.
// A changed email is re-checked against the unique key.
func (r *UserRepo) Update(ctx context.Context, id uint64, name, email *string) (model.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if name != nil {
		u.Name = *name
	}
	if email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*email))
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, email=? WHERE id=?",
		u.Name, u.Email, id)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	return u, nil
}

// Delete removes a user. Dependent favorites are removed by the store's
// ON DELETE CASCADE, not by application-level iteration.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
