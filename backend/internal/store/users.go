package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"knowledge-base/backend/internal/models"
	apperrors "knowledge-base/backend/pkg/errors"
)

const userColumns = `id, username, email, password_hash, avatar, bio, created_at, updated_at`

func scanUser(s scanner) (*models.User, error) {
	var (
		u                    models.User
		createdAt, updatedAt int64
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Avatar, &u.Bio, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

// CreateUser inserts u and fills its id and timestamps
func (tx *Tx) CreateUser(ctx context.Context, u *models.User) error {
	ts := now()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, avatar, bio, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.Avatar, u.Bio, toMillis(ts), toMillis(ts),
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflict("user", u.Username+" / "+u.Email)
	}
	if err != nil {
		return apperrors.NewStorageFailed("insert user", err)
	}
	u.ID, err = res.LastInsertId()
	if err != nil {
		return apperrors.NewStorageFailed("insert user", err)
	}
	u.CreatedAt, u.UpdatedAt = ts, ts
	return nil
}

// GetUser returns a user by id
func (tx *Tx) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := tx.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("user", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailed("get user", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email, case-insensitively
func (tx *Tx) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := tx.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("user", email)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailed("get user by email", err)
	}
	return u, nil
}

// ListUserIDs returns every user id, used by maintenance commands
func (tx *Tx) ListUserIDs(ctx context.Context) ([]int64, error) {
	ids, err := tx.queryIDs(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewStorageFailed("list users", err)
	}
	return ids, nil
}

// UpdateUserProfile saves the editable profile fields of u
func (tx *Tx) UpdateUserProfile(ctx context.Context, u *models.User) error {
	ts := now()
	_, err := tx.q.ExecContext(ctx, `
		UPDATE users SET username = ?, avatar = ?, bio = ?, updated_at = ? WHERE id = ?`,
		u.Username, u.Avatar, u.Bio, toMillis(ts), u.ID,
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflict("user", u.Username)
	}
	if err != nil {
		return apperrors.NewStorageFailed("update user", err)
	}
	u.UpdatedAt = ts
	return nil
}

// UpdateUserPassword replaces the stored password hash
func (tx *Tx) UpdateUserPassword(ctx context.Context, userID int64, hash string) error {
	_, err := tx.q.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(now()), userID,
	)
	if err != nil {
		return apperrors.NewStorageFailed("update password", err)
	}
	return nil
}
