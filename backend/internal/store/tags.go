package store

import (
	"context"
	"database/sql"
	stderrors "errors"

	"knowledge-base/backend/internal/models"
	apperrors "knowledge-base/backend/pkg/errors"
)

const tagColumns = `t.id, t.owner_id, t.name, t.slug, t.color, t.description, t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM note_tags nt WHERE nt.tag_id = t.id) AS usage_count`

func scanTag(s scanner) (*models.Tag, error) {
	var (
		t                    models.Tag
		createdAt, updatedAt int64
	)
	if err := s.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Slug, &t.Color, &t.Description, &createdAt, &updatedAt, &t.UsageCount); err != nil {
		return nil, err
	}
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return &t, nil
}

func (tx *Tx) queryTags(ctx context.Context, query string, args ...any) ([]*models.Tag, error) {
	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageFailed("query tags", err)
	}
	defer rows.Close()

	tags := []*models.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, apperrors.NewStorageFailed("scan tag", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageFailed("query tags", err)
	}
	return tags, nil
}

// CreateTag inserts t and fills its id and timestamps
func (tx *Tx) CreateTag(ctx context.Context, t *models.Tag) error {
	ts := now()
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO tags (owner_id, name, slug, color, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.OwnerID, t.Name, t.Slug, t.Color, t.Description, toMillis(ts), toMillis(ts),
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflict("tag", t.Name)
	}
	if err != nil {
		return apperrors.NewStorageFailed("insert tag", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return apperrors.NewStorageFailed("insert tag", err)
	}
	t.CreatedAt, t.UpdatedAt = ts, ts
	return nil
}

// UpdateTag saves the editable fields of t
func (tx *Tx) UpdateTag(ctx context.Context, t *models.Tag) error {
	ts := now()
	_, err := tx.q.ExecContext(ctx, `
		UPDATE tags SET name = ?, color = ?, description = ?, updated_at = ? WHERE owner_id = ? AND id = ?`,
		t.Name, t.Color, t.Description, toMillis(ts), t.OwnerID, t.ID,
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflict("tag", t.Name)
	}
	if err != nil {
		return apperrors.NewStorageFailed("update tag", err)
	}
	t.UpdatedAt = ts
	return nil
}

// GetTag returns one of the owner's tags
func (tx *Tx) GetTag(ctx context.Context, ownerID, id int64) (*models.Tag, error) {
	row := tx.q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags t WHERE t.owner_id = ? AND t.id = ?`, ownerID, id)
	t, err := scanTag(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("tag", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailed("get tag", err)
	}
	return t, nil
}

// FindTagByName returns the owner's tag named name, or nil
func (tx *Tx) FindTagByName(ctx context.Context, ownerID int64, name string) (*models.Tag, error) {
	row := tx.q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags t WHERE t.owner_id = ? AND t.name = ?`, ownerID, name)
	t, err := scanTag(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageFailed("find tag", err)
	}
	return t, nil
}

// ListTags returns the owner's tags, most used first
func (tx *Tx) ListTags(ctx context.Context, ownerID int64) ([]*models.Tag, error) {
	return tx.queryTags(ctx, `
		SELECT `+tagColumns+` FROM tags t WHERE t.owner_id = ? ORDER BY usage_count DESC, t.name`,
		ownerID,
	)
}

// HotTags returns the owner's most used tags that are used at least once
func (tx *Tx) HotTags(ctx context.Context, ownerID int64, limit int) ([]*models.Tag, error) {
	return tx.queryTags(ctx, `
		SELECT `+tagColumns+` FROM tags t WHERE t.owner_id = ? AND usage_count > 0
		ORDER BY usage_count DESC, t.name LIMIT ?`,
		ownerID, limit,
	)
}

// SearchTags matches tag names case-insensitively
func (tx *Tx) SearchTags(ctx context.Context, ownerID int64, query string) ([]*models.Tag, error) {
	return tx.queryTags(ctx, `
		SELECT `+tagColumns+` FROM tags t WHERE t.owner_id = ? AND t.name LIKE ? ESCAPE '\'
		ORDER BY usage_count DESC, t.name`,
		ownerID, likePattern(query),
	)
}

// TagsByID returns the owner's tags among ids, in name order. Foreign ids are skipped.
func (tx *Tx) TagsByID(ctx context.Context, ownerID int64, ids []int64) ([]*models.Tag, error) {
	if len(ids) == 0 {
		return []*models.Tag{}, nil
	}
	args := append([]any{ownerID}, int64Args(ids)...)
	return tx.queryTags(ctx, `
		SELECT `+tagColumns+` FROM tags t WHERE t.owner_id = ? AND t.id IN (`+placeholders(len(ids))+`)
		ORDER BY t.name`,
		args...,
	)
}

// TagSlugTaken reports whether the owner already uses slug
func (tx *Tx) TagSlugTaken(ctx context.Context, ownerID int64, slug string) (bool, error) {
	taken, err := tx.exists(ctx, `SELECT COUNT(*) FROM tags WHERE owner_id = ? AND slug = ?`, ownerID, slug)
	if err != nil {
		return false, apperrors.NewStorageFailed("check tag slug", err)
	}
	return taken, nil
}

// NoteIDsWithTag returns the notes carrying tagID
func (tx *Tx) NoteIDsWithTag(ctx context.Context, tagID int64) ([]int64, error) {
	ids, err := tx.queryIDs(ctx, `SELECT note_id FROM note_tags WHERE tag_id = ? ORDER BY note_id`, tagID)
	if err != nil {
		return nil, apperrors.NewStorageFailed("notes with tag", err)
	}
	return ids, nil
}

// DeleteTag removes a tag; its note memberships cascade
func (tx *Tx) DeleteTag(ctx context.Context, ownerID, id int64) error {
	res, err := tx.q.ExecContext(ctx, `DELETE FROM tags WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return apperrors.NewStorageFailed("delete tag", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("tag", id)
	}
	return nil
}
