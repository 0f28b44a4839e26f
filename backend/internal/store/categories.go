package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/models"
	apperrors "knowledge-base/backend/pkg/errors"
)

const categoryColumns = `c.id, c.owner_id, c.parent_id, c.name, c.slug, c.description, c.color, c.icon,
	c.is_active, c.sort_order, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM notes n WHERE n.category_id = c.id) AS note_count`

func scanCategory(s scanner) (*models.Category, error) {
	var (
		c                    models.Category
		parentID             sql.NullInt64
		isActive             int
		createdAt, updatedAt int64
	)
	if err := s.Scan(&c.ID, &c.OwnerID, &parentID, &c.Name, &c.Slug, &c.Description, &c.Color, &c.Icon,
		&isActive, &c.SortOrder, &createdAt, &updatedAt, &c.NoteCount); err != nil {
		return nil, err
	}
	c.ParentID = int64Ptr(parentID)
	c.IsActive = isActive != 0
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

// CreateCategory inserts c and fills its id, timestamps and path
func (tx *Tx) CreateCategory(ctx context.Context, c *models.Category) error {
	ts := now()
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO categories (owner_id, parent_id, name, slug, description, color, icon, is_active, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.OwnerID, nullInt64(c.ParentID), c.Name, c.Slug, c.Description, c.Color, c.Icon,
		boolInt(c.IsActive), c.SortOrder, toMillis(ts), toMillis(ts),
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflict("category", c.Slug)
	}
	if err != nil {
		return apperrors.NewStorageFailed("insert category", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return apperrors.NewStorageFailed("insert category", err)
	}
	c.CreatedAt, c.UpdatedAt = ts, ts
	return tx.fillCategoryPath(ctx, c)
}

// UpdateCategory saves the editable fields of c
func (tx *Tx) UpdateCategory(ctx context.Context, c *models.Category) error {
	ts := now()
	_, err := tx.q.ExecContext(ctx, `
		UPDATE categories
		SET parent_id = ?, name = ?, description = ?, color = ?, icon = ?, is_active = ?, sort_order = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		nullInt64(c.ParentID), c.Name, c.Description, c.Color, c.Icon, boolInt(c.IsActive), c.SortOrder, toMillis(ts),
		c.OwnerID, c.ID,
	)
	if err != nil {
		return apperrors.NewStorageFailed("update category", err)
	}
	c.UpdatedAt = ts
	return tx.fillCategoryPath(ctx, c)
}

// GetCategory returns one of the owner's categories with its path
func (tx *Tx) GetCategory(ctx context.Context, ownerID, id int64) (*models.Category, error) {
	row := tx.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.owner_id = ? AND c.id = ?`, ownerID, id)
	c, err := scanCategory(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("category", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailed("get category", err)
	}
	if err := tx.fillCategoryPath(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCategories returns all of the owner's categories, ordered by
// sort order then name, with paths and levels filled in.
func (tx *Tx) ListCategories(ctx context.Context, ownerID int64) ([]*models.Category, error) {
	rows, err := tx.q.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories c
		WHERE c.owner_id = ? ORDER BY c.sort_order, c.name, c.id`, ownerID)
	if err != nil {
		return nil, apperrors.NewStorageFailed("list categories", err)
	}
	defer rows.Close()

	categories := []*models.Category{}
	byID := make(map[int64]*models.Category)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, apperrors.NewStorageFailed("scan category", err)
		}
		categories = append(categories, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageFailed("list categories", err)
	}

	for _, c := range categories {
		names := []string{c.Name}
		seen := map[int64]bool{c.ID: true}
		for p := c.ParentID; p != nil; {
			parent, ok := byID[*p]
			if !ok || seen[parent.ID] {
				break
			}
			seen[parent.ID] = true
			names = append([]string{parent.Name}, names...)
			p = parent.ParentID
		}
		c.Path = strings.Join(names, constants.CategoryPathSeparator)
		c.Level = len(names) - 1
	}
	return categories, nil
}

// fillCategoryPath computes Path and Level from the ancestor chain
func (tx *Tx) fillCategoryPath(ctx context.Context, c *models.Category) error {
	rows, err := tx.q.QueryContext(ctx, `
		WITH RECURSIVE ancestors(id, parent_id, name, depth) AS (
			SELECT id, parent_id, name, 0 FROM categories WHERE owner_id = ? AND id = ?
			UNION ALL
			SELECT p.id, p.parent_id, p.name, a.depth + 1
			FROM categories p JOIN ancestors a ON p.id = a.parent_id
			WHERE a.depth < 64
		)
		SELECT name FROM ancestors ORDER BY depth DESC`,
		c.OwnerID, c.ID,
	)
	if err != nil {
		return apperrors.NewStorageFailed("category path", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return apperrors.NewStorageFailed("category path", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return apperrors.NewStorageFailed("category path", err)
	}
	if len(names) == 0 {
		names = []string{c.Name}
	}
	c.Path = strings.Join(names, constants.CategoryPathSeparator)
	c.Level = len(names) - 1
	return nil
}

// CategorySubtreeIDs returns id and the ids of all its descendants
func (tx *Tx) CategorySubtreeIDs(ctx context.Context, ownerID, id int64) ([]int64, error) {
	ids, err := tx.queryIDs(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM categories WHERE owner_id = ? AND id = ?
			UNION
			SELECT c.id FROM categories c JOIN subtree s ON c.parent_id = s.id
		)
		SELECT id FROM subtree`,
		ownerID, id,
	)
	if err != nil {
		return nil, apperrors.NewStorageFailed("category subtree", err)
	}
	return ids, nil
}

// CategorySlugTaken reports whether the owner already uses slug
func (tx *Tx) CategorySlugTaken(ctx context.Context, ownerID int64, slug string) (bool, error) {
	taken, err := tx.exists(ctx, `SELECT COUNT(*) FROM categories WHERE owner_id = ? AND slug = ?`, ownerID, slug)
	if err != nil {
		return false, apperrors.NewStorageFailed("check category slug", err)
	}
	return taken, nil
}

// NoteIDsInCategories returns the owner's notes filed under any of categoryIDs
func (tx *Tx) NoteIDsInCategories(ctx context.Context, ownerID int64, categoryIDs []int64) ([]int64, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	args := append([]any{ownerID}, int64Args(categoryIDs)...)
	ids, err := tx.queryIDs(ctx, `
		SELECT id FROM notes WHERE owner_id = ? AND category_id IN (`+placeholders(len(categoryIDs))+`)`,
		args...,
	)
	if err != nil {
		return nil, apperrors.NewStorageFailed("notes in categories", err)
	}
	return ids, nil
}

// DeleteCategories removes categories by id. Children cascade in the
// database and notes lose their category.
func (tx *Tx) DeleteCategories(ctx context.Context, ownerID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{ownerID}, int64Args(ids)...)
	if _, err := tx.q.ExecContext(ctx, `
		DELETE FROM categories WHERE owner_id = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...,
	); err != nil {
		return apperrors.NewStorageFailed("delete categories", err)
	}
	return nil
}
