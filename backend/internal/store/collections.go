package store

import (
	"context"
	"database/sql"
	stderrors "errors"

	"knowledge-base/backend/internal/models"
	apperrors "knowledge-base/backend/pkg/errors"
)

const collectionColumns = `id, owner_id, title, description, url, domain, favicon, image, content, html_content,
	is_processed, word_count, view_count, created_at, updated_at`

func scanCollection(s scanner) (*models.Collection, error) {
	var (
		c                    models.Collection
		processed            int
		createdAt, updatedAt int64
	)
	if err := s.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Description, &c.URL, &c.Domain, &c.Favicon, &c.Image,
		&c.Content, &c.HTMLContent, &processed, &c.WordCount, &c.ViewCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.IsProcessed = processed != 0
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

func (tx *Tx) queryCollections(ctx context.Context, query string, args ...any) ([]*models.Collection, error) {
	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageFailed("query collections", err)
	}
	defer rows.Close()

	out := []*models.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, apperrors.NewStorageFailed("scan collection", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageFailed("query collections", err)
	}
	return out, nil
}

// CreateCollection inserts c and fills its id and timestamps
func (tx *Tx) CreateCollection(ctx context.Context, c *models.Collection) error {
	ts := now()
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO collections (owner_id, title, description, url, domain, favicon, image, content, html_content,
			is_processed, word_count, view_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		c.OwnerID, c.Title, c.Description, c.URL, c.Domain, c.Favicon, c.Image, c.Content, c.HTMLContent,
		boolInt(c.IsProcessed), c.WordCount, toMillis(ts), toMillis(ts),
	)
	if err != nil {
		return apperrors.NewStorageFailed("insert collection", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return apperrors.NewStorageFailed("insert collection", err)
	}
	c.CreatedAt, c.UpdatedAt = ts, ts
	return nil
}

// UpdateCollection saves every mutable column of c
func (tx *Tx) UpdateCollection(ctx context.Context, c *models.Collection) error {
	ts := now()
	res, err := tx.q.ExecContext(ctx, `
		UPDATE collections SET title = ?, description = ?, url = ?, domain = ?, favicon = ?, image = ?, content = ?,
			html_content = ?, is_processed = ?, word_count = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		c.Title, c.Description, c.URL, c.Domain, c.Favicon, c.Image, c.Content, c.HTMLContent,
		boolInt(c.IsProcessed), c.WordCount, toMillis(ts), c.OwnerID, c.ID,
	)
	if err != nil {
		return apperrors.NewStorageFailed("update collection", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("collection", c.ID)
	}
	c.UpdatedAt = ts
	return nil
}

// GetCollection returns one of the owner's collections
func (tx *Tx) GetCollection(ctx context.Context, ownerID, id int64) (*models.Collection, error) {
	row := tx.q.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE owner_id = ? AND id = ?`, ownerID, id)
	c, err := scanCollection(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("collection", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailed("get collection", err)
	}
	return c, nil
}

// CollectionFilter narrows ListCollections
type CollectionFilter struct {
	// Search matches title, description or content, case-insensitively
	Search    string
	Processed *bool
	// Ordering is one of created_at, -created_at, title, -title. Anything
	// else means newest first.
	Ordering string
}

var collectionOrderings = map[string]string{
	"created_at":  "created_at ASC, id ASC",
	"-created_at": "created_at DESC, id DESC",
	"title":       "title COLLATE NOCASE ASC, id ASC",
	"-title":      "title COLLATE NOCASE DESC, id DESC",
}

// ListCollections returns a filtered page of the owner's collections
func (tx *Tx) ListCollections(ctx context.Context, ownerID int64, f CollectionFilter, page models.Page) (*models.Paginated[*models.Collection], error) {
	where := `owner_id = ?`
	args := []any{ownerID}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		where += ` AND (title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern, pattern)
	}
	if f.Processed != nil {
		where += ` AND is_processed = ?`
		args = append(args, boolInt(*f.Processed))
	}
	order, ok := collectionOrderings[f.Ordering]
	if !ok {
		order = collectionOrderings["-created_at"]
	}

	var count int64
	if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE `+where, args...).Scan(&count); err != nil {
		return nil, apperrors.NewStorageFailed("count collections", err)
	}
	items, err := tx.queryCollections(ctx, `
		SELECT `+collectionColumns+` FROM collections WHERE `+where+`
		ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, page.Size, page.Offset())...,
	)
	if err != nil {
		return nil, err
	}
	return &models.Paginated[*models.Collection]{Count: count, Results: items}, nil
}

// RecentCollections returns the owner's newest collections
func (tx *Tx) RecentCollections(ctx context.Context, ownerID int64, limit int) ([]*models.Collection, error) {
	return tx.queryCollections(ctx, `
		SELECT `+collectionColumns+` FROM collections WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		ownerID, limit,
	)
}

// AllCollections returns every collection of the owner in id order
func (tx *Tx) AllCollections(ctx context.Context, ownerID int64) ([]*models.Collection, error) {
	return tx.queryCollections(ctx, `SELECT `+collectionColumns+` FROM collections WHERE owner_id = ? ORDER BY id`, ownerID)
}

// DeleteCollection removes one of the owner's collections
func (tx *Tx) DeleteCollection(ctx context.Context, ownerID, id int64) error {
	res, err := tx.q.ExecContext(ctx, `DELETE FROM collections WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return apperrors.NewStorageFailed("delete collection", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("collection", id)
	}
	return nil
}
