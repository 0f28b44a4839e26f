package store

import (
	"context"
	"database/sql"
	stderrors "errors"

	"knowledge-base/backend/internal/models"
	apperrors "knowledge-base/backend/pkg/errors"
)

const attachmentColumns = `id, owner_id, note_id, name, path, file_type, mime_type, size, created_at`

func scanAttachment(s scanner) (*models.Attachment, error) {
	var (
		a         models.Attachment
		noteID    sql.NullInt64
		fileType  string
		createdAt int64
	)
	if err := s.Scan(&a.ID, &a.OwnerID, &noteID, &a.Name, &a.Path, &fileType, &a.MimeType, &a.Size, &createdAt); err != nil {
		return nil, err
	}
	a.NoteID = int64Ptr(noteID)
	a.FileType = models.FileType(fileType)
	a.CreatedAt = fromMillis(createdAt)
	return &a, nil
}

func (tx *Tx) queryAttachments(ctx context.Context, query string, args ...any) ([]*models.Attachment, error) {
	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageFailed("query attachments", err)
	}
	defer rows.Close()

	out := []*models.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, apperrors.NewStorageFailed("scan attachment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageFailed("query attachments", err)
	}
	return out, nil
}

// CreateAttachment inserts a and fills its id and creation time
func (tx *Tx) CreateAttachment(ctx context.Context, a *models.Attachment) error {
	ts := now()
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO attachments (owner_id, note_id, name, path, file_type, mime_type, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.OwnerID, nullInt64(a.NoteID), a.Name, a.Path, string(a.FileType), a.MimeType, a.Size, toMillis(ts),
	)
	if err != nil {
		return apperrors.NewStorageFailed("insert attachment", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return apperrors.NewStorageFailed("insert attachment", err)
	}
	a.CreatedAt = ts
	return nil
}

// GetAttachment returns one of the owner's attachments
func (tx *Tx) GetAttachment(ctx context.Context, ownerID, id int64) (*models.Attachment, error) {
	row := tx.q.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE owner_id = ? AND id = ?`, ownerID, id)
	a, err := scanAttachment(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("attachment", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailed("get attachment", err)
	}
	return a, nil
}

// AttachmentFilter narrows ListAttachments
type AttachmentFilter struct {
	NoteID   *int64
	FileType models.FileType
	// Ordering is one of created_at, -created_at, name, -name, size, -size.
	// Anything else means newest first.
	Ordering string
}

var attachmentOrderings = map[string]string{
	"created_at":  "created_at ASC, id ASC",
	"-created_at": "created_at DESC, id DESC",
	"name":        "name COLLATE NOCASE ASC, id ASC",
	"-name":       "name COLLATE NOCASE DESC, id DESC",
	"size":        "size ASC, id ASC",
	"-size":       "size DESC, id DESC",
}

// ListAttachments returns a filtered page of the owner's attachments
func (tx *Tx) ListAttachments(ctx context.Context, ownerID int64, f AttachmentFilter, page models.Page) (*models.Paginated[*models.Attachment], error) {
	where := `owner_id = ?`
	args := []any{ownerID}
	if f.NoteID != nil {
		where += ` AND note_id = ?`
		args = append(args, *f.NoteID)
	}
	if f.FileType != "" {
		where += ` AND file_type = ?`
		args = append(args, string(f.FileType))
	}
	order, ok := attachmentOrderings[f.Ordering]
	if !ok {
		order = attachmentOrderings["-created_at"]
	}

	var count int64
	if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM attachments WHERE `+where, args...).Scan(&count); err != nil {
		return nil, apperrors.NewStorageFailed("count attachments", err)
	}
	items, err := tx.queryAttachments(ctx, `
		SELECT `+attachmentColumns+` FROM attachments WHERE `+where+`
		ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, page.Size, page.Offset())...,
	)
	if err != nil {
		return nil, err
	}
	return &models.Paginated[*models.Attachment]{Count: count, Results: items}, nil
}

// RecentAttachments returns the owner's newest uploads
func (tx *Tx) RecentAttachments(ctx context.Context, ownerID int64, limit int) ([]*models.Attachment, error) {
	return tx.queryAttachments(ctx, `
		SELECT `+attachmentColumns+` FROM attachments WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		ownerID, limit,
	)
}

// DeleteAttachments removes the owner's attachments among ids and returns
// the removed rows so their files can be deleted.
func (tx *Tx) DeleteAttachments(ctx context.Context, ownerID int64, ids []int64) ([]*models.Attachment, error) {
	if len(ids) == 0 {
		return []*models.Attachment{}, nil
	}
	args := append([]any{ownerID}, int64Args(ids)...)
	return tx.queryAttachments(ctx, `
		DELETE FROM attachments WHERE owner_id = ? AND id IN (`+placeholders(len(ids))+`)
		RETURNING `+attachmentColumns,
		args...,
	)
}
