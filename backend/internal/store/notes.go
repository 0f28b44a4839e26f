package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"knowledge-base/backend/internal/content"
	"knowledge-base/backend/internal/models"
	apperrors "knowledge-base/backend/pkg/errors"
)

const noteColumns = `n.id, n.owner_id, n.title, n.slug, n.content, n.content_format, n.plain_text, n.cover_image,
	n.category_id, n.is_pinned, n.is_archived, n.archived_at, n.view_count, n.created_at, n.updated_at`

// NoteFilter narrows a note listing
type NoteFilter struct {
	Archived   bool
	CategoryID *int64
	TagID      *int64
	// Ordering is one of title, -title, view_count, -view_count,
	// created_at, -created_at, updated_at, -updated_at. Anything else
	// means pinned first, newest first.
	Ordering string
}

var noteOrderings = map[string]string{
	"title":       "n.title ASC, n.id ASC",
	"-title":      "n.title DESC, n.id DESC",
	"view_count":  "n.view_count ASC, n.id ASC",
	"-view_count": "n.view_count DESC, n.id DESC",
	"created_at":  "n.created_at ASC, n.id ASC",
	"-created_at": "n.created_at DESC, n.id DESC",
	"updated_at":  "n.updated_at ASC, n.id ASC",
	"-updated_at": "n.updated_at DESC, n.id DESC",
}

const defaultNoteOrdering = "n.is_pinned DESC, n.created_at DESC, n.id DESC"

func scanNote(s scanner) (*models.Note, error) {
	var (
		n                    models.Note
		format               string
		categoryID           sql.NullInt64
		pinned, archived     int
		archivedAt           sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := s.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Slug, &n.Content, &format, &n.PlainText, &n.CoverImage,
		&categoryID, &pinned, &archived, &archivedAt, &n.ViewCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n.ContentFormat = models.ContentFormat(format)
	n.CategoryID = int64Ptr(categoryID)
	n.IsPinned = pinned != 0
	n.IsArchived = archived != 0
	n.ArchivedAt = timePtr(archivedAt)
	n.CreatedAt = fromMillis(createdAt)
	n.UpdatedAt = fromMillis(updatedAt)
	n.Tags = []models.TagRef{}
	n.RelatedNotes = []models.NoteRef{}
	n.WordCount = content.WordCount(n.PlainText)
	n.ReadingTime = content.ReadingTime(n.PlainText)
	return &n, nil
}

func (tx *Tx) queryNotes(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageFailed("query notes", err)
	}
	defer rows.Close()

	notes := []*models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, apperrors.NewStorageFailed("scan note", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageFailed("query notes", err)
	}
	if err := tx.hydrateNotes(ctx, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// hydrateNotes fills category refs, tags and related notes in three queries
func (tx *Tx) hydrateNotes(ctx context.Context, notes []*models.Note) error {
	if len(notes) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Note, len(notes))
	ids := make([]int64, 0, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
		ids = append(ids, n.ID)
	}
	ph := placeholders(len(ids))

	rows, err := tx.q.QueryContext(ctx, `
		SELECT n.id, c.id, c.name, c.color FROM notes n JOIN categories c ON c.id = n.category_id
		WHERE n.id IN (`+ph+`)`, int64Args(ids)...)
	if err != nil {
		return apperrors.NewStorageFailed("load note categories", err)
	}
	for rows.Next() {
		var noteID int64
		var ref models.CategoryRef
		if err := rows.Scan(&noteID, &ref.ID, &ref.Name, &ref.Color); err != nil {
			rows.Close()
			return apperrors.NewStorageFailed("load note categories", err)
		}
		r := ref
		byID[noteID].Category = &r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperrors.NewStorageFailed("load note categories", err)
	}

	rows, err = tx.q.QueryContext(ctx, `
		SELECT nt.note_id, t.id, t.name, t.color FROM note_tags nt JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id IN (`+ph+`) ORDER BY t.name`, int64Args(ids)...)
	if err != nil {
		return apperrors.NewStorageFailed("load note tags", err)
	}
	for rows.Next() {
		var noteID int64
		var ref models.TagRef
		if err := rows.Scan(&noteID, &ref.ID, &ref.Name, &ref.Color); err != nil {
			rows.Close()
			return apperrors.NewStorageFailed("load note tags", err)
		}
		byID[noteID].Tags = append(byID[noteID].Tags, ref)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperrors.NewStorageFailed("load note tags", err)
	}

	rows, err = tx.q.QueryContext(ctx, `
		SELECT r.note_id, o.id, o.title, o.slug FROM note_relations r JOIN notes o ON o.id = r.related_id
		WHERE r.note_id IN (`+ph+`) ORDER BY o.id`, int64Args(ids)...)
	if err != nil {
		return apperrors.NewStorageFailed("load related notes", err)
	}
	defer rows.Close()
	for rows.Next() {
		var noteID int64
		var ref models.NoteRef
		if err := rows.Scan(&noteID, &ref.ID, &ref.Title, &ref.Slug); err != nil {
			return apperrors.NewStorageFailed("load related notes", err)
		}
		byID[noteID].RelatedNotes = append(byID[noteID].RelatedNotes, ref)
	}
	if err := rows.Err(); err != nil {
		return apperrors.NewStorageFailed("load related notes", err)
	}
	return nil
}

// CreateNote inserts n and fills its id and timestamps. Slug must already be set.
func (tx *Tx) CreateNote(ctx context.Context, n *models.Note) error {
	ts := now()
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO notes (owner_id, title, slug, content, content_format, plain_text, cover_image, category_id,
			is_pinned, is_archived, archived_at, view_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		n.OwnerID, n.Title, n.Slug, n.Content, string(n.ContentFormat), n.PlainText, n.CoverImage, nullInt64(n.CategoryID),
		boolInt(n.IsPinned), boolInt(n.IsArchived), nullMillis(n.ArchivedAt), toMillis(ts), toMillis(ts),
	)
	if isUniqueViolation(err) {
		return apperrors.NewConflict("note", n.Slug)
	}
	if err != nil {
		return apperrors.NewStorageFailed("insert note", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return apperrors.NewStorageFailed("insert note", err)
	}
	n.CreatedAt, n.UpdatedAt = ts, ts
	return nil
}

// UpdateNote saves every mutable column of n. The slug is never rewritten.
func (tx *Tx) UpdateNote(ctx context.Context, n *models.Note) error {
	ts := now()
	res, err := tx.q.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, content_format = ?, plain_text = ?, cover_image = ?, category_id = ?,
			is_pinned = ?, is_archived = ?, archived_at = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		n.Title, n.Content, string(n.ContentFormat), n.PlainText, n.CoverImage, nullInt64(n.CategoryID),
		boolInt(n.IsPinned), boolInt(n.IsArchived), nullMillis(n.ArchivedAt), toMillis(ts),
		n.OwnerID, n.ID,
	)
	if err != nil {
		return apperrors.NewStorageFailed("update note", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperrors.NewNotFound("note", n.ID)
	}
	n.UpdatedAt = ts
	return nil
}

// GetNote returns one of the owner's notes, fully hydrated
func (tx *Tx) GetNote(ctx context.Context, ownerID, id int64) (*models.Note, error) {
	row := tx.q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes n WHERE n.owner_id = ? AND n.id = ?`, ownerID, id)
	n, err := scanNote(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("note", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailed("get note", err)
	}
	if err := tx.hydrateNotes(ctx, []*models.Note{n}); err != nil {
		return nil, err
	}
	return n, nil
}

// NotesByID returns the owner's notes among ids, hydrated, in id order
func (tx *Tx) NotesByID(ctx context.Context, ownerID int64, ids []int64) ([]*models.Note, error) {
	if len(ids) == 0 {
		return []*models.Note{}, nil
	}
	args := append([]any{ownerID}, int64Args(ids)...)
	return tx.queryNotes(ctx, `
		SELECT `+noteColumns+` FROM notes n WHERE n.owner_id = ? AND n.id IN (`+placeholders(len(ids))+`) ORDER BY n.id`,
		args...,
	)
}

// AllNotes returns every note of the owner in id order
func (tx *Tx) AllNotes(ctx context.Context, ownerID int64) ([]*models.Note, error) {
	return tx.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes n WHERE n.owner_id = ? ORDER BY n.id`, ownerID)
}

// ExistingNoteIDs returns which of ids are notes of the owner
func (tx *Tx) ExistingNoteIDs(ctx context.Context, ownerID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := append([]any{ownerID}, int64Args(ids)...)
	found, err := tx.queryIDs(ctx, `
		SELECT id FROM notes WHERE owner_id = ? AND id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, apperrors.NewStorageFailed("check notes", err)
	}
	return found, nil
}

// NoteSlugTaken reports whether any note other than excludeID uses slug
func (tx *Tx) NoteSlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	taken, err := tx.exists(ctx, `SELECT COUNT(*) FROM notes WHERE slug = ? AND id <> ?`, slug, excludeID)
	if err != nil {
		return false, apperrors.NewStorageFailed("check note slug", err)
	}
	return taken, nil
}

// DeleteNote removes a note; tag memberships and relations cascade
func (tx *Tx) DeleteNote(ctx context.Context, ownerID, id int64) error {
	res, err := tx.q.ExecContext(ctx, `DELETE FROM notes WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return apperrors.NewStorageFailed("delete note", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("note", id)
	}
	return nil
}

// ListNotes returns a page of the owner's notes matching f
func (tx *Tx) ListNotes(ctx context.Context, ownerID int64, f NoteFilter, page models.Page) (*models.Paginated[*models.Note], error) {
	where := `n.owner_id = ? AND n.is_archived = ?`
	args := []any{ownerID, boolInt(f.Archived)}
	if f.CategoryID != nil {
		where += ` AND n.category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.TagID != nil {
		where += ` AND EXISTS (SELECT 1 FROM note_tags nt WHERE nt.note_id = n.id AND nt.tag_id = ?)`
		args = append(args, *f.TagID)
	}

	order, ok := noteOrderings[f.Ordering]
	if !ok {
		order = defaultNoteOrdering
		if f.Archived {
			order = "n.archived_at DESC, n.id DESC"
		}
	}
	return tx.pageNotes(ctx, where, order, args, page)
}

// SearchNotes matches title, plain text or tag names case-insensitively
// among the owner's unarchived notes.
func (tx *Tx) SearchNotes(ctx context.Context, ownerID int64, query string, page models.Page) (*models.Paginated[*models.Note], error) {
	pattern := likePattern(query)
	where := `n.owner_id = ? AND n.is_archived = 0 AND (
		n.title LIKE ? ESCAPE '\' OR n.plain_text LIKE ? ESCAPE '\' OR EXISTS (
			SELECT 1 FROM note_tags nt JOIN tags t ON t.id = nt.tag_id
			WHERE nt.note_id = n.id AND t.name LIKE ? ESCAPE '\'))`
	return tx.pageNotes(ctx, where, defaultNoteOrdering, []any{ownerID, pattern, pattern, pattern}, page)
}

func (tx *Tx) pageNotes(ctx context.Context, where, order string, args []any, page models.Page) (*models.Paginated[*models.Note], error) {
	var count int64
	if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes n WHERE `+where, args...).Scan(&count); err != nil {
		return nil, apperrors.NewStorageFailed("count notes", err)
	}

	pageArgs := append(append([]any{}, args...), page.Size, page.Offset())
	notes, err := tx.queryNotes(ctx, fmt.Sprintf(`SELECT %s FROM notes n WHERE %s ORDER BY %s LIMIT ? OFFSET ?`, noteColumns, where, order), pageArgs...)
	if err != nil {
		return nil, err
	}
	return &models.Paginated[*models.Note]{Count: count, Results: notes}, nil
}

// NoteSuggestions returns up to limit unarchived notes whose title contains query, newest first
func (tx *Tx) NoteSuggestions(ctx context.Context, ownerID int64, query string, limit int) ([]models.NoteRef, error) {
	rows, err := tx.q.QueryContext(ctx, `
		SELECT id, title, slug FROM notes
		WHERE owner_id = ? AND is_archived = 0 AND title LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		ownerID, likePattern(query), limit,
	)
	if err != nil {
		return nil, apperrors.NewStorageFailed("note suggestions", err)
	}
	defer rows.Close()

	refs := []models.NoteRef{}
	for rows.Next() {
		var ref models.NoteRef
		if err := rows.Scan(&ref.ID, &ref.Title, &ref.Slug); err != nil {
			return nil, apperrors.NewStorageFailed("note suggestions", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// RecentNotes returns the owner's newest unarchived notes
func (tx *Tx) RecentNotes(ctx context.Context, ownerID int64, limit int) ([]*models.Note, error) {
	return tx.queryNotes(ctx, `
		SELECT `+noteColumns+` FROM notes n WHERE n.owner_id = ? AND n.is_archived = 0
		ORDER BY n.created_at DESC, n.id DESC LIMIT ?`,
		ownerID, limit,
	)
}

// IncrementNoteView bumps the view counter and returns the new value
func (tx *Tx) IncrementNoteView(ctx context.Context, ownerID, id int64) (int64, error) {
	var views int64
	err := tx.q.QueryRowContext(ctx, `
		UPDATE notes SET view_count = view_count + 1 WHERE owner_id = ? AND id = ? RETURNING view_count`,
		ownerID, id,
	).Scan(&views)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NewNotFound("note", id)
	}
	if err != nil {
		return 0, apperrors.NewStorageFailed("increment view", err)
	}
	return views, nil
}

// ============================================================================
// Tag membership
// ============================================================================

// SetNoteTags replaces the note's tags with tagIDs
func (tx *Tx) SetNoteTags(ctx context.Context, noteID int64, tagIDs []int64) error {
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, noteID); err != nil {
		return apperrors.NewStorageFailed("clear note tags", err)
	}
	return tx.AddNoteTags(ctx, noteID, tagIDs)
}

// AddNoteTags adds tagIDs to the note, ignoring ones already present
func (tx *Tx) AddNoteTags(ctx context.Context, noteID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		if _, err := tx.q.ExecContext(ctx, `
			INSERT INTO note_tags (note_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			noteID, tagID,
		); err != nil {
			return apperrors.NewStorageFailed("add note tag", err)
		}
	}
	return nil
}

// RemoveNoteTags removes tagIDs from the note
func (tx *Tx) RemoveNoteTags(ctx context.Context, noteID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	args := append([]any{noteID}, int64Args(tagIDs)...)
	if _, err := tx.q.ExecContext(ctx, `
		DELETE FROM note_tags WHERE note_id = ? AND tag_id IN (`+placeholders(len(tagIDs))+`)`,
		args...,
	); err != nil {
		return apperrors.NewStorageFailed("remove note tags", err)
	}
	return nil
}

// ============================================================================
// Related notes
// ============================================================================

// RelatedNoteIDs returns the notes related to noteID
func (tx *Tx) RelatedNoteIDs(ctx context.Context, noteID int64) ([]int64, error) {
	ids, err := tx.queryIDs(ctx, `SELECT related_id FROM note_relations WHERE note_id = ? ORDER BY related_id`, noteID)
	if err != nil {
		return nil, apperrors.NewStorageFailed("related notes", err)
	}
	return ids, nil
}

// AddRelation relates a and b in both directions
func (tx *Tx) AddRelation(ctx context.Context, a, b int64) error {
	if a == b {
		return nil
	}
	if _, err := tx.q.ExecContext(ctx, `
		INSERT INTO note_relations (note_id, related_id) VALUES (?, ?), (?, ?) ON CONFLICT DO NOTHING`,
		a, b, b, a,
	); err != nil {
		return apperrors.NewStorageFailed("add relation", err)
	}
	return nil
}

// RemoveRelation unrelates a and b in both directions
func (tx *Tx) RemoveRelation(ctx context.Context, a, b int64) error {
	if _, err := tx.q.ExecContext(ctx, `
		DELETE FROM note_relations WHERE (note_id = ? AND related_id = ?) OR (note_id = ? AND related_id = ?)`,
		a, b, b, a,
	); err != nil {
		return apperrors.NewStorageFailed("remove relation", err)
	}
	return nil
}
