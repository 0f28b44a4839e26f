package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/content"
	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
)

// NoteInput creates a note. Slug is assigned from the title when empty.
type NoteInput struct {
	Title         string
	Slug          string
	Content       string
	ContentFormat models.ContentFormat
	CoverImage    string
	CategoryID    *int64
	TagIDs        []int64
	IsPinned      bool
}

// NoteUpdate changes a note; nil fields are left alone
type NoteUpdate struct {
	Title         *string
	Content       *string
	ContentFormat *models.ContentFormat
	CoverImage    *string
	// CategorySet applies CategoryID, so a nil CategoryID clears the category
	CategorySet bool
	CategoryID  *int64
	// TagIDs replaces the tag set when non-nil
	TagIDs   *[]int64
	IsPinned *bool
}

// NoteService manages notes and keeps their graph projection current
type NoteService struct {
	base
}

// Create stores a new note, derives its text, slug and related notes, and
// projects it into the graph in the same unit of work.
func (s *NoteService) Create(ctx context.Context, ownerID int64, in NoteInput) (*models.Note, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.NewValidationFailed("title", "is required")
	}
	format := in.ContentFormat
	if format == "" {
		format = models.ContentMarkdown
	}
	if !format.Valid() {
		return nil, apperrors.NewValidationFailed("content_format", "must be markdown or html")
	}

	var note *models.Note
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if err := checkCategory(ctx, tx, ownerID, in.CategoryID); err != nil {
			return err
		}
		tagIDs, err := ownedTagIDs(ctx, tx, ownerID, in.TagIDs)
		if err != nil {
			return err
		}

		n := &models.Note{
			OwnerID:       ownerID,
			Title:         title,
			Slug:          strings.TrimSpace(in.Slug),
			Content:       in.Content,
			ContentFormat: format,
			PlainText:     content.PlainText(in.Content, format),
			CoverImage:    in.CoverImage,
			CategoryID:    in.CategoryID,
			IsPinned:      in.IsPinned,
		}
		if n.Slug == "" {
			n.Slug, err = content.UniqueSlug(title, constants.FallbackSlug, func(candidate string) (bool, error) {
				return tx.NoteSlugTaken(ctx, candidate, 0)
			})
			if err != nil {
				return err
			}
		} else if err := checkSlug(ctx, tx, n.Slug); err != nil {
			return err
		}
		if err := tx.CreateNote(ctx, n); err != nil {
			return err
		}
		if err := tx.SetNoteTags(ctx, n.ID, tagIDs); err != nil {
			return err
		}

		partners, err := s.updateRelated(ctx, tx, n)
		if err != nil {
			return err
		}

		note, err = s.syncAfterWrite(ctx, tx, ownerID, n.ID, partners, tagIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Note created",
		zap.Int64("owner_id", ownerID),
		zap.Int64("note_id", note.ID),
		zap.String("slug", note.Slug),
	)
	return note, nil
}

// Get returns one of the owner's notes
func (s *NoteService) Get(ctx context.Context, ownerID, id int64) (*models.Note, error) {
	return s.db.Reader().GetNote(ctx, ownerID, id)
}

// Update applies the non-nil fields of upd. The slug never changes.
func (s *NoteService) Update(ctx context.Context, ownerID, id int64, upd NoteUpdate) (*models.Note, error) {
	var note *models.Note
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		n, err := tx.GetNote(ctx, ownerID, id)
		if err != nil {
			return err
		}
		oldTags := n.TagIDs()

		if upd.Title != nil {
			title := strings.TrimSpace(*upd.Title)
			if title == "" {
				return apperrors.NewValidationFailed("title", "is required")
			}
			n.Title = title
		}
		if upd.Content != nil {
			n.Content = *upd.Content
		}
		if upd.ContentFormat != nil {
			if !upd.ContentFormat.Valid() {
				return apperrors.NewValidationFailed("content_format", "must be markdown or html")
			}
			n.ContentFormat = *upd.ContentFormat
		}
		if upd.CoverImage != nil {
			n.CoverImage = *upd.CoverImage
		}
		if upd.CategorySet {
			if err := checkCategory(ctx, tx, ownerID, upd.CategoryID); err != nil {
				return err
			}
			n.CategoryID = upd.CategoryID
		}
		if upd.IsPinned != nil {
			n.IsPinned = *upd.IsPinned
		}
		n.PlainText = content.PlainText(n.Content, n.ContentFormat)

		if err := tx.UpdateNote(ctx, n); err != nil {
			return err
		}

		var newTags []int64
		if upd.TagIDs != nil {
			if newTags, err = ownedTagIDs(ctx, tx, ownerID, *upd.TagIDs); err != nil {
				return err
			}
			if err := tx.SetNoteTags(ctx, n.ID, newTags); err != nil {
				return err
			}
		}

		partners, err := s.updateRelated(ctx, tx, n)
		if err != nil {
			return err
		}

		note, err = s.syncAfterWrite(ctx, tx, ownerID, n.ID, partners, union(oldTags, newTags))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Note updated", zap.Int64("owner_id", ownerID), zap.Int64("note_id", id))
	return note, nil
}

// Delete removes a note and its graph node with every link touching it
func (s *NoteService) Delete(ctx context.Context, ownerID, id int64) error {
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		n, err := tx.GetNote(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteNote(ctx, ownerID, id); err != nil {
			return err
		}

		syncer := s.syncer(tx)
		if err := syncer.Remove(ctx, ownerID, graph.KindNote, id); err != nil {
			return err
		}
		// Former partners lose the relation row through the cascade
		if err := resyncNotes(ctx, tx, syncer, ownerID, n.RelatedIDs()); err != nil {
			return err
		}
		return resyncTags(ctx, tx, syncer, ownerID, n.TagIDs())
	})
	if err != nil {
		return err
	}

	s.logger.Info("Note deleted", zap.Int64("owner_id", ownerID), zap.Int64("note_id", id))
	return nil
}

// List returns a page of notes matching filter
func (s *NoteService) List(ctx context.Context, ownerID int64, filter store.NoteFilter, page models.Page) (*models.Paginated[*models.Note], error) {
	return s.db.Reader().ListNotes(ctx, ownerID, filter, page)
}

// Search matches title, text and tag names among unarchived notes
func (s *NoteService) Search(ctx context.Context, ownerID int64, query string, page models.Page) (*models.Paginated[*models.Note], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationFailed("q", "is required")
	}
	return s.db.Reader().SearchNotes(ctx, ownerID, query, page)
}

// Suggestions returns compact title matches for link pickers
func (s *NoteService) Suggestions(ctx context.Context, ownerID int64, query string, limit int) ([]models.NoteRef, error) {
	if limit <= 0 {
		limit = constants.SuggestionLimit
	}
	return s.db.Reader().NoteSuggestions(ctx, ownerID, strings.TrimSpace(query), limit)
}

// Recent returns the newest unarchived notes
func (s *NoteService) Recent(ctx context.Context, ownerID int64, limit int) ([]*models.Note, error) {
	return s.db.Reader().RecentNotes(ctx, ownerID, recentLimit(limit, constants.RecentLimit))
}

// Archive hides a note from default listings
func (s *NoteService) Archive(ctx context.Context, ownerID, id int64) (*models.Note, error) {
	return s.mutate(ctx, ownerID, id, func(n *models.Note) {
		if !n.IsArchived {
			at := time.Now().UTC()
			n.IsArchived = true
			n.ArchivedAt = &at
		}
	})
}

// Unarchive restores an archived note
func (s *NoteService) Unarchive(ctx context.Context, ownerID, id int64) (*models.Note, error) {
	return s.mutate(ctx, ownerID, id, func(n *models.Note) {
		n.IsArchived = false
		n.ArchivedAt = nil
	})
}

// TogglePin flips the pinned flag
func (s *NoteService) TogglePin(ctx context.Context, ownerID, id int64) (*models.Note, error) {
	return s.mutate(ctx, ownerID, id, func(n *models.Note) {
		n.IsPinned = !n.IsPinned
	})
}

// IncrementView bumps the view counter. The graph does not carry views.
func (s *NoteService) IncrementView(ctx context.Context, ownerID, id int64) (int64, error) {
	var views int64
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		views, err = tx.IncrementNoteView(ctx, ownerID, id)
		return err
	})
	return views, err
}

// SetTags replaces the note's tags
func (s *NoteService) SetTags(ctx context.Context, ownerID, id int64, tagIDs []int64) (*models.Note, error) {
	return s.changeTags(ctx, ownerID, id, func(tx *store.Tx, noteID int64) error {
		owned, err := ownedTagIDs(ctx, tx, ownerID, tagIDs)
		if err != nil {
			return err
		}
		return tx.SetNoteTags(ctx, noteID, owned)
	}, tagIDs)
}

// AddTags adds tags to the note
func (s *NoteService) AddTags(ctx context.Context, ownerID, id int64, tagIDs []int64) (*models.Note, error) {
	return s.changeTags(ctx, ownerID, id, func(tx *store.Tx, noteID int64) error {
		owned, err := ownedTagIDs(ctx, tx, ownerID, tagIDs)
		if err != nil {
			return err
		}
		return tx.AddNoteTags(ctx, noteID, owned)
	}, tagIDs)
}

// RemoveTags removes tags from the note
func (s *NoteService) RemoveTags(ctx context.Context, ownerID, id int64, tagIDs []int64) (*models.Note, error) {
	return s.changeTags(ctx, ownerID, id, func(tx *store.Tx, noteID int64) error {
		return tx.RemoveNoteTags(ctx, noteID, tagIDs)
	}, nil)
}

// ClearTags removes every tag from the note
func (s *NoteService) ClearTags(ctx context.Context, ownerID, id int64) (*models.Note, error) {
	return s.changeTags(ctx, ownerID, id, func(tx *store.Tx, noteID int64) error {
		return tx.SetNoteTags(ctx, noteID, nil)
	}, nil)
}

// changeTags runs a membership change and re-projects the note plus every
// tag whose usage count may have moved.
func (s *NoteService) changeTags(ctx context.Context, ownerID, id int64, change func(tx *store.Tx, noteID int64) error, touched []int64) (*models.Note, error) {
	var note *models.Note
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		n, err := tx.GetNote(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if err := change(tx, n.ID); err != nil {
			return err
		}
		note, err = s.syncAfterWrite(ctx, tx, ownerID, n.ID, nil, union(n.TagIDs(), touched))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Note tags changed", zap.Int64("note_id", id), zap.Int64s("tag_ids", note.TagIDs()))
	return note, nil
}

// mutate applies a flag change to a stored note and re-projects it
func (s *NoteService) mutate(ctx context.Context, ownerID, id int64, apply func(n *models.Note)) (*models.Note, error) {
	var note *models.Note
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		n, err := tx.GetNote(ctx, ownerID, id)
		if err != nil {
			return err
		}
		apply(n)
		if err := tx.UpdateNote(ctx, n); err != nil {
			return err
		}
		note, err = s.syncAfterWrite(ctx, tx, ownerID, n.ID, nil, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// updateRelated makes the note's related set match the /notes/<id> links in
// its content, in both directions. It returns every partner whose relation
// changed.
func (s *NoteService) updateRelated(ctx context.Context, tx *store.Tx, n *models.Note) ([]int64, error) {
	var linked []int64
	for _, id := range content.ExtractNoteLinks(n.Content) {
		if id != n.ID {
			linked = append(linked, id)
		}
	}
	want, err := tx.ExistingNoteIDs(ctx, n.OwnerID, linked)
	if err != nil {
		return nil, err
	}
	have, err := tx.RelatedNoteIDs(ctx, n.ID)
	if err != nil {
		return nil, err
	}

	wantSet := make(map[int64]struct{}, len(want))
	for _, id := range want {
		wantSet[id] = struct{}{}
	}
	haveSet := make(map[int64]struct{}, len(have))
	var changed []int64
	for _, id := range have {
		haveSet[id] = struct{}{}
		if _, ok := wantSet[id]; !ok {
			if err := tx.RemoveRelation(ctx, n.ID, id); err != nil {
				return nil, err
			}
			changed = append(changed, id)
		}
	}
	for _, id := range want {
		if _, ok := haveSet[id]; !ok {
			if err := tx.AddRelation(ctx, n.ID, id); err != nil {
				return nil, err
			}
			changed = append(changed, id)
		}
	}
	return changed, nil
}

// syncAfterWrite reloads the note, projects it, then the partners whose
// relation changed and the tags whose usage may have changed.
func (s *NoteService) syncAfterWrite(ctx context.Context, tx *store.Tx, ownerID, noteID int64, partners, tagIDs []int64) (*models.Note, error) {
	note, err := tx.GetNote(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}

	syncer := s.syncer(tx)
	if err := resyncTags(ctx, tx, syncer, ownerID, tagIDs); err != nil {
		return nil, err
	}
	if _, err := syncer.SyncNote(ctx, noteSnapshot(note)); err != nil {
		return nil, err
	}
	if err := resyncNotes(ctx, tx, syncer, ownerID, partners); err != nil {
		return nil, err
	}
	return note, nil
}

// project re-projects every note of the owner
func (s *NoteService) project(ctx context.Context, tx *store.Tx, syncer *graph.Syncer, ownerID int64) ([]int64, error) {
	notes, err := tx.AllNotes(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	// Nodes first so that links between notes resolve on the second pass
	for _, n := range notes {
		if _, err := syncer.SyncNoteNode(ctx, noteSnapshot(n)); err != nil {
			return nil, err
		}
	}
	ids := make([]int64, 0, len(notes))
	for _, n := range notes {
		if _, err := syncer.SyncNote(ctx, noteSnapshot(n)); err != nil {
			return nil, err
		}
		ids = append(ids, n.ID)
	}
	return ids, nil
}

func checkCategory(ctx context.Context, tx *store.Tx, ownerID int64, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	if _, err := tx.GetCategory(ctx, ownerID, *categoryID); err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
			return apperrors.NewValidationFailed("category", "does not exist")
		}
		return err
	}
	return nil
}

// checkSlug accepts a client-chosen slug only when it is URL-safe and unused
func checkSlug(ctx context.Context, tx *store.Tx, slug string) error {
	if !content.ValidSlug(slug) {
		return apperrors.NewValidationFailed("slug", "may only contain lowercase letters, digits, hyphens and underscores")
	}
	taken, err := tx.NoteSlugTaken(ctx, slug, 0)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.NewValidationFailed("slug", "is already in use")
	}
	return nil
}

// ownedTagIDs rejects tag ids that are not the owner's
func ownedTagIDs(ctx context.Context, tx *store.Tx, ownerID int64, ids []int64) ([]int64, error) {
	ids = union(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	tags, err := tx.TagsByID(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	if len(tags) != len(ids) {
		return nil, apperrors.NewValidationFailed("tag_ids", "contains unknown tags")
	}
	return ids, nil
}
