package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/content"
	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
)

// TagInput creates a tag
type TagInput struct {
	Name        string
	Color       string
	Description string
}

// TagUpdate changes a tag; nil fields are left alone
type TagUpdate struct {
	Name        *string
	Color       *string
	Description *string
}

// TagService manages flat labels
type TagService struct {
	base
}

// Create stores a tag. Names are unique per owner.
func (s *TagService) Create(ctx context.Context, ownerID int64, in TagInput) (*models.Tag, error) {
	var t *models.Tag
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		t, err = s.create(ctx, tx, ownerID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Tag created", zap.Int64("owner_id", ownerID), zap.Int64("tag_id", t.ID), zap.String("name", t.Name))
	return t, nil
}

func (s *TagService) create(ctx context.Context, tx *store.Tx, ownerID int64, in TagInput) (*models.Tag, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewValidationFailed("name", "is required")
	}
	color, err := normalizeColor(in.Color, constants.DefaultTagColor)
	if err != nil {
		return nil, err
	}
	slug, err := content.UniqueSlug(name, "tag", func(candidate string) (bool, error) {
		return tx.TagSlugTaken(ctx, ownerID, candidate)
	})
	if err != nil {
		return nil, err
	}

	t := &models.Tag{OwnerID: ownerID, Name: name, Slug: slug, Color: color, Description: in.Description}
	if err := tx.CreateTag(ctx, t); err != nil {
		return nil, err
	}
	if _, err := s.syncer(tx).SyncTag(ctx, tagSnapshot(t)); err != nil {
		return nil, err
	}
	return t, nil
}

// BulkCreate creates every name not already used by the owner and returns
// the tags created. Blank and repeated names are skipped.
func (s *TagService) BulkCreate(ctx context.Context, ownerID int64, names []string) ([]*models.Tag, error) {
	created := []*models.Tag{}
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		seen := make(map[string]struct{}, len(names))
		for _, raw := range names {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			existing, err := tx.FindTagByName(ctx, ownerID, name)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			t, err := s.create(ctx, tx, ownerID, TagInput{Name: name})
			if err != nil {
				return err
			}
			created = append(created, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Tags bulk created", zap.Int64("owner_id", ownerID), zap.Int("created", len(created)))
	return created, nil
}

// Get returns one of the owner's tags
func (s *TagService) Get(ctx context.Context, ownerID, id int64) (*models.Tag, error) {
	return s.db.Reader().GetTag(ctx, ownerID, id)
}

// Update applies upd. A rename re-projects every note carrying the tag.
func (s *TagService) Update(ctx context.Context, ownerID, id int64, upd TagUpdate) (*models.Tag, error) {
	var t *models.Tag
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if t, err = tx.GetTag(ctx, ownerID, id); err != nil {
			return err
		}
		renamed := false
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return apperrors.NewValidationFailed("name", "is required")
			}
			renamed = name != t.Name
			t.Name = name
		}
		if upd.Color != nil {
			if t.Color, err = normalizeColor(*upd.Color, constants.DefaultTagColor); err != nil {
				return err
			}
		}
		if upd.Description != nil {
			t.Description = *upd.Description
		}
		if err := tx.UpdateTag(ctx, t); err != nil {
			return err
		}

		syncer := s.syncer(tx)
		if _, err := syncer.SyncTag(ctx, tagSnapshot(t)); err != nil {
			return err
		}
		if !renamed {
			return nil
		}
		noteIDs, err := tx.NoteIDsWithTag(ctx, id)
		if err != nil {
			return err
		}
		return resyncNotes(ctx, tx, syncer, ownerID, noteIDs)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Tag updated", zap.Int64("owner_id", ownerID), zap.Int64("tag_id", id))
	return t, nil
}

// Delete removes a tag and re-projects the notes that carried it
func (s *TagService) Delete(ctx context.Context, ownerID, id int64) error {
	var affected int
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetTag(ctx, ownerID, id); err != nil {
			return err
		}
		noteIDs, err := tx.NoteIDsWithTag(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteTag(ctx, ownerID, id); err != nil {
			return err
		}
		syncer := s.syncer(tx)
		if err := syncer.Remove(ctx, ownerID, graph.KindTag, id); err != nil {
			return err
		}
		affected = len(noteIDs)
		return resyncNotes(ctx, tx, syncer, ownerID, noteIDs)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Tag deleted", zap.Int64("owner_id", ownerID), zap.Int64("tag_id", id), zap.Int("notes", affected))
	return nil
}

// List returns the owner's tags, narrowed to names containing search when set
func (s *TagService) List(ctx context.Context, ownerID int64, search string) ([]*models.Tag, error) {
	if search = strings.TrimSpace(search); search != "" {
		return s.db.Reader().SearchTags(ctx, ownerID, search)
	}
	return s.db.Reader().ListTags(ctx, ownerID)
}

// Hot returns the most used tags
func (s *TagService) Hot(ctx context.Context, ownerID int64, limit int) ([]*models.Tag, error) {
	if limit <= 0 || limit > constants.HotTagLimit {
		limit = constants.HotTagLimit
	}
	return s.db.Reader().HotTags(ctx, ownerID, limit)
}

// Search matches tag names containing q
func (s *TagService) Search(ctx context.Context, ownerID int64, q string) ([]*models.Tag, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*models.Tag{}, nil
	}
	return s.db.Reader().SearchTags(ctx, ownerID, q)
}

func (s *TagService) project(ctx context.Context, tx *store.Tx, syncer *graph.Syncer, ownerID int64) ([]int64, error) {
	tags, err := tx.ListTags(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(tags))
	for _, t := range tags {
		if _, err := syncer.SyncTag(ctx, tagSnapshot(t)); err != nil {
			return nil, err
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}
