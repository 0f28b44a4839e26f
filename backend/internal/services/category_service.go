package services

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/content"
	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// normalizeColor returns fallback for an empty color and rejects malformed ones
func normalizeColor(color, fallback string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return fallback, nil
	}
	if !colorPattern.MatchString(color) {
		return "", apperrors.NewValidationFailed("color", "must look like #rrggbb")
	}
	return color, nil
}

// CategoryInput creates a category
type CategoryInput struct {
	Name        string
	ParentID    *int64
	Description string
	Color       string
	Icon        string
	IsActive    *bool
	SortOrder   int
}

// CategoryUpdate changes a category; nil fields are left alone
type CategoryUpdate struct {
	Name *string
	// ParentSet applies ParentID, so a nil ParentID moves the category to the root
	ParentSet   bool
	ParentID    *int64
	Description *string
	Color       *string
	Icon        *string
	IsActive    *bool
	SortOrder   *int
}

// CategoryService manages the category tree
type CategoryService struct {
	base
}

// Create stores a category and projects it into the graph
func (s *CategoryService) Create(ctx context.Context, ownerID int64, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewValidationFailed("name", "is required")
	}
	color, err := normalizeColor(in.Color, constants.DefaultCategoryColor)
	if err != nil {
		return nil, err
	}

	c := &models.Category{
		OwnerID:     ownerID,
		ParentID:    in.ParentID,
		Name:        name,
		Description: in.Description,
		Color:       color,
		Icon:        in.Icon,
		IsActive:    in.IsActive == nil || *in.IsActive,
		SortOrder:   in.SortOrder,
	}
	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		if c.ParentID != nil {
			if _, err := tx.GetCategory(ctx, ownerID, *c.ParentID); err != nil {
				if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
					return apperrors.NewValidationFailed("parent", "does not exist")
				}
				return err
			}
		}
		slug, err := content.UniqueSlug(name, "category", func(candidate string) (bool, error) {
			return tx.CategorySlugTaken(ctx, ownerID, candidate)
		})
		if err != nil {
			return err
		}
		c.Slug = slug
		if err := tx.CreateCategory(ctx, c); err != nil {
			return err
		}
		_, err = s.syncer(tx).SyncCategory(ctx, categorySnapshot(c))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Category created",
		zap.Int64("owner_id", ownerID),
		zap.Int64("category_id", c.ID),
		zap.String("path", c.Path),
	)
	return c, nil
}

// Get returns one of the owner's categories
func (s *CategoryService) Get(ctx context.Context, ownerID, id int64) (*models.Category, error) {
	return s.db.Reader().GetCategory(ctx, ownerID, id)
}

// Update applies upd. Moving a category under itself or one of its
// descendants is rejected. Renames and moves re-project the whole subtree.
func (s *CategoryService) Update(ctx context.Context, ownerID, id int64, upd CategoryUpdate) (*models.Category, error) {
	var out *models.Category
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		c, err := tx.GetCategory(ctx, ownerID, id)
		if err != nil {
			return err
		}
		renamed := false

		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return apperrors.NewValidationFailed("name", "is required")
			}
			renamed = name != c.Name
			c.Name = name
		}
		if upd.ParentSet {
			if err := s.checkParent(ctx, tx, ownerID, id, upd.ParentID); err != nil {
				return err
			}
			c.ParentID = upd.ParentID
		}
		if upd.Description != nil {
			c.Description = *upd.Description
		}
		if upd.Color != nil {
			if c.Color, err = normalizeColor(*upd.Color, constants.DefaultCategoryColor); err != nil {
				return err
			}
		}
		if upd.Icon != nil {
			c.Icon = *upd.Icon
		}
		if upd.IsActive != nil {
			c.IsActive = *upd.IsActive
		}
		if upd.SortOrder != nil {
			c.SortOrder = *upd.SortOrder
		}

		if err := tx.UpdateCategory(ctx, c); err != nil {
			return err
		}

		// Paths below this category embed its name
		subtree, err := tx.CategorySubtreeIDs(ctx, ownerID, id)
		if err != nil {
			return err
		}
		syncer := s.syncer(tx)
		for _, cid := range subtree {
			sc, err := tx.GetCategory(ctx, ownerID, cid)
			if err != nil {
				return err
			}
			if _, err := syncer.SyncCategory(ctx, categorySnapshot(sc)); err != nil {
				return err
			}
		}
		if renamed {
			noteIDs, err := tx.NoteIDsInCategories(ctx, ownerID, []int64{id})
			if err != nil {
				return err
			}
			if err := resyncNotes(ctx, tx, syncer, ownerID, noteIDs); err != nil {
				return err
			}
		}

		out, err = tx.GetCategory(ctx, ownerID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Category updated", zap.Int64("owner_id", ownerID), zap.Int64("category_id", id))
	return out, nil
}

func (s *CategoryService) checkParent(ctx context.Context, tx *store.Tx, ownerID, id int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	if _, err := tx.GetCategory(ctx, ownerID, *parentID); err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
			return apperrors.NewValidationFailed("parent", "does not exist")
		}
		return err
	}
	subtree, err := tx.CategorySubtreeIDs(ctx, ownerID, id)
	if err != nil {
		return err
	}
	for _, cid := range subtree {
		if cid == *parentID {
			return apperrors.NewValidationFailed("parent", "cannot be the category itself or one of its descendants")
		}
	}
	return nil
}

// Delete removes a category with its whole subtree. Every removed category
// leaves the graph and notes filed under them are re-projected without one.
func (s *CategoryService) Delete(ctx context.Context, ownerID, id int64) error {
	var removed []int64
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetCategory(ctx, ownerID, id); err != nil {
			return err
		}
		subtree, err := tx.CategorySubtreeIDs(ctx, ownerID, id)
		if err != nil {
			return err
		}
		noteIDs, err := tx.NoteIDsInCategories(ctx, ownerID, subtree)
		if err != nil {
			return err
		}
		if err := tx.DeleteCategories(ctx, ownerID, subtree); err != nil {
			return err
		}

		syncer := s.syncer(tx)
		if err := syncer.Remove(ctx, ownerID, graph.KindCategory, subtree...); err != nil {
			return err
		}
		removed = subtree
		return resyncNotes(ctx, tx, syncer, ownerID, noteIDs)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Category deleted",
		zap.Int64("owner_id", ownerID),
		zap.Int64("category_id", id),
		zap.Int64s("removed", removed),
	)
	return nil
}

// List returns every category of the owner, flat
func (s *CategoryService) List(ctx context.Context, ownerID int64) ([]*models.Category, error) {
	return s.db.Reader().ListCategories(ctx, ownerID)
}

// Tree returns the root categories with their descendants nested under Children
func (s *CategoryService) Tree(ctx context.Context, ownerID int64) ([]*models.Category, error) {
	all, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return buildTree(all), nil
}

// Roots returns the categories without a parent
func (s *CategoryService) Roots(ctx context.Context, ownerID int64) ([]*models.Category, error) {
	all, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	roots := []*models.Category{}
	for _, c := range all {
		if c.ParentID == nil {
			roots = append(roots, c)
		}
	}
	return roots, nil
}

// Children returns the direct children of a category
func (s *CategoryService) Children(ctx context.Context, ownerID, id int64) ([]*models.Category, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	all, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	children := []*models.Category{}
	for _, c := range all {
		if c.ParentID != nil && *c.ParentID == id {
			children = append(children, c)
		}
	}
	return children, nil
}

// buildTree nests categories under their parents, keeping list order
func buildTree(all []*models.Category) []*models.Category {
	byID := make(map[int64]*models.Category, len(all))
	for _, c := range all {
		c.Children = []*models.Category{}
		byID[c.ID] = c
	}
	roots := []*models.Category{}
	for _, c := range all {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Children = append(parent.Children, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}

// project re-projects every category of the owner
func (s *CategoryService) project(ctx context.Context, tx *store.Tx, syncer *graph.Syncer, ownerID int64) ([]int64, error) {
	categories, err := tx.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(categories))
	for _, c := range categories {
		if _, err := syncer.SyncCategory(ctx, categorySnapshot(c)); err != nil {
			return nil, err
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}
