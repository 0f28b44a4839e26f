package services

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/content"
	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/scrape"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
)

// CollectionInput saves a web page. Title and Description override the
// scraped values when set.
type CollectionInput struct {
	URL         string
	Title       string
	Description string
}

// CollectionUpdate changes the user-editable fields of a collection
type CollectionUpdate struct {
	Title       *string
	Description *string
}

// CollectionService manages saved web pages
type CollectionService struct {
	base
	scraper PageScraper
}

// Create validates the URL, scrapes it and stores the result. A page that
// cannot be fetched is still saved, unprocessed, so it can be refreshed later.
func (s *CollectionService) Create(ctx context.Context, ownerID int64, in CollectionInput) (*models.Collection, error) {
	target, err := s.validate(in.URL)
	if err != nil {
		return nil, err
	}

	c := &models.Collection{
		OwnerID:     ownerID,
		URL:         target.String(),
		Domain:      target.Hostname(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
	}
	if err := s.fill(ctx, c); err != nil {
		s.logger.Warn("Scrape failed, saving unprocessed",
			zap.Int64("owner_id", ownerID),
			zap.String("url", c.URL),
			zap.Error(err),
		)
	}
	if in.Title != "" {
		c.Title = strings.TrimSpace(in.Title)
	}
	if in.Description != "" {
		c.Description = in.Description
	}

	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.CreateCollection(ctx, c); err != nil {
			return err
		}
		_, err := s.syncer(tx).SyncCollection(ctx, collectionSnapshot(c))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Collection created",
		zap.Int64("owner_id", ownerID),
		zap.Int64("collection_id", c.ID),
		zap.Bool("processed", c.IsProcessed),
	)
	return c, nil
}

func (s *CollectionService) validate(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.NewValidationFailed("url", "is required")
	}
	if s.scraper != nil {
		return s.scraper.Validate(raw)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, apperrors.NewURLRejected(raw, "not an absolute URL")
	}
	return u, nil
}

// fill scrapes c.URL into c. On failure c is marked unprocessed and left
// otherwise untouched.
func (s *CollectionService) fill(ctx context.Context, c *models.Collection) error {
	c.IsProcessed = false
	if s.scraper == nil {
		return apperrors.NewScrapeFailed(c.URL, nil)
	}
	page, err := s.scraper.Scrape(ctx, c.URL)
	if err != nil {
		return err
	}
	applyPage(c, page)
	return nil
}

func applyPage(c *models.Collection, page *scrape.Page) {
	if page.Domain != "" {
		c.Domain = page.Domain
	}
	c.Title = page.Title
	c.Description = page.Description
	c.Content = page.Content
	c.HTMLContent = page.HTMLContent
	c.Favicon = page.Favicon
	c.Image = page.Image
	c.WordCount = content.WordCount(page.Content)
	c.IsProcessed = true
}

// Get returns one of the owner's collections
func (s *CollectionService) Get(ctx context.Context, ownerID, id int64) (*models.Collection, error) {
	return s.db.Reader().GetCollection(ctx, ownerID, id)
}

// Update applies upd and re-projects the collection
func (s *CollectionService) Update(ctx context.Context, ownerID, id int64, upd CollectionUpdate) (*models.Collection, error) {
	var c *models.Collection
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if c, err = tx.GetCollection(ctx, ownerID, id); err != nil {
			return err
		}
		if upd.Title != nil {
			c.Title = strings.TrimSpace(*upd.Title)
		}
		if upd.Description != nil {
			c.Description = *upd.Description
		}
		if err := tx.UpdateCollection(ctx, c); err != nil {
			return err
		}
		_, err = s.syncer(tx).SyncCollection(ctx, collectionSnapshot(c))
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh scrapes the page again. A failed scrape leaves the stored copy as it was.
func (s *CollectionService) Refresh(ctx context.Context, ownerID, id int64) (*models.Collection, error) {
	c, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.validate(c.URL); err != nil {
		return nil, err
	}
	if err := s.fill(ctx, c); err != nil {
		s.logger.Warn("Refresh failed", zap.Int64("collection_id", id), zap.Error(err))
		return nil, err
	}

	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpdateCollection(ctx, c); err != nil {
			return err
		}
		_, err := s.syncer(tx).SyncCollection(ctx, collectionSnapshot(c))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Collection refreshed", zap.Int64("owner_id", ownerID), zap.Int64("collection_id", id))
	return c, nil
}

// Delete removes a collection and its graph node
func (s *CollectionService) Delete(ctx context.Context, ownerID, id int64) error {
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteCollection(ctx, ownerID, id); err != nil {
			return err
		}
		return s.syncer(tx).Remove(ctx, ownerID, graph.KindCollection, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Collection deleted", zap.Int64("owner_id", ownerID), zap.Int64("collection_id", id))
	return nil
}

// List returns a page of collections, newest first
func (s *CollectionService) List(ctx context.Context, ownerID int64, filter store.CollectionFilter, page models.Page) (*models.Paginated[*models.Collection], error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.db.Reader().ListCollections(ctx, ownerID, filter, page)
}

// Recent returns up to limit of the newest collections
func (s *CollectionService) Recent(ctx context.Context, ownerID int64, limit int) ([]*models.Collection, error) {
	return s.db.Reader().RecentCollections(ctx, ownerID, recentLimit(limit, constants.RecentCollectionLimit))
}

func (s *CollectionService) project(ctx context.Context, tx *store.Tx, syncer *graph.Syncer, ownerID int64) ([]int64, error) {
	collections, err := tx.AllCollections(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(collections))
	for _, c := range collections {
		if _, err := syncer.SyncCollection(ctx, collectionSnapshot(c)); err != nil {
			return nil, err
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}
