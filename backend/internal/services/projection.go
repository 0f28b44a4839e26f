package services

import (
	"context"

	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/store"
)

func noteSnapshot(n *models.Note) graph.NoteSnapshot {
	snap := graph.NoteSnapshot{
		OwnerID:    n.OwnerID,
		ID:         n.ID,
		Title:      n.Title,
		PlainText:  n.PlainText,
		CategoryID: n.CategoryID,
		TagIDs:     n.TagIDs(),
		TagNames:   n.TagNames(),
		RelatedIDs: n.RelatedIDs(),
		Pinned:     n.IsPinned,
		Archived:   n.IsArchived,
	}
	if n.Category != nil {
		snap.CategoryName = n.Category.Name
	}
	return snap
}

func categorySnapshot(c *models.Category) graph.CategorySnapshot {
	return graph.CategorySnapshot{OwnerID: c.OwnerID, ID: c.ID, Name: c.Name, Path: c.Path, Color: c.Color}
}

func tagSnapshot(t *models.Tag) graph.TagSnapshot {
	return graph.TagSnapshot{OwnerID: t.OwnerID, ID: t.ID, Name: t.Name, Color: t.Color, UsageCount: t.UsageCount}
}

func collectionSnapshot(c *models.Collection) graph.CollectionSnapshot {
	return graph.CollectionSnapshot{OwnerID: c.OwnerID, ID: c.ID, Title: c.Title, Domain: c.Domain, URL: c.URL}
}

// resyncNotes re-projects the given notes from their stored state
func resyncNotes(ctx context.Context, tx *store.Tx, s *graph.Syncer, ownerID int64, ids []int64) error {
	notes, err := tx.NotesByID(ctx, ownerID, ids)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if _, err := s.SyncNote(ctx, noteSnapshot(n)); err != nil {
			return err
		}
	}
	return nil
}

// resyncTags re-projects the given tags so their usage counts stay current
func resyncTags(ctx context.Context, tx *store.Tx, s *graph.Syncer, ownerID int64, ids []int64) error {
	tags, err := tx.TagsByID(ctx, ownerID, ids)
	if err != nil {
		return err
	}
	for _, t := range tags {
		if _, err := s.SyncTag(ctx, tagSnapshot(t)); err != nil {
			return err
		}
	}
	return nil
}

// union merges id lists, dropping duplicates and keeping first-seen order
func union(lists ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}
