package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
)

// LinkRequest is a manually drawn link
type LinkRequest struct {
	SourceID    int64
	TargetID    int64
	Kind        graph.LinkKind
	Description string
}

// RebuildResult counts the entities re-projected for one owner
type RebuildResult struct {
	OwnerID     int64         `json:"owner_id" yaml:"owner_id"`
	Categories  int           `json:"categories" yaml:"categories"`
	Tags        int           `json:"tags" yaml:"tags"`
	Notes       int           `json:"notes" yaml:"notes"`
	Collections int           `json:"collections" yaml:"collections"`
	// Pruned counts nodes removed because their entity no longer exists
	Pruned      int           `json:"pruned" yaml:"pruned"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// rebuilder projects every entity of one kind and returns their ids
type rebuilder struct {
	kind    graph.NodeKind
	project func(ctx context.Context, tx *store.Tx, s *graph.Syncer, ownerID int64) ([]int64, error)
}

// GraphService serves graph views and manual links
type GraphService struct {
	base
	// rebuilders run in order: categories, tags, notes, collections
	rebuilders []rebuilder
}

// Full returns the owner's whole graph
func (s *GraphService) Full(ctx context.Context, ownerID int64) (*graph.View, error) {
	return graph.FullGraph(ctx, s.graphReader(), ownerID)
}

// Related returns the neighbourhood of one node
func (s *GraphService) Related(ctx context.Context, ownerID, nodeID int64) (*graph.View, error) {
	if _, err := s.graphReader().GetNode(ctx, ownerID, nodeID); err != nil {
		return nil, err
	}
	return graph.RelatedGraph(ctx, s.graphReader(), ownerID, nodeID)
}

// ListNodes returns the owner's nodes, optionally of one kind
func (s *GraphService) ListNodes(ctx context.Context, ownerID int64, kind graph.NodeKind) ([]*graph.Node, error) {
	if kind != "" && !kind.Valid() {
		return nil, apperrors.NewValidationFailed("node_type", "unknown node type "+string(kind))
	}
	return s.graphReader().ListNodes(ctx, ownerID, kind)
}

// GetNode returns one node
func (s *GraphService) GetNode(ctx context.Context, ownerID, nodeID int64) (*graph.Node, error) {
	return s.graphReader().GetNode(ctx, ownerID, nodeID)
}

// Links returns every link of the owner
func (s *GraphService) Links(ctx context.Context, ownerID int64) ([]*graph.Link, error) {
	return s.graphReader().ListLinks(ctx, ownerID)
}

// CreateLink draws a manual link between two of the owner's nodes
func (s *GraphService) CreateLink(ctx context.Context, ownerID int64, req LinkRequest) (*graph.Link, error) {
	if req.Kind == "" {
		req.Kind = graph.LinkRelated
	}
	if !req.Kind.Valid() {
		return nil, apperrors.NewValidationFailed("link_type", "unknown link type "+string(req.Kind))
	}
	if req.SourceID == req.TargetID {
		return nil, apperrors.NewValidationFailed("target", "cannot link a node to itself")
	}

	var link *graph.Link
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		g := s.graphFor(tx)
		for i, id := range [2]int64{req.SourceID, req.TargetID} {
			if _, err := g.GetNode(ctx, ownerID, id); err != nil {
				if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
					return apperrors.NewValidationFailed([2]string{"source", "target"}[i], "node does not exist")
				}
				return err
			}
		}
		var err error
		link, err = g.CreateLink(ctx, graph.LinkInput{
			OwnerID:     ownerID,
			SourceID:    req.SourceID,
			TargetID:    req.TargetID,
			Kind:        req.Kind,
			Description: req.Description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Link created",
		zap.Int64("owner_id", ownerID),
		zap.Int64("link_id", link.ID),
		zap.String("kind", string(link.Kind)),
	)
	return link, nil
}

// DeleteLink removes one link
func (s *GraphService) DeleteLink(ctx context.Context, ownerID, linkID int64) error {
	return s.db.InTx(ctx, func(tx *store.Tx) error {
		g := s.graphFor(tx)
		if _, err := g.GetLink(ctx, ownerID, linkID); err != nil {
			return err
		}
		_, err := g.DeleteLinks(ctx, ownerID, []int64{linkID})
		return err
	})
}

// BatchDeleteLinks removes the owner's links among ids and returns the count
func (s *GraphService) BatchDeleteLinks(ctx context.Context, ownerID int64, linkIDs []int64) (int64, error) {
	if len(linkIDs) == 0 {
		return 0, apperrors.NewValidationFailed("link_ids", "is required")
	}
	var deleted int64
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		deleted, err = s.graphFor(tx).DeleteLinks(ctx, ownerID, linkIDs)
		return err
	})
	return deleted, err
}

// LinksByNode returns every link touching a node
func (s *GraphService) LinksByNode(ctx context.Context, ownerID, nodeID int64) ([]*graph.Link, error) {
	g := s.graphReader()
	if _, err := g.GetNode(ctx, ownerID, nodeID); err != nil {
		return nil, err
	}
	return g.LinksTouching(ctx, ownerID, nodeID)
}

// Rebuild re-projects every entity of the owner into the graph, then drops
// the nodes whose entity is gone
func (s *GraphService) Rebuild(ctx context.Context, ownerID int64) (*RebuildResult, error) {
	start := time.Now()
	res := &RebuildResult{OwnerID: ownerID}

	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		syncer := s.syncer(tx)
		projected := make([][]int64, len(s.rebuilders))
		for i, r := range s.rebuilders {
			ids, err := r.project(ctx, tx, syncer, ownerID)
			if err != nil {
				return err
			}
			projected[i] = ids
		}
		for i, r := range s.rebuilders {
			pruned, err := syncer.Prune(ctx, ownerID, r.kind, projected[i])
			if err != nil {
				return err
			}
			res.Pruned += pruned
			switch r.kind {
			case graph.KindCategory:
				res.Categories = len(projected[i])
			case graph.KindTag:
				res.Tags = len(projected[i])
			case graph.KindNote:
				res.Notes = len(projected[i])
			case graph.KindCollection:
				res.Collections = len(projected[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	s.logger.Info("Graph rebuilt",
		zap.Int64("owner_id", ownerID),
		zap.Int("notes", res.Notes),
		zap.Int("pruned", res.Pruned),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// RebuildAll rebuilds the graph of every user
func (s *GraphService) RebuildAll(ctx context.Context) ([]*RebuildResult, error) {
	owners, err := s.db.Reader().ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*RebuildResult, 0, len(owners))
	for _, ownerID := range owners {
		res, err := s.Rebuild(ctx, ownerID)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
