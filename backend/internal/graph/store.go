package graph

import "context"

// Store persists nodes and links. Every method is scoped to an owner; ids
// belonging to other owners behave as if they did not exist.
//
// Find* methods return nil without error when nothing matches. Get* methods
// return a not-found error instead.
type Store interface {
	// UpsertNode atomically inserts or updates the node keyed by
	// (owner, meta kind, meta source id) and returns its current state.
	UpsertNode(ctx context.Context, in NodeInput) (*Node, error)
	FindNode(ctx context.Context, ownerID int64, kind NodeKind, sourceID int64) (*Node, error)
	// FindNodes resolves source ids to nodes, keyed by source id. Unknown ids are absent.
	FindNodes(ctx context.Context, ownerID int64, kind NodeKind, sourceIDs []int64) (map[int64]*Node, error)
	GetNode(ctx context.Context, ownerID, nodeID int64) (*Node, error)
	// ListNodes returns all of an owner's nodes, or only those of kind when set.
	ListNodes(ctx context.Context, ownerID int64, kind NodeKind) ([]*Node, error)
	NodesByID(ctx context.Context, ownerID int64, nodeIDs []int64) ([]*Node, error)
	// DeleteNodes removes the nodes for the given source ids and returns their node ids.
	DeleteNodes(ctx context.Context, ownerID int64, kind NodeKind, sourceIDs []int64) ([]int64, error)

	// UpsertLink creates the (source, target) link or updates its kind.
	UpsertLink(ctx context.Context, in LinkInput) (*Link, error)
	// CreateLink fails with a conflict error when (source, target) already exists.
	CreateLink(ctx context.Context, in LinkInput) (*Link, error)
	GetLink(ctx context.Context, ownerID, linkID int64) (*Link, error)
	OutgoingLinks(ctx context.Context, ownerID, sourceNodeID int64, kind LinkKind) ([]*Link, error)
	LinksTouching(ctx context.Context, ownerID, nodeID int64) ([]*Link, error)
	ListLinks(ctx context.Context, ownerID int64) ([]*Link, error)
	DeleteLinks(ctx context.Context, ownerID int64, linkIDs []int64) (int64, error)
	// DeleteLinksTouching removes every link with a source or target in nodeIDs.
	DeleteLinksTouching(ctx context.Context, ownerID int64, nodeIDs []int64) (int64, error)
}
