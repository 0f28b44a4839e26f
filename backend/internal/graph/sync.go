package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"knowledge-base/backend/internal/content"
	"knowledge-base/backend/pkg/logger"
)

// ============================================================================
// Snapshots: the entity state the graph projects
// ============================================================================

// NoteSnapshot is a note's current state as seen by the graph
type NoteSnapshot struct {
	OwnerID      int64
	ID           int64
	Title        string
	PlainText    string
	CategoryID   *int64
	CategoryName string
	TagIDs       []int64
	TagNames     []string
	RelatedIDs   []int64
	Pinned       bool
	Archived     bool
}

// CategorySnapshot is a category's current state as seen by the graph
type CategorySnapshot struct {
	OwnerID int64
	ID      int64
	Name    string
	Path    string
	Color   string
}

// TagSnapshot is a tag's current state as seen by the graph
type TagSnapshot struct {
	OwnerID    int64
	ID         int64
	Name       string
	Color      string
	UsageCount int64
}

// CollectionSnapshot is a collection's current state as seen by the graph
type CollectionSnapshot struct {
	OwnerID int64
	ID      int64
	Title   string
	Domain  string
	URL     string
}

// ============================================================================
// Syncer
// ============================================================================

// Syncer reconciles the graph with primary entity mutations. Callers invoke
// it inside the unit of work that performed the write; a returned error
// must abort that unit of work.
type Syncer struct {
	store  Store
	logger *zap.Logger
}

// NewSyncer creates a syncer writing through store
func NewSyncer(store Store) *Syncer {
	return &Syncer{
		store:  store,
		logger: logger.Named("graph.sync"),
	}
}

// SyncNote projects a note into its node, then reconciles its parent,
// tagged, reference and related links in that order.
func (s *Syncer) SyncNote(ctx context.Context, snap NoteSnapshot) (*Node, error) {
	node, err := s.SyncNoteNode(ctx, snap)
	if err != nil {
		return nil, err
	}

	if err := s.syncParent(ctx, snap, node); err != nil {
		return nil, err
	}
	if err := s.syncTagged(ctx, snap, node); err != nil {
		return nil, err
	}
	referenced, err := s.syncReferences(ctx, snap, node)
	if err != nil {
		return nil, err
	}
	if err := s.syncRelated(ctx, snap, node, referenced); err != nil {
		return nil, err
	}
	return node, nil
}

// SyncNoteNode projects a note into its node without touching its links.
// Bulk rebuilds use it to create every node before any link resolves.
func (s *Syncer) SyncNoteNode(ctx context.Context, snap NoteSnapshot) (*Node, error) {
	meta := NoteMeta{
		NoteID:   snap.ID,
		Tags:     snap.TagNames,
		Pinned:   snap.Pinned,
		Archived: snap.Archived,
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	if snap.CategoryID != nil && snap.CategoryName != "" {
		name := snap.CategoryName
		meta.Category = &name
	}

	return s.upsertNode(ctx, snap.OwnerID, snap.Title, meta)
}

// SyncCategory projects a category into its node
func (s *Syncer) SyncCategory(ctx context.Context, snap CategorySnapshot) (*Node, error) {
	return s.upsertNode(ctx, snap.OwnerID, snap.Name, CategoryMeta{
		CategoryID: snap.ID,
		Path:       snap.Path,
		Color:      snap.Color,
	})
}

// SyncTag projects a tag into its node
func (s *Syncer) SyncTag(ctx context.Context, snap TagSnapshot) (*Node, error) {
	return s.upsertNode(ctx, snap.OwnerID, snap.Name, TagMeta{
		TagID:      snap.ID,
		Color:      snap.Color,
		UsageCount: snap.UsageCount,
	})
}

// SyncCollection projects a saved page into its node
func (s *Syncer) SyncCollection(ctx context.Context, snap CollectionSnapshot) (*Node, error) {
	title := snap.Title
	if title == "" {
		title = snap.URL
	}
	return s.upsertNode(ctx, snap.OwnerID, title, CollectionMeta{
		CollectionID: snap.ID,
		Domain:       snap.Domain,
		URL:          snap.URL,
	})
}

// Remove deletes the nodes of the given entities and every link touching them
func (s *Syncer) Remove(ctx context.Context, ownerID int64, kind NodeKind, sourceIDs ...int64) error {
	if len(sourceIDs) == 0 {
		return nil
	}

	nodeIDs, err := s.store.DeleteNodes(ctx, ownerID, kind, sourceIDs)
	if err != nil {
		return fmt.Errorf("removing %s nodes: %w", kind, err)
	}
	if len(nodeIDs) == 0 {
		return nil
	}

	removed, err := s.store.DeleteLinksTouching(ctx, ownerID, nodeIDs)
	if err != nil {
		return fmt.Errorf("removing links of %s nodes: %w", kind, err)
	}

	s.logger.Debug("Graph nodes removed",
		zap.Int64("owner_id", ownerID),
		zap.String("kind", string(kind)),
		zap.Int64s("node_ids", nodeIDs),
		zap.Int64("links_removed", removed),
	)
	return nil
}

// Prune removes the owner's nodes of kind whose source id is not in keep and
// returns how many were removed
func (s *Syncer) Prune(ctx context.Context, ownerID int64, kind NodeKind, keep []int64) (int, error) {
	nodes, err := s.store.ListNodes(ctx, ownerID, kind)
	if err != nil {
		return 0, fmt.Errorf("listing %s nodes: %w", kind, err)
	}
	live := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		live[id] = struct{}{}
	}
	var orphans []int64
	for _, n := range nodes {
		if _, ok := live[n.SourceID]; !ok {
			orphans = append(orphans, n.SourceID)
		}
	}
	if err := s.Remove(ctx, ownerID, kind, orphans...); err != nil {
		return 0, err
	}
	return len(orphans), nil
}

func (s *Syncer) upsertNode(ctx context.Context, ownerID int64, title string, meta Meta) (*Node, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	node, err := s.store.UpsertNode(ctx, NodeInput{
		OwnerID: ownerID,
		Title:   title,
		Label:   DefaultLabel(title),
		Meta:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("upserting %s node %d: %w", meta.Kind(), meta.SourceID(), err)
	}
	return node, nil
}

func (s *Syncer) syncParent(ctx context.Context, snap NoteSnapshot, node *Node) error {
	var targets []int64
	if snap.CategoryID != nil {
		category, err := s.store.FindNode(ctx, snap.OwnerID, KindCategory, *snap.CategoryID)
		if err != nil {
			return fmt.Errorf("resolving category node: %w", err)
		}
		if category != nil {
			targets = append(targets, category.ID)
		}
	}
	return s.reconcileLinks(ctx, snap.OwnerID, node, LinkParent, targets)
}

func (s *Syncer) syncTagged(ctx context.Context, snap NoteSnapshot, node *Node) error {
	targets, err := s.resolve(ctx, snap.OwnerID, KindTag, snap.TagIDs, node.ID)
	if err != nil {
		return fmt.Errorf("resolving tag nodes: %w", err)
	}
	return s.reconcileLinks(ctx, snap.OwnerID, node, LinkTagged, targets)
}

// syncReferences returns the node ids it linked so related links can skip them
func (s *Syncer) syncReferences(ctx context.Context, snap NoteSnapshot, node *Node) (map[int64]struct{}, error) {
	var refs []int64
	for _, id := range content.ExtractReferences(snap.PlainText) {
		if id != snap.ID {
			refs = append(refs, id)
		}
	}

	targets, err := s.resolve(ctx, snap.OwnerID, KindNote, refs, node.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving referenced notes: %w", err)
	}
	if err := s.reconcileLinks(ctx, snap.OwnerID, node, LinkReference, targets); err != nil {
		return nil, err
	}

	linked := make(map[int64]struct{}, len(targets))
	for _, t := range targets {
		linked[t] = struct{}{}
	}
	return linked, nil
}

func (s *Syncer) syncRelated(ctx context.Context, snap NoteSnapshot, node *Node, referenced map[int64]struct{}) error {
	resolved, err := s.resolve(ctx, snap.OwnerID, KindNote, snap.RelatedIDs, node.ID)
	if err != nil {
		return fmt.Errorf("resolving related notes: %w", err)
	}
	targets := resolved[:0]
	for _, t := range resolved {
		if _, ok := referenced[t]; !ok {
			targets = append(targets, t)
		}
	}
	return s.reconcileLinks(ctx, snap.OwnerID, node, LinkRelated, targets)
}

// resolve maps source ids to node ids, keeping input order and dropping
// unknown ids and the node itself.
func (s *Syncer) resolve(ctx context.Context, ownerID int64, kind NodeKind, sourceIDs []int64, self int64) ([]int64, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	nodes, err := s.store.FindNodes(ctx, ownerID, kind, sourceIDs)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(nodes))
	for _, id := range sourceIDs {
		if n, ok := nodes[id]; ok && n.ID != self {
			out = append(out, n.ID)
		}
	}
	return out, nil
}

// reconcileLinks makes the outgoing links of kind from source target exactly
// the given node ids: stale links are deleted, missing ones created, the rest
// left alone.
func (s *Syncer) reconcileLinks(ctx context.Context, ownerID int64, source *Node, kind LinkKind, targets []int64) error {
	existing, err := s.store.OutgoingLinks(ctx, ownerID, source.ID, kind)
	if err != nil {
		return fmt.Errorf("loading %s links: %w", kind, err)
	}

	want := make(map[int64]struct{}, len(targets))
	for _, t := range targets {
		want[t] = struct{}{}
	}

	have := make(map[int64]struct{}, len(existing))
	var stale []int64
	for _, l := range existing {
		if _, ok := want[l.TargetID]; ok {
			have[l.TargetID] = struct{}{}
			continue
		}
		stale = append(stale, l.ID)
	}

	if len(stale) > 0 {
		if _, err := s.store.DeleteLinks(ctx, ownerID, stale); err != nil {
			return fmt.Errorf("deleting stale %s links: %w", kind, err)
		}
	}

	created := 0
	for _, t := range targets {
		if _, ok := have[t]; ok {
			continue
		}
		have[t] = struct{}{}
		if _, err := s.store.UpsertLink(ctx, LinkInput{
			OwnerID:  ownerID,
			SourceID: source.ID,
			TargetID: t,
			Kind:     kind,
		}); err != nil {
			return fmt.Errorf("creating %s link: %w", kind, err)
		}
		created++
	}

	if len(stale) > 0 || created > 0 {
		s.logger.Debug("Graph links reconciled",
			zap.Int64("owner_id", ownerID),
			zap.Int64("node_id", source.ID),
			zap.String("kind", string(kind)),
			zap.Int("removed", len(stale)),
			zap.Int("created", created),
		)
	}
	return nil
}
