package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"knowledge-base/backend/internal/graph"
	apperrors "knowledge-base/backend/pkg/errors"
)

// GraphRepository stores the derived graph in the graph_nodes and
// graph_links tables. It implements graph.Store.
type GraphRepository struct {
	q querier
}

var _ graph.Store = (*GraphRepository)(nil)

const nodeColumns = `id, owner_id, kind, source_id, title, label, meta, created_at, updated_at`

const linkColumns = `id, owner_id, source_id, target_id, kind, description, created_at`

func scanGraphNode(s scanner) (*graph.Node, error) {
	var (
		n                    graph.Node
		kind, meta           string
		createdAt, updatedAt int64
	)
	if err := s.Scan(&n.ID, &n.OwnerID, &kind, &n.SourceID, &n.Title, &n.Label, &meta, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n.Kind = graph.NodeKind(kind)
	decoded, err := graph.DecodeMeta(n.Kind, []byte(meta))
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", n.ID, err)
	}
	n.Meta = decoded
	n.CreatedAt = fromMillis(createdAt)
	n.UpdatedAt = fromMillis(updatedAt)
	return &n, nil
}

func scanGraphLink(s scanner) (*graph.Link, error) {
	var (
		l         graph.Link
		kind      string
		createdAt int64
	)
	if err := s.Scan(&l.ID, &l.OwnerID, &l.SourceID, &l.TargetID, &kind, &l.Description, &createdAt); err != nil {
		return nil, err
	}
	l.Kind = graph.LinkKind(kind)
	l.CreatedAt = fromMillis(createdAt)
	return &l, nil
}

func (r *GraphRepository) queryNodes(ctx context.Context, query string, args ...any) ([]*graph.Node, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("query nodes", err)
	}
	defer rows.Close()

	nodes := []*graph.Node{}
	for rows.Next() {
		n, err := scanGraphNode(rows)
		if err != nil {
			return nil, apperrors.NewGraphQueryFailed("scan node", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewGraphQueryFailed("iterate nodes", err)
	}
	return nodes, nil
}

func (r *GraphRepository) queryLinks(ctx context.Context, query string, args ...any) ([]*graph.Link, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("query links", err)
	}
	defer rows.Close()

	links := []*graph.Link{}
	for rows.Next() {
		l, err := scanGraphLink(rows)
		if err != nil {
			return nil, apperrors.NewGraphQueryFailed("scan link", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewGraphQueryFailed("iterate links", err)
	}
	return links, nil
}

// ============================================================================
// Nodes
// ============================================================================

// UpsertNode inserts the node or, when (owner, kind, source_id) exists,
// overwrites its title, label and meta in the same statement.
func (r *GraphRepository) UpsertNode(ctx context.Context, in graph.NodeInput) (*graph.Node, error) {
	meta, err := graph.EncodeMeta(in.Meta)
	if err != nil {
		return nil, apperrors.NewValidationFailed("meta", err.Error())
	}
	label := in.Label
	if label == "" {
		label = graph.DefaultLabel(in.Title)
	}
	ts := toMillis(now())

	row := r.q.QueryRowContext(ctx, `
		INSERT INTO graph_nodes (owner_id, kind, source_id, title, label, meta, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, kind, source_id) DO UPDATE SET
			title = excluded.title,
			label = excluded.label,
			meta = excluded.meta,
			updated_at = excluded.updated_at
		RETURNING `+nodeColumns,
		in.OwnerID, string(in.Meta.Kind()), in.Meta.SourceID(), in.Title, label, string(meta), ts, ts,
	)
	node, err := scanGraphNode(row)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("upsert node", err)
	}
	return node, nil
}

// FindNode returns the node projecting (kind, sourceID), or nil
func (r *GraphRepository) FindNode(ctx context.Context, ownerID int64, kind graph.NodeKind, sourceID int64) (*graph.Node, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+nodeColumns+` FROM graph_nodes
		WHERE owner_id = ? AND kind = ? AND source_id = ?`,
		ownerID, string(kind), sourceID,
	)
	node, err := scanGraphNode(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("find node", err)
	}
	return node, nil
}

// FindNodes resolves many source ids of one kind at once
func (r *GraphRepository) FindNodes(ctx context.Context, ownerID int64, kind graph.NodeKind, sourceIDs []int64) (map[int64]*graph.Node, error) {
	out := make(map[int64]*graph.Node, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return out, nil
	}
	args := append([]any{ownerID, string(kind)}, int64Args(sourceIDs)...)
	nodes, err := r.queryNodes(ctx, `
		SELECT `+nodeColumns+` FROM graph_nodes
		WHERE owner_id = ? AND kind = ? AND source_id IN (`+placeholders(len(sourceIDs))+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		out[n.SourceID] = n
	}
	return out, nil
}

// GetNode returns a node by its own id
func (r *GraphRepository) GetNode(ctx context.Context, ownerID, nodeID int64) (*graph.Node, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+nodeColumns+` FROM graph_nodes WHERE owner_id = ? AND id = ?`,
		ownerID, nodeID,
	)
	node, err := scanGraphNode(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("graph node", nodeID)
	}
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("get node", err)
	}
	return node, nil
}

// ListNodes returns an owner's nodes, optionally of one kind
func (r *GraphRepository) ListNodes(ctx context.Context, ownerID int64, kind graph.NodeKind) ([]*graph.Node, error) {
	if kind == "" {
		return r.queryNodes(ctx, `
			SELECT `+nodeColumns+` FROM graph_nodes WHERE owner_id = ? ORDER BY id`,
			ownerID,
		)
	}
	return r.queryNodes(ctx, `
		SELECT `+nodeColumns+` FROM graph_nodes WHERE owner_id = ? AND kind = ? ORDER BY id`,
		ownerID, string(kind),
	)
}

// NodesByID returns the owner's nodes among nodeIDs
func (r *GraphRepository) NodesByID(ctx context.Context, ownerID int64, nodeIDs []int64) ([]*graph.Node, error) {
	if len(nodeIDs) == 0 {
		return []*graph.Node{}, nil
	}
	args := append([]any{ownerID}, int64Args(nodeIDs)...)
	return r.queryNodes(ctx, `
		SELECT `+nodeColumns+` FROM graph_nodes
		WHERE owner_id = ? AND id IN (`+placeholders(len(nodeIDs))+`) ORDER BY id`,
		args...,
	)
}

// DeleteNodes removes the nodes projecting sourceIDs and returns their ids
func (r *GraphRepository) DeleteNodes(ctx context.Context, ownerID int64, kind graph.NodeKind, sourceIDs []int64) ([]int64, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	args := append([]any{ownerID, string(kind)}, int64Args(sourceIDs)...)
	rows, err := r.q.QueryContext(ctx, `
		DELETE FROM graph_nodes
		WHERE owner_id = ? AND kind = ? AND source_id IN (`+placeholders(len(sourceIDs))+`)
		RETURNING id`,
		args...,
	)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("delete nodes", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("delete nodes", err)
	}
	return ids, nil
}

// ============================================================================
// Links
// ============================================================================

// UpsertLink creates the link or, when (source, target) exists, updates its kind
func (r *GraphRepository) UpsertLink(ctx context.Context, in graph.LinkInput) (*graph.Link, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO graph_links (owner_id, source_id, target_id, kind, description, created_at)
		SELECT ?, s.id, t.id, ?, ?, ?
		FROM graph_nodes s, graph_nodes t
		WHERE s.id = ? AND s.owner_id = ? AND t.id = ? AND t.owner_id = ?
		ON CONFLICT (source_id, target_id) DO UPDATE SET kind = excluded.kind
		RETURNING `+linkColumns,
		in.OwnerID, string(in.Kind), in.Description, toMillis(now()),
		in.SourceID, in.OwnerID, in.TargetID, in.OwnerID,
	)
	link, err := scanGraphLink(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("graph node", fmt.Sprintf("%d or %d", in.SourceID, in.TargetID))
	}
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("upsert link", err)
	}
	return link, nil
}

// CreateLink creates a link, failing with a conflict if (source, target) exists
func (r *GraphRepository) CreateLink(ctx context.Context, in graph.LinkInput) (*graph.Link, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO graph_links (owner_id, source_id, target_id, kind, description, created_at)
		SELECT ?, s.id, t.id, ?, ?, ?
		FROM graph_nodes s, graph_nodes t
		WHERE s.id = ? AND s.owner_id = ? AND t.id = ? AND t.owner_id = ?
		RETURNING `+linkColumns,
		in.OwnerID, string(in.Kind), in.Description, toMillis(now()),
		in.SourceID, in.OwnerID, in.TargetID, in.OwnerID,
	)
	link, err := scanGraphLink(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("graph node", fmt.Sprintf("%d or %d", in.SourceID, in.TargetID))
	}
	if isUniqueViolation(err) {
		return nil, apperrors.NewConflict("graph link", fmt.Sprintf("%d->%d", in.SourceID, in.TargetID))
	}
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("create link", err)
	}
	return link, nil
}

// GetLink returns a link by id
func (r *GraphRepository) GetLink(ctx context.Context, ownerID, linkID int64) (*graph.Link, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+linkColumns+` FROM graph_links WHERE owner_id = ? AND id = ?`,
		ownerID, linkID,
	)
	link, err := scanGraphLink(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("graph link", linkID)
	}
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("get link", err)
	}
	return link, nil
}

// OutgoingLinks returns links of kind leaving sourceNodeID
func (r *GraphRepository) OutgoingLinks(ctx context.Context, ownerID, sourceNodeID int64, kind graph.LinkKind) ([]*graph.Link, error) {
	return r.queryLinks(ctx, `
		SELECT `+linkColumns+` FROM graph_links
		WHERE owner_id = ? AND source_id = ? AND kind = ? ORDER BY id`,
		ownerID, sourceNodeID, string(kind),
	)
}

// LinksTouching returns links with nodeID as source or target
func (r *GraphRepository) LinksTouching(ctx context.Context, ownerID, nodeID int64) ([]*graph.Link, error) {
	return r.queryLinks(ctx, `
		SELECT `+linkColumns+` FROM graph_links
		WHERE owner_id = ? AND (source_id = ? OR target_id = ?) ORDER BY id`,
		ownerID, nodeID, nodeID,
	)
}

// ListLinks returns all of an owner's links
func (r *GraphRepository) ListLinks(ctx context.Context, ownerID int64) ([]*graph.Link, error) {
	return r.queryLinks(ctx, `
		SELECT `+linkColumns+` FROM graph_links WHERE owner_id = ? ORDER BY id`,
		ownerID,
	)
}

// DeleteLinks removes links by id and reports how many were removed
func (r *GraphRepository) DeleteLinks(ctx context.Context, ownerID int64, linkIDs []int64) (int64, error) {
	if len(linkIDs) == 0 {
		return 0, nil
	}
	args := append([]any{ownerID}, int64Args(linkIDs)...)
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM graph_links WHERE owner_id = ? AND id IN (`+placeholders(len(linkIDs))+`)`,
		args...,
	)
	if err != nil {
		return 0, apperrors.NewGraphQueryFailed("delete links", err)
	}
	return res.RowsAffected()
}

// DeleteLinksTouching removes every link whose source or target is in nodeIDs
func (r *GraphRepository) DeleteLinksTouching(ctx context.Context, ownerID int64, nodeIDs []int64) (int64, error) {
	if len(nodeIDs) == 0 {
		return 0, nil
	}
	ph := placeholders(len(nodeIDs))
	args := append([]any{ownerID}, int64Args(nodeIDs)...)
	args = append(args, int64Args(nodeIDs)...)
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM graph_links
		WHERE owner_id = ? AND (source_id IN (`+ph+`) OR target_id IN (`+ph+`))`,
		args...,
	)
	if err != nil {
		return 0, apperrors.NewGraphQueryFailed("delete links touching nodes", err)
	}
	return res.RowsAffected()
}
