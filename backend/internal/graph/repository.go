package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "knowledge-base/backend/pkg/errors"
	"knowledge-base/backend/pkg/logger"
)

// Repository keeps the graph in Neo4j. It implements Store.
//
// Nodes are (:GraphNode) with the same properties as the relational
// projection, meta held as a JSON string. Links are [:LINK] relationships,
// so one relationship per (source, target) pair. Numeric ids come from
// (:GraphSequence) counters.
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Named("graph.neo4j"),
	}
}

// Connect opens a driver and verifies the server is reachable
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	return driver, nil
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// EnsureSchema creates the constraints the repository relies on
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT graph_node_source IF NOT EXISTS
		 FOR (n:GraphNode) REQUIRE (n.owner_id, n.kind, n.source_id) IS UNIQUE`,
		`CREATE CONSTRAINT graph_node_id IF NOT EXISTS
		 FOR (n:GraphNode) REQUIRE n.id IS UNIQUE`,
		`CREATE CONSTRAINT graph_sequence_name IF NOT EXISTS
		 FOR (s:GraphSequence) REQUIRE s.name IS UNIQUE`,
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return apperrors.NewGraphQueryFailed("ensure schema", err)
		}
	}
	r.logger.Info("Neo4j graph schema ensured")
	return nil
}

const nodeReturn = `
	RETURN n.id AS id, n.owner_id AS owner_id, n.kind AS kind, n.source_id AS source_id,
	       n.title AS title, n.label AS label, n.meta AS meta,
	       n.created_at AS created_at, n.updated_at AS updated_at`

const linkReturn = `
	RETURN r.id AS id, r.owner_id AS owner_id, s.id AS source_id, t.id AS target_id,
	       r.kind AS kind, r.description AS description, r.created_at AS created_at`

func nodeFromRecord(record *neo4j.Record) (*Node, error) {
	n := &Node{
		ID:        getInt64FromRecord(record, "id"),
		OwnerID:   getInt64FromRecord(record, "owner_id"),
		Kind:      NodeKind(getStringFromRecord(record, "kind")),
		SourceID:  getInt64FromRecord(record, "source_id"),
		Title:     getStringFromRecord(record, "title"),
		Label:     getStringFromRecord(record, "label"),
		CreatedAt: time.UnixMilli(getInt64FromRecord(record, "created_at")).UTC(),
		UpdatedAt: time.UnixMilli(getInt64FromRecord(record, "updated_at")).UTC(),
	}
	meta, err := DecodeMeta(n.Kind, []byte(getStringFromRecord(record, "meta")))
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", n.ID, err)
	}
	n.Meta = meta
	return n, nil
}

func linkFromRecord(record *neo4j.Record) *Link {
	return &Link{
		ID:          getInt64FromRecord(record, "id"),
		OwnerID:     getInt64FromRecord(record, "owner_id"),
		SourceID:    getInt64FromRecord(record, "source_id"),
		TargetID:    getInt64FromRecord(record, "target_id"),
		Kind:        LinkKind(getStringFromRecord(record, "kind")),
		Description: getStringFromRecord(record, "description"),
		CreatedAt:   time.UnixMilli(getInt64FromRecord(record, "created_at")).UTC(),
	}
}

// read runs a query in a read session and collects its records
func (r *Repository) read(ctx context.Context, op, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed(op, err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed(op, err)
	}
	return records, nil
}

// write runs work in a managed write transaction and returns its result
func (r *Repository) write(ctx context.Context, op string, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, work)
	if err != nil {
		if apperrors.TypeOf(err) != "" {
			return nil, err
		}
		return nil, apperrors.NewGraphQueryFailed(op, err)
	}
	return out, nil
}

func (r *Repository) readNodes(ctx context.Context, op, query string, params map[string]interface{}) ([]*Node, error) {
	records, err := r.read(ctx, op, query, params)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(records))
	for _, rec := range records {
		n, err := nodeFromRecord(rec)
		if err != nil {
			return nil, apperrors.NewGraphQueryFailed(op, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (r *Repository) readLinks(ctx context.Context, op, query string, params map[string]interface{}) ([]*Link, error) {
	records, err := r.read(ctx, op, query, params)
	if err != nil {
		return nil, err
	}
	links := make([]*Link, 0, len(records))
	for _, rec := range records {
		links = append(links, linkFromRecord(rec))
	}
	return links, nil
}

// ============================================================================
// Nodes
// ============================================================================

// UpsertNode merges on (owner_id, kind, source_id); the id is allocated
// only when the node is created.
func (r *Repository) UpsertNode(ctx context.Context, in NodeInput) (*Node, error) {
	meta, err := EncodeMeta(in.Meta)
	if err != nil {
		return nil, apperrors.NewValidationFailed("meta", err.Error())
	}
	label := in.Label
	if label == "" {
		label = DefaultLabel(in.Title)
	}

	query := `
		MERGE (n:GraphNode {owner_id: $owner_id, kind: $kind, source_id: $source_id})
		ON CREATE SET n.created_at = $now
		SET n.title = $title,
		    n.label = $label,
		    n.meta = $meta,
		    n.updated_at = $now
		FOREACH (_ IN CASE WHEN n.id IS NULL THEN [1] ELSE [] END |
			MERGE (seq:GraphSequence {name: 'node'})
			ON CREATE SET seq.value = 0
			SET seq.value = seq.value + 1
			SET n.id = seq.value
		)
		WITH n` + nodeReturn

	out, err := r.write(ctx, "upsert node", func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]interface{}{
			"owner_id":  in.OwnerID,
			"kind":      string(in.Meta.Kind()),
			"source_id": in.Meta.SourceID(),
			"title":     in.Title,
			"label":     label,
			"meta":      string(meta),
			"now":       time.Now().UnixMilli(),
		})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return nodeFromRecord(record)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Node), nil
}

// FindNode returns the node projecting (kind, sourceID), or nil
func (r *Repository) FindNode(ctx context.Context, ownerID int64, kind NodeKind, sourceID int64) (*Node, error) {
	nodes, err := r.readNodes(ctx, "find node", `
		MATCH (n:GraphNode {owner_id: $owner_id, kind: $kind, source_id: $source_id})`+nodeReturn,
		map[string]interface{}{"owner_id": ownerID, "kind": string(kind), "source_id": sourceID},
	)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// FindNodes resolves many source ids of one kind at once
func (r *Repository) FindNodes(ctx context.Context, ownerID int64, kind NodeKind, sourceIDs []int64) (map[int64]*Node, error) {
	out := make(map[int64]*Node, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return out, nil
	}
	nodes, err := r.readNodes(ctx, "find nodes", `
		MATCH (n:GraphNode {owner_id: $owner_id, kind: $kind})
		WHERE n.source_id IN $source_ids`+nodeReturn,
		map[string]interface{}{"owner_id": ownerID, "kind": string(kind), "source_ids": sourceIDs},
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
func (r *Repository) GetNode(ctx context.Context, ownerID, nodeID int64) (*Node, error) {
	nodes, err := r.readNodes(ctx, "get node", `
		MATCH (n:GraphNode {owner_id: $owner_id, id: $id})`+nodeReturn,
		map[string]interface{}{"owner_id": ownerID, "id": nodeID},
	)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, apperrors.NewNotFound("graph node", nodeID)
	}
	return nodes[0], nil
}

// ListNodes returns an owner's nodes, optionally of one kind
func (r *Repository) ListNodes(ctx context.Context, ownerID int64, kind NodeKind) ([]*Node, error) {
	return r.readNodes(ctx, "list nodes", `
		MATCH (n:GraphNode {owner_id: $owner_id})
		WHERE $kind = '' OR n.kind = $kind`+nodeReturn+`
		ORDER BY id`,
		map[string]interface{}{"owner_id": ownerID, "kind": string(kind)},
	)
}

// NodesByID returns the owner's nodes among nodeIDs
func (r *Repository) NodesByID(ctx context.Context, ownerID int64, nodeIDs []int64) ([]*Node, error) {
	if len(nodeIDs) == 0 {
		return []*Node{}, nil
	}
	return r.readNodes(ctx, "nodes by id", `
		MATCH (n:GraphNode {owner_id: $owner_id})
		WHERE n.id IN $ids`+nodeReturn+`
		ORDER BY id`,
		map[string]interface{}{"owner_id": ownerID, "ids": nodeIDs},
	)
}

// DeleteNodes detaches and deletes the nodes projecting sourceIDs
func (r *Repository) DeleteNodes(ctx context.Context, ownerID int64, kind NodeKind, sourceIDs []int64) ([]int64, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	out, err := r.write(ctx, "delete nodes", func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (n:GraphNode {owner_id: $owner_id, kind: $kind})
			WHERE n.source_id IN $source_ids
			WITH collect(n) AS nodes, collect(n.id) AS ids
			FOREACH (x IN nodes | DETACH DELETE x)
			RETURN ids`,
			map[string]interface{}{"owner_id": ownerID, "kind": string(kind), "source_ids": sourceIDs},
		)
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return getInt64SliceFromRecord(record, "ids"), nil
	})
	if err != nil {
		return nil, err
	}
	ids := out.([]int64)
	if len(ids) > 0 {
		r.logger.Debug("Deleted graph nodes",
			zap.Int64("owner_id", ownerID),
			zap.String("kind", string(kind)),
			zap.Int64s("ids", ids),
		)
	}
	return ids, nil
}

// ============================================================================
// Links
// ============================================================================

const mergeLink = `
	MATCH (s:GraphNode {owner_id: $owner_id, id: $source_id})
	MATCH (t:GraphNode {owner_id: $owner_id, id: $target_id})
	MERGE (s)-[r:LINK]->(t)
	ON CREATE SET r.owner_id = $owner_id,
	              r.description = $description,
	              r.created_at = $now
	SET r.kind = $kind
	FOREACH (_ IN CASE WHEN r.id IS NULL THEN [1] ELSE [] END |
		MERGE (seq:GraphSequence {name: 'link'})
		ON CREATE SET seq.value = 0
		SET seq.value = seq.value + 1
		SET r.id = seq.value
	)
	WITH s, r, t`

func linkParams(in LinkInput) map[string]interface{} {
	return map[string]interface{}{
		"owner_id":    in.OwnerID,
		"source_id":   in.SourceID,
		"target_id":   in.TargetID,
		"kind":        string(in.Kind),
		"description": in.Description,
		"now":         time.Now().UnixMilli(),
	}
}

func runMergeLink(ctx context.Context, tx neo4j.ManagedTransaction, in LinkInput) (any, error) {
	result, err := tx.Run(ctx, mergeLink+linkReturn, linkParams(in))
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NewNotFound("graph node", fmt.Sprintf("%d or %d", in.SourceID, in.TargetID))
	}
	return linkFromRecord(records[0]), nil
}

// UpsertLink merges the (source, target) relationship and sets its kind
func (r *Repository) UpsertLink(ctx context.Context, in LinkInput) (*Link, error) {
	out, err := r.write(ctx, "upsert link", func(tx neo4j.ManagedTransaction) (any, error) {
		return runMergeLink(ctx, tx, in)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Link), nil
}

// CreateLink creates a link, failing with a conflict if (source, target) exists
func (r *Repository) CreateLink(ctx context.Context, in LinkInput) (*Link, error) {
	out, err := r.write(ctx, "create link", func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (:GraphNode {owner_id: $owner_id, id: $source_id})-[r:LINK]->(:GraphNode {owner_id: $owner_id, id: $target_id})
			RETURN count(r) AS existing`,
			linkParams(in),
		)
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		if getInt64FromRecord(record, "existing") > 0 {
			return nil, apperrors.NewConflict("graph link", fmt.Sprintf("%d->%d", in.SourceID, in.TargetID))
		}
		return runMergeLink(ctx, tx, in)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Link), nil
}

// GetLink returns a link by id
func (r *Repository) GetLink(ctx context.Context, ownerID, linkID int64) (*Link, error) {
	links, err := r.readLinks(ctx, "get link", `
		MATCH (s:GraphNode)-[r:LINK {owner_id: $owner_id, id: $id}]->(t:GraphNode)`+linkReturn,
		map[string]interface{}{"owner_id": ownerID, "id": linkID},
	)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, apperrors.NewNotFound("graph link", linkID)
	}
	return links[0], nil
}

// OutgoingLinks returns links of kind leaving sourceNodeID
func (r *Repository) OutgoingLinks(ctx context.Context, ownerID, sourceNodeID int64, kind LinkKind) ([]*Link, error) {
	return r.readLinks(ctx, "outgoing links", `
		MATCH (s:GraphNode {owner_id: $owner_id, id: $source_id})-[r:LINK {kind: $kind}]->(t:GraphNode)`+linkReturn+`
		ORDER BY id`,
		map[string]interface{}{"owner_id": ownerID, "source_id": sourceNodeID, "kind": string(kind)},
	)
}

// LinksTouching returns links with nodeID as source or target
func (r *Repository) LinksTouching(ctx context.Context, ownerID, nodeID int64) ([]*Link, error) {
	return r.readLinks(ctx, "links touching", `
		MATCH (s:GraphNode)-[r:LINK {owner_id: $owner_id}]->(t:GraphNode)
		WHERE s.id = $id OR t.id = $id`+linkReturn+`
		ORDER BY id`,
		map[string]interface{}{"owner_id": ownerID, "id": nodeID},
	)
}

// ListLinks returns all of an owner's links
func (r *Repository) ListLinks(ctx context.Context, ownerID int64) ([]*Link, error) {
	return r.readLinks(ctx, "list links", `
		MATCH (s:GraphNode)-[r:LINK {owner_id: $owner_id}]->(t:GraphNode)`+linkReturn+`
		ORDER BY id`,
		map[string]interface{}{"owner_id": ownerID},
	)
}

// DeleteLinks removes links by id and reports how many were removed
func (r *Repository) DeleteLinks(ctx context.Context, ownerID int64, linkIDs []int64) (int64, error) {
	if len(linkIDs) == 0 {
		return 0, nil
	}
	return r.deleteLinks(ctx, "delete links", `
		MATCH (:GraphNode)-[r:LINK {owner_id: $owner_id}]->(:GraphNode)
		WHERE r.id IN $ids
		DELETE r
		RETURN count(r) AS removed`,
		map[string]interface{}{"owner_id": ownerID, "ids": linkIDs},
	)
}

// DeleteLinksTouching removes every link whose source or target is in nodeIDs
func (r *Repository) DeleteLinksTouching(ctx context.Context, ownerID int64, nodeIDs []int64) (int64, error) {
	if len(nodeIDs) == 0 {
		return 0, nil
	}
	return r.deleteLinks(ctx, "delete links touching nodes", `
		MATCH (s:GraphNode)-[r:LINK {owner_id: $owner_id}]->(t:GraphNode)
		WHERE s.id IN $ids OR t.id IN $ids
		DELETE r
		RETURN count(r) AS removed`,
		map[string]interface{}{"owner_id": ownerID, "ids": nodeIDs},
	)
}

func (r *Repository) deleteLinks(ctx context.Context, op, query string, params map[string]interface{}) (int64, error) {
	out, err := r.write(ctx, op, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return getInt64FromRecord(record, "removed"), nil
	})
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}
