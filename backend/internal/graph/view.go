package graph

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"knowledge-base/backend/internal/constants"
)

// ViewNode is the node shape served to graph visualizations
type ViewNode struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Type      NodeKind  `json:"type" yaml:"type"`
	Value     int       `json:"value" yaml:"value"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Category  *string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ViewLink is the link shape served to graph visualizations
type ViewLink struct {
	ID       int64    `json:"id" yaml:"id"`
	Source   int64    `json:"source" yaml:"source"`
	Target   int64    `json:"target" yaml:"target"`
	Type     LinkKind `json:"type" yaml:"type"`
	Strength int      `json:"strength" yaml:"strength"`
}

// View is a renderable subgraph
type View struct {
	Nodes []ViewNode `json:"nodes" yaml:"nodes"`
	Links []ViewLink `json:"links" yaml:"links"`
}

// FullGraph loads every node and link of an owner
func FullGraph(ctx context.Context, store Store, ownerID int64) (*View, error) {
	var (
		nodes []*Node
		links []*Link
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = store.ListNodes(gctx, ownerID, "")
		return err
	})
	g.Go(func() error {
		var err error
		links, err = store.ListLinks(gctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewView(nodes, links), nil
}

// RelatedGraph loads the links touching a node plus their endpoints
func RelatedGraph(ctx context.Context, store Store, ownerID, nodeID int64) (*View, error) {
	links, err := store.LinksTouching(ctx, ownerID, nodeID)
	if err != nil {
		return nil, err
	}

	ids := []int64{nodeID}
	seen := map[int64]struct{}{nodeID: {}}
	for _, l := range links {
		for _, id := range [2]int64{l.SourceID, l.TargetID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	nodes, err := store.NodesByID(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	return NewView(nodes, links), nil
}

// NewView shapes nodes and links for rendering, ordered by id
func NewView(nodes []*Node, links []*Link) *View {
	v := &View{
		Nodes: make([]ViewNode, 0, len(nodes)),
		Links: make([]ViewLink, 0, len(links)),
	}
	for _, n := range nodes {
		v.Nodes = append(v.Nodes, viewNode(n))
	}
	for _, l := range links {
		v.Links = append(v.Links, ViewLink{
			ID:       l.ID,
			Source:   l.SourceID,
			Target:   l.TargetID,
			Type:     l.Kind,
			Strength: constants.DefaultLinkStrength,
		})
	}
	sort.Slice(v.Nodes, func(i, j int) bool { return v.Nodes[i].ID < v.Nodes[j].ID })
	sort.Slice(v.Links, func(i, j int) bool { return v.Links[i].ID < v.Links[j].ID })
	return v
}

func viewNode(n *Node) ViewNode {
	name := n.Label
	if name == "" {
		name = n.Title
	}
	vn := ViewNode{
		ID:        n.ID,
		Name:      name,
		Type:      n.Kind,
		Value:     constants.DefaultNodeValue,
		CreatedAt: n.CreatedAt,
	}
	if meta, ok := n.Meta.(NoteMeta); ok {
		vn.Category = meta.Category
		if len(meta.Tags) > 0 {
			vn.Tags = meta.Tags
		}
	}
	return vn
}
