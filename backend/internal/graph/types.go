package graph

import (
	"time"
	"unicode/utf8"

	"knowledge-base/backend/internal/constants"
)

// ============================================================================
// Graph Types
// ============================================================================

// NodeKind identifies which primary entity a node projects
type NodeKind string

const (
	KindNote       NodeKind = "note"
	KindCategory   NodeKind = "category"
	KindTag        NodeKind = "tag"
	KindCollection NodeKind = "collection"
)

// Valid reports whether k is a known node kind
func (k NodeKind) Valid() bool {
	switch k {
	case KindNote, KindCategory, KindTag, KindCollection:
		return true
	}
	return false
}

// LinkKind is the relationship a link expresses
type LinkKind string

const (
	LinkRelated   LinkKind = "related"
	LinkParent    LinkKind = "parent"
	LinkTagged    LinkKind = "tagged"
	LinkSimilar   LinkKind = "similar"
	LinkReference LinkKind = "reference"
)

// Valid reports whether k is a known link kind
func (k LinkKind) Valid() bool {
	switch k {
	case LinkRelated, LinkParent, LinkTagged, LinkSimilar, LinkReference:
		return true
	}
	return false
}

// Node is one vertex of an owner's graph
type Node struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Kind      NodeKind  `json:"node_type"`
	SourceID  int64     `json:"source_id"`
	Title     string    `json:"title"`
	Label     string    `json:"label"`
	Meta      Meta      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link is a directed, typed edge between two nodes of the same owner
type Link struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	SourceID    int64     `json:"source"`
	TargetID    int64     `json:"target"`
	Kind        LinkKind  `json:"link_type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// NodeInput is the state a node must reflect after an upsert.
// Kind and source id come from Meta.
type NodeInput struct {
	OwnerID int64
	Title   string
	Label   string
	Meta    Meta
}

// LinkInput describes a link to create or upsert
type LinkInput struct {
	OwnerID     int64
	SourceID    int64
	TargetID    int64
	Kind        LinkKind
	Description string
}

// DefaultLabel truncates a title to the label length
func DefaultLabel(title string) string {
	if utf8.RuneCountInString(title) <= constants.NodeLabelMaxLength {
		return title
	}
	runes := []rune(title)
	return string(runes[:constants.NodeLabelMaxLength])
}
