package graph

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Meta is the kind-specific payload of a node. Exactly one implementation
// exists per NodeKind.
type Meta interface {
	Kind() NodeKind
	SourceID() int64
	Validate() error
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// NoteMeta denormalizes the fields graph views show for a note
type NoteMeta struct {
	NoteID   int64    `json:"note_id"`
	Category *string  `json:"category"`
	Tags     []string `json:"tags"`
	Pinned   bool     `json:"is_pinned"`
	Archived bool     `json:"is_archived"`
}

func (m NoteMeta) Kind() NodeKind  { return KindNote }
func (m NoteMeta) SourceID() int64 { return m.NoteID }

func (m NoteMeta) Validate() error {
	if m.NoteID <= 0 {
		return fmt.Errorf("note meta: invalid note id %d", m.NoteID)
	}
	return nil
}

// CategoryMeta carries a category's position and color
type CategoryMeta struct {
	CategoryID int64  `json:"category_id"`
	Path       string `json:"path"`
	Color      string `json:"color"`
}

func (m CategoryMeta) Kind() NodeKind  { return KindCategory }
func (m CategoryMeta) SourceID() int64 { return m.CategoryID }

func (m CategoryMeta) Validate() error {
	if m.CategoryID <= 0 {
		return fmt.Errorf("category meta: invalid category id %d", m.CategoryID)
	}
	if m.Color != "" && !colorPattern.MatchString(m.Color) {
		return fmt.Errorf("category meta: invalid color %q", m.Color)
	}
	return nil
}

// TagMeta carries a tag's color and how many notes use it
type TagMeta struct {
	TagID      int64  `json:"tag_id"`
	Color      string `json:"color"`
	UsageCount int64  `json:"usage_count"`
}

func (m TagMeta) Kind() NodeKind  { return KindTag }
func (m TagMeta) SourceID() int64 { return m.TagID }

func (m TagMeta) Validate() error {
	if m.TagID <= 0 {
		return fmt.Errorf("tag meta: invalid tag id %d", m.TagID)
	}
	if m.UsageCount < 0 {
		return fmt.Errorf("tag meta: negative usage count %d", m.UsageCount)
	}
	if m.Color != "" && !colorPattern.MatchString(m.Color) {
		return fmt.Errorf("tag meta: invalid color %q", m.Color)
	}
	return nil
}

// CollectionMeta carries where a saved page came from
type CollectionMeta struct {
	CollectionID int64  `json:"collection_id"`
	Domain       string `json:"domain"`
	URL          string `json:"url"`
}

func (m CollectionMeta) Kind() NodeKind  { return KindCollection }
func (m CollectionMeta) SourceID() int64 { return m.CollectionID }

func (m CollectionMeta) Validate() error {
	if m.CollectionID <= 0 {
		return fmt.Errorf("collection meta: invalid collection id %d", m.CollectionID)
	}
	return nil
}

// EncodeMeta serializes a validated meta payload for storage
func EncodeMeta(m Meta) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("meta is required")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// DecodeMeta restores the meta payload stored for a node of the given kind
func DecodeMeta(kind NodeKind, data []byte) (Meta, error) {
	switch kind {
	case KindNote:
		var m NoteMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding note meta: %w", err)
		}
		if m.Tags == nil {
			m.Tags = []string{}
		}
		return m, nil
	case KindCategory:
		var m CategoryMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding category meta: %w", err)
		}
		return m, nil
	case KindTag:
		var m TagMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding tag meta: %w", err)
		}
		return m, nil
	case KindCollection:
		var m CollectionMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding collection meta: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}
