package models

import (
	"time"
)

// User is an account owning every other entity
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar"`
	Bio          string    `json:"bio"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ContentFormat tells the extractors how to read a note body
type ContentFormat string

const (
	ContentMarkdown ContentFormat = "markdown"
	ContentHTML     ContentFormat = "html"
)

// Valid reports whether the format is one the extractors understand
func (f ContentFormat) Valid() bool {
	return f == ContentMarkdown || f == ContentHTML
}

// Note is a user's document
type Note struct {
	ID            int64         `json:"id"`
	OwnerID       int64         `json:"owner_id"`
	Title         string        `json:"title"`
	Slug          string        `json:"slug"`
	Content       string        `json:"content"`
	ContentFormat ContentFormat `json:"content_format"`
	PlainText     string        `json:"plain_text"`
	CoverImage    string        `json:"cover_image"`
	CategoryID    *int64        `json:"category_id"`
	IsPinned      bool          `json:"is_pinned"`
	IsArchived    bool          `json:"is_archived"`
	ArchivedAt    *time.Time    `json:"archived_at"`
	ViewCount     int64         `json:"view_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Populated by the store on reads
	Category     *CategoryRef `json:"category,omitempty"`
	Tags         []TagRef     `json:"tags"`
	RelatedNotes []NoteRef    `json:"related_notes"`
	WordCount    int          `json:"word_count"`
	ReadingTime  int          `json:"reading_time"`
}

// TagIDs returns the ids of the note's tags
func (n *Note) TagIDs() []int64 {
	ids := make([]int64, 0, len(n.Tags))
	for _, t := range n.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// TagNames returns the names of the note's tags
func (n *Note) TagNames() []string {
	names := make([]string, 0, len(n.Tags))
	for _, t := range n.Tags {
		names = append(names, t.Name)
	}
	return names
}

// RelatedIDs returns the ids of the note's related notes
func (n *Note) RelatedIDs() []int64 {
	ids := make([]int64, 0, len(n.RelatedNotes))
	for _, r := range n.RelatedNotes {
		ids = append(ids, r.ID)
	}
	return ids
}

// NoteRef is the compact form of a note embedded in other payloads
type NoteRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug,omitempty"`
}

// Category is a node in the user's category tree
type Category struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	ParentID    *int64    `json:"parent_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	IsActive    bool      `json:"is_active"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Path      string      `json:"path"`
	Level     int         `json:"level"`
	NoteCount int64       `json:"note_count"`
	Children  []*Category `json:"children,omitempty"`
}

// CategoryRef is the compact form of a category embedded in a note
type CategoryRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Tag is a flat label
type Tag struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Color       string    `json:"color"`
	Description string    `json:"description"`
	UsageCount  int64     `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TagRef is the compact form of a tag embedded in a note
type TagRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Collection is a saved web page
type Collection struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	Favicon     string    `json:"favicon"`
	Image       string    `json:"image"`
	Content     string    `json:"content,omitempty"`
	HTMLContent string    `json:"-"`
	IsProcessed bool      `json:"is_processed"`
	WordCount   int       `json:"word_count"`
	ViewCount   int64     `json:"view_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileType is the coarse media class of an attachment
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeDocument FileType = "document"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeOther    FileType = "other"
)

// Valid reports whether t is one of the known file types
func (t FileType) Valid() bool {
	switch t {
	case FileTypeImage, FileTypeDocument, FileTypeVideo, FileTypeAudio, FileTypeOther:
		return true
	}
	return false
}

// Attachment is an uploaded file, optionally bound to a note
type Attachment struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	NoteID    *int64    `json:"note_id"`
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	FileType  FileType  `json:"file_type"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Page selects a window of a list
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Paginated is a window of a list plus its total size
type Paginated[T any] struct {
	Count   int64 `json:"count"`
	Results []T   `json:"results"`
}
