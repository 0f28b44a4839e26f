package constants

import "time"

// Graph constants
const (
	// NodeLabelMaxLength is the number of runes kept when a node label is derived from its title
	NodeLabelMaxLength = 50

	// DefaultNodeValue is the weight every node reports to graph views
	DefaultNodeValue = 1

	// DefaultLinkStrength is the strength every link reports to graph views
	DefaultLinkStrength = 1
)

// Note constants
const (
	// FallbackSlug is used when a title slugifies to nothing
	FallbackSlug = "note"

	// WordsPerMinute drives the reading time estimate
	WordsPerMinute = 200

	// SuggestionLimit caps the title suggestions endpoint
	SuggestionLimit = 20

	// RecentLimit is the default size of the recent notes and attachments lists
	RecentLimit = 10
	// RecentCollectionLimit is the default size of the recent collections list
	RecentCollectionLimit = 5
	// MaxRecentLimit caps a client supplied limit on the recent endpoints
	MaxRecentLimit = 100

	// HotTagLimit caps the hot tags endpoint
	HotTagLimit = 20
)

// Category constants
const (
	// DefaultCategoryColor is assigned when a category is created without a color
	DefaultCategoryColor = "#1890ff"

	// DefaultTagColor is assigned when a tag is created without a color
	DefaultTagColor = "#1890ff"

	// CategoryPathSeparator joins ancestor names into a category path
	CategoryPathSeparator = "/"
)

// Pagination constants
const (
	DefaultPageSize     = 20
	MaxPageSize         = 100
	NoteDefaultPageSize = 12
	NoteMaxPageSize     = 48
)

// Auth constants
const (
	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 8

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// HTTP constants
const (
	// RequestIDHeader carries the per-request correlation id
	RequestIDHeader = "X-Request-ID"

	// ShutdownTimeout bounds graceful server shutdown
	ShutdownTimeout = 5 * time.Second

	// RateLimiterIdleTTL is how long an unused per-client limiter is kept
	RateLimiterIdleTTL = 10 * time.Minute
)

// Scraper constants
const (
	// ScrapeUserAgent identifies the collection scraper to remote sites
	ScrapeUserAgent = "Mozilla/5.0 (compatible; KnowledgeBaseBot/1.0)"

	// MaxScrapeBodyBytes caps how much of a page the scraper reads
	MaxScrapeBodyBytes = 5 << 20

	// MaxScrapeRedirects caps redirects followed by the scraper
	MaxScrapeRedirects = 5
)
