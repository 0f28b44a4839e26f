package services

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"knowledge-base/backend/internal/auth"
	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/scrape"
	"knowledge-base/backend/internal/store"
	"knowledge-base/backend/pkg/logger"
)

// GraphBinding returns the graph store that reconciliation inside tx should
// write to. The SQLite binding keeps the graph in the same transaction as
// the entity write; the Neo4j binding ignores tx, so a graph failure still
// aborts the entity write but graph writes already made are not undone.
type GraphBinding func(tx *store.Tx) graph.Store

// SQLiteGraph keeps the graph in the relational database
func SQLiteGraph() GraphBinding {
	return func(tx *store.Tx) graph.Store { return tx.Graph() }
}

// Neo4jGraph keeps the graph in Neo4j
func Neo4jGraph(repo graph.Store) GraphBinding {
	return func(*store.Tx) graph.Store { return repo }
}

// PageScraper fetches and parses collection URLs
type PageScraper interface {
	Validate(raw string) (*url.URL, error)
	Scrape(ctx context.Context, raw string) (*scrape.Page, error)
}

// Options configures the services that need more than the database
type Options struct {
	Issuer         *auth.Issuer
	Scraper        PageScraper
	MediaRoot      string
	MaxUploadBytes int64
}

// Manager owns every entity service
type Manager struct {
	Auth        *AuthService
	Notes       *NoteService
	Categories  *CategoryService
	Tags        *TagService
	Collections *CollectionService
	Attachments *AttachmentService
	Graph       *GraphService
}

// NewManager wires the entity services over db and the graph binding
func NewManager(db *store.DB, binding GraphBinding, opts Options) *Manager {
	if binding == nil {
		binding = SQLiteGraph()
	}
	b := base{db: db, graphFor: binding}

	m := &Manager{
		Auth:        NewAuthService(db, opts.Issuer),
		Notes:       &NoteService{base: b.named("notes")},
		Categories:  &CategoryService{base: b.named("categories")},
		Tags:        &TagService{base: b.named("tags")},
		Collections: &CollectionService{base: b.named("collections"), scraper: opts.Scraper},
		Attachments: &AttachmentService{base: b.named("attachments"), mediaRoot: opts.MediaRoot, maxBytes: opts.MaxUploadBytes},
		Graph:       &GraphService{base: b.named("graph")},
	}
	m.Graph.rebuilders = []rebuilder{
		{kind: graph.KindCategory, project: m.Categories.project},
		{kind: graph.KindTag, project: m.Tags.project},
		{kind: graph.KindNote, project: m.Notes.project},
		{kind: graph.KindCollection, project: m.Collections.project},
	}
	return m
}

// recentLimit applies def to a missing limit and caps the rest
func recentLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > constants.MaxRecentLimit {
		return constants.MaxRecentLimit
	}
	return limit
}

// base is shared by the entity services
type base struct {
	db       *store.DB
	graphFor GraphBinding
	logger   *zap.Logger
}

func (b base) named(component string) base {
	b.logger = logger.Named("services." + component)
	return b
}

// syncer returns a reconciler writing through the graph bound to tx
func (b base) syncer(tx *store.Tx) *graph.Syncer {
	return graph.NewSyncer(b.graphFor(tx))
}

// graphReader returns the graph store for reads outside a unit of work
func (b base) graphReader() graph.Store {
	return b.graphFor(b.db.Reader())
}
