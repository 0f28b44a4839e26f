// Package bootstrap opens the stores named by the configuration and wires
// the services over them. The server and kbctl share it.
package bootstrap

import (
	"context"

	"go.uber.org/zap"

	"knowledge-base/backend/internal/auth"
	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/scrape"
	"knowledge-base/backend/internal/services"
	"knowledge-base/backend/internal/store"
	"knowledge-base/backend/pkg/config"
	"knowledge-base/backend/pkg/logger"
)

// Env is an opened runtime
type Env struct {
	DB       *store.DB
	Services *services.Manager
	// Health checks keyed by component name
	Health map[string]func(ctx context.Context) error

	closers []func() error
}

// Open migrates the database, connects the graph backend and builds the
// services. The caller must Close the result.
func Open(ctx context.Context, cfg *config.Config) (*Env, error) {
	log := logger.Named("bootstrap")

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	env := &Env{DB: db, closers: []func() error{db.Close}}

	if err := db.Migrate(ctx); err != nil {
		env.Close()
		return nil, err
	}

	env.Health = map[string]func(ctx context.Context) error{"database": db.Ping}
	binding := services.SQLiteGraph()
	if cfg.UsesNeo4j() {
		driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			env.Close()
			return nil, err
		}
		repo := graph.NewRepository(driver)
		env.closers = append(env.closers, repo.Close)

		if err := repo.EnsureSchema(ctx); err != nil {
			env.Close()
			return nil, err
		}
		binding = services.Neo4jGraph(repo)
		env.Health["neo4j"] = driver.VerifyConnectivity
		log.Info("Using Neo4j graph store", zap.String("uri", cfg.Neo4jURI))
	}

	env.Services = services.NewManager(db, binding, services.Options{
		Issuer:         auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Scraper:        scrape.NewScraper(scrape.NewValidator(cfg.AllowedScrapeDomains), cfg.ScrapeTimeout),
		MediaRoot:      cfg.MediaRoot,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	return env, nil
}

// Close releases the stores in reverse order of opening
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			logger.Get().Warn("Failed to close resource", zap.Error(err))
		}
	}
	e.closers = nil
}
