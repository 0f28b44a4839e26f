package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"knowledge-base/backend/internal/services"
	"knowledge-base/backend/pkg/config"
	"knowledge-base/backend/pkg/logger"
)

// Pinger reports whether a backing store is reachable
type Pinger func(ctx context.Context) error

// Options configures the router
type Options struct {
	Config   *config.Config
	Services *services.Manager
	// Health checks run by GET /health, keyed by component name
	Health map[string]Pinger
}

type handler struct {
	svc    *services.Manager
	logger *zap.Logger
}

// NewRouter builds the HTTP API
func NewRouter(opts Options) *gin.Engine {
	cfg := opts.Config
	log := logger.Named("api")
	h := &handler{svc: opts.Services, logger: log}

	router := gin.New()
	router.Use(requestID())
	router.Use(ginLogger(log))
	router.Use(recovery(log))
	router.Use(cors(cfg.CORSOrigins))
	router.MaxMultipartMemory = 8 << 20

	router.GET("/health", health(opts.Health))

	apiLimiter := newClientLimiter(cfg.RateLimitAPI, time.Minute)
	loginLimiter := newClientLimiter(cfg.RateLimitLogin, time.Minute)
	registerLimiter := newClientLimiter(cfg.RateLimitRegister, time.Hour)

	api := router.Group("/api", rateLimit(apiLimiter, log))

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", rateLimit(registerLimiter, log), h.register)
		authGroup.POST("/login", rateLimit(loginLimiter, log), h.login)
		authGroup.POST("/refresh", h.refresh)
	}

	protected := api.Group("", requireAuth(opts.Services.Auth, log))
	{
		protected.GET("/auth/profile", h.profile)
		protected.PUT("/auth/profile", h.updateProfile)
		protected.PATCH("/auth/profile", h.updateProfile)
		protected.POST("/auth/password", h.changePassword)
	}

	notes := protected.Group("/notes")
	{
		notes.GET("", h.listNotes)
		notes.POST("", h.createNote)
		notes.GET("/search", h.searchNotes)
		notes.GET("/suggestions", h.noteSuggestions)
		notes.GET("/recent", h.recentNotes)
		notes.GET("/archived", h.archivedNotes)
		notes.GET("/:id", h.getNote)
		notes.PUT("/:id", h.updateNote)
		notes.PATCH("/:id", h.updateNote)
		notes.DELETE("/:id", h.deleteNote)
		notes.GET("/:id/content", h.noteContent)
		notes.POST("/:id/archive", h.archiveNote())
		notes.POST("/:id/unarchive", h.unarchiveNote())
		notes.POST("/:id/pin", h.pinNote())
		notes.POST("/:id/increment-view", h.incrementNoteView)
		notes.PUT("/:id/tags", h.noteTags)
		notes.POST("/:id/tags", h.noteTags)
		notes.DELETE("/:id/tags", h.noteTags)
	}

	categories := protected.Group("/categories")
	{
		categories.GET("", h.listCategories)
		categories.POST("", h.createCategory)
		categories.GET("/tree", h.categoryTree)
		categories.GET("/root", h.rootCategories)
		categories.GET("/all", h.allCategories)
		categories.GET("/:id", h.getCategory)
		categories.PUT("/:id", h.updateCategory)
		categories.PATCH("/:id", h.updateCategory)
		categories.DELETE("/:id", h.deleteCategory)
		categories.GET("/:id/children", h.categoryChildren)
	}

	tags := protected.Group("/tags")
	{
		tags.GET("", h.listTags)
		tags.POST("", h.createTag)
		tags.GET("/hot", h.hotTags)
		tags.GET("/search", h.searchTags)
		tags.GET("/all", h.allTags)
		tags.POST("/bulk", h.bulkCreateTags)
		tags.GET("/:id", h.getTag)
		tags.PUT("/:id", h.updateTag)
		tags.PATCH("/:id", h.updateTag)
		tags.DELETE("/:id", h.deleteTag)
	}

	g := protected.Group("/graph")
	{
		g.GET("/graph", h.fullGraph)
		g.GET("/related/:id", h.relatedGraph)
		g.GET("/nodes", h.listNodes)
		g.GET("/nodes/by_type", h.nodesByType)
		g.GET("/nodes/:id", h.getNode)
		g.GET("/links", h.listLinks)
		g.POST("/links", h.createLink)
		g.GET("/links/by_node", h.linksByNode)
		g.DELETE("/links/batch_delete", h.batchDeleteLinks)
		g.DELETE("/links/:id", h.deleteLink)
	}

	collections := protected.Group("/collections")
	{
		collections.GET("", h.listCollections)
		collections.POST("", h.createCollection)
		collections.GET("/recent", h.recentCollections)
		collections.GET("/:id", h.getCollection)
		collections.PUT("/:id", h.updateCollection)
		collections.PATCH("/:id", h.updateCollection)
		collections.DELETE("/:id", h.deleteCollection)
		collections.POST("/:id/refresh", h.refreshCollection)
	}

	attachments := protected.Group("/attachments")
	{
		attachments.GET("", h.listAttachments)
		attachments.POST("", h.uploadAttachment)
		attachments.GET("/recent", h.recentAttachments)
		attachments.DELETE("/bulk_delete", h.bulkDeleteAttachments)
		attachments.GET("/:id", h.getAttachment)
		attachments.GET("/:id/download", h.downloadAttachment)
		attachments.DELETE("/:id", h.deleteAttachment)
	}

	return router
}

// health reports ok when every check passes, 503 otherwise
func health(checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		components := gin.H{}
		status := http.StatusOK
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "components": components})
	}
}
