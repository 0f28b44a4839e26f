package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/services"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
)

type collectionRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type collectionUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *handler) listCollections(c *gin.Context) {
	filter := store.CollectionFilter{
		Search:   c.Query("search"),
		Ordering: c.Query("order"),
	}
	if raw, ok := c.GetQuery("processed"); ok {
		processed := strings.EqualFold(raw, "true")
		filter.Processed = &processed
	}
	page := pageFromQuery(c, constants.DefaultPageSize, constants.MaxPageSize)
	list, err := h.svc.Collections.List(c.Request.Context(), currentUser(c), filter, page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", paginate(c, list, page))
}

func (h *handler) recentCollections(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.svc.Collections.Recent(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", list)
}

func (h *handler) createCollection(c *gin.Context) {
	var req collectionRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	collection, err := h.svc.Collections.Create(c.Request.Context(), currentUser(c), services.CollectionInput{
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "created", collection)
}

func (h *handler) getCollection(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	collection, err := h.svc.Collections.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", collection)
}

func (h *handler) updateCollection(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req collectionUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	collection, err := h.svc.Collections.Update(c.Request.Context(), currentUser(c), id, services.CollectionUpdate{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "updated", collection)
}

func (h *handler) refreshCollection(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	collection, err := h.svc.Collections.Refresh(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "refreshed", collection)
}

func (h *handler) deleteCollection(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.svc.Collections.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "deleted", nil)
}

func (h *handler) listAttachments(c *gin.Context) {
	noteID, err := optionalID(c, "note")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	filter := store.AttachmentFilter{
		NoteID:   noteID,
		FileType: models.FileType(c.Query("type")),
		Ordering: c.Query("order"),
	}
	page := pageFromQuery(c, constants.DefaultPageSize, constants.MaxPageSize)
	list, err := h.svc.Attachments.List(c.Request.Context(), currentUser(c), filter, page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", paginate(c, list, page))
}

func (h *handler) recentAttachments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.svc.Attachments.Recent(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", list)
}

func (h *handler) uploadAttachment(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, h.logger, apperrors.NewValidationFailed("file", "is required"))
		return
	}
	var noteID *int64
	if raw := c.PostForm("note_id"); raw != "" {
		id, err := parseID(raw, "note_id")
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		noteID = &id
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, h.logger, apperrors.NewValidationFailed("file", "cannot be read"))
		return
	}
	defer f.Close()

	attachment, err := h.svc.Attachments.Upload(c.Request.Context(), currentUser(c), services.UploadInput{
		NoteID:   noteID,
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Body:     f,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "uploaded", attachment)
}

func (h *handler) getAttachment(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	attachment, err := h.svc.Attachments.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", attachment)
}

func (h *handler) downloadAttachment(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	attachment, err := h.svc.Attachments.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.FileAttachment(h.svc.Attachments.FilePath(attachment.Path), attachment.Name)
}

func (h *handler) deleteAttachment(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.svc.Attachments.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "deleted", nil)
}

func (h *handler) bulkDeleteAttachments(c *gin.Context) {
	var req idsRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if len(req.IDs) == 0 {
		respondError(c, h.logger, apperrors.NewValidationFailed("ids", "is required"))
		return
	}
	deleted, err := h.svc.Attachments.BulkDelete(c.Request.Context(), currentUser(c), req.IDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "deleted", gin.H{"deleted": deleted})
}
