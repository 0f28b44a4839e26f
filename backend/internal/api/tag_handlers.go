package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/services"
	apperrors "knowledge-base/backend/pkg/errors"
)

type tagRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

type tagUpdateRequest struct {
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	Description *string `json:"description"`
}

type bulkTagRequest struct {
	Names []string `json:"names"`
}

func (h *handler) listTags(c *gin.Context) {
	all, err := h.svc.Tags.List(c.Request.Context(), currentUser(c), c.Query("search"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	page := pageFromQuery(c, constants.DefaultPageSize, constants.MaxPageSize)
	respondOK(c, "success", paginate(c, pageSlice(all, page), page))
}

func (h *handler) allTags(c *gin.Context) {
	all, err := h.svc.Tags.List(c.Request.Context(), currentUser(c), "")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", all)
}

func (h *handler) hotTags(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	tags, err := h.svc.Tags.Hot(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", tags)
}

func (h *handler) searchTags(c *gin.Context) {
	tags, err := h.svc.Tags.Search(c.Request.Context(), currentUser(c), c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", tags)
}

func (h *handler) createTag(c *gin.Context) {
	var req tagRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	tag, err := h.svc.Tags.Create(c.Request.Context(), currentUser(c), services.TagInput{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "created", tag)
}

func (h *handler) bulkCreateTags(c *gin.Context) {
	var req bulkTagRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if len(req.Names) == 0 {
		respondError(c, h.logger, apperrors.NewValidationFailed("names", "is required"))
		return
	}
	tags, err := h.svc.Tags.BulkCreate(c.Request.Context(), currentUser(c), req.Names)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "created", gin.H{"created": tags, "count": len(tags)})
}

func (h *handler) getTag(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	tag, err := h.svc.Tags.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", tag)
}

func (h *handler) updateTag(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req tagUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	tag, err := h.svc.Tags.Update(c.Request.Context(), currentUser(c), id, services.TagUpdate{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "updated", tag)
}

func (h *handler) deleteTag(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.svc.Tags.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "deleted", nil)
}
