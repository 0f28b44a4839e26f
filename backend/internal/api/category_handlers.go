package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/services"
)

type categoryCreateRequest struct {
	Name        string `json:"name"`
	ParentID    *int64 `json:"parent_id"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

type categoryUpdateRequest struct {
	Name        *string         `json:"name"`
	ParentID    json.RawMessage `json:"parent_id"`
	Description *string         `json:"description"`
	Color       *string         `json:"color"`
	Icon        *string         `json:"icon"`
	IsActive    *bool           `json:"is_active"`
	SortOrder   *int            `json:"sort_order"`
}

func (h *handler) listCategories(c *gin.Context) {
	all, err := h.svc.Categories.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	page := pageFromQuery(c, constants.DefaultPageSize, constants.MaxPageSize)
	respondOK(c, "success", paginate(c, pageSlice(all, page), page))
}

func (h *handler) allCategories(c *gin.Context) {
	all, err := h.svc.Categories.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", all)
}

func (h *handler) categoryTree(c *gin.Context) {
	tree, err := h.svc.Categories.Tree(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", tree)
}

func (h *handler) rootCategories(c *gin.Context) {
	roots, err := h.svc.Categories.Roots(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", roots)
}

func (h *handler) categoryChildren(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	children, err := h.svc.Categories.Children(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", children)
}

func (h *handler) createCategory(c *gin.Context) {
	var req categoryCreateRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	category, err := h.svc.Categories.Create(c.Request.Context(), currentUser(c), services.CategoryInput{
		Name:        req.Name,
		ParentID:    req.ParentID,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		IsActive:    req.IsActive,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "created", category)
}

func (h *handler) getCategory(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	category, err := h.svc.Categories.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", category)
}

func (h *handler) updateCategory(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req categoryUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	set, parentID, err := nullableID(req.ParentID, "parent_id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	category, err := h.svc.Categories.Update(c.Request.Context(), currentUser(c), id, services.CategoryUpdate{
		Name:        req.Name,
		ParentSet:   set,
		ParentID:    parentID,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		IsActive:    req.IsActive,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "updated", category)
}

func (h *handler) deleteCategory(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.svc.Categories.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "deleted", nil)
}

// pageSlice cuts one page out of an in-memory list
func pageSlice[T any](all []T, page models.Page) *models.Paginated[T] {
	start := page.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return &models.Paginated[T]{Count: int64(len(all)), Results: all[start:end]}
}
