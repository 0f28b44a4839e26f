package api

import (
	"github.com/gin-gonic/gin"

	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/services"
	apperrors "knowledge-base/backend/pkg/errors"
)

type linkRequest struct {
	Source      int64          `json:"source"`
	Target      int64          `json:"target"`
	LinkType    graph.LinkKind `json:"link_type"`
	Description string         `json:"description"`
}

type idsRequest struct {
	IDs []int64 `json:"ids"`
}

type linkIDsRequest struct {
	LinkIDs []int64 `json:"link_ids"`
}

func (h *handler) fullGraph(c *gin.Context) {
	view, err := h.svc.Graph.Full(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", view)
}

func (h *handler) relatedGraph(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	view, err := h.svc.Graph.Related(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", view)
}

func (h *handler) listNodes(c *gin.Context) {
	nodes, err := h.svc.Graph.ListNodes(c.Request.Context(), currentUser(c), graph.NodeKind(c.Query("type")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", nodes)
}

func (h *handler) nodesByType(c *gin.Context) {
	if c.Query("type") == "" {
		respondError(c, h.logger, apperrors.NewValidationFailed("type", "is required"))
		return
	}
	h.listNodes(c)
}

func (h *handler) getNode(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	node, err := h.svc.Graph.GetNode(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", node)
}

func (h *handler) listLinks(c *gin.Context) {
	links, err := h.svc.Graph.Links(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", links)
}

func (h *handler) linksByNode(c *gin.Context) {
	id, err := parseID(c.Query("node_id"), "node_id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	links, err := h.svc.Graph.LinksByNode(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", links)
}

func (h *handler) createLink(c *gin.Context) {
	var req linkRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	link, err := h.svc.Graph.CreateLink(c.Request.Context(), currentUser(c), services.LinkRequest{
		SourceID:    req.Source,
		TargetID:    req.Target,
		Kind:        req.LinkType,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "created", link)
}

func (h *handler) deleteLink(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.svc.Graph.DeleteLink(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "deleted", nil)
}

func (h *handler) batchDeleteLinks(c *gin.Context) {
	var req linkIDsRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	deleted, err := h.svc.Graph.BatchDeleteLinks(c.Request.Context(), currentUser(c), req.LinkIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "deleted", gin.H{"deleted_count": deleted})
}
