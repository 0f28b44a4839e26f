package api

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/services"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
)

type noteCreateRequest struct {
	Title         string               `json:"title"`
	Slug          string               `json:"slug"`
	Content       string               `json:"content"`
	ContentFormat models.ContentFormat `json:"content_format"`
	CoverImage    string               `json:"cover_image"`
	CategoryID    *int64               `json:"category_id"`
	TagIDs        []int64              `json:"tag_ids"`
	IsPinned      bool                 `json:"is_pinned"`
}

type noteUpdateRequest struct {
	Title         *string               `json:"title"`
	Content       *string               `json:"content"`
	ContentFormat *models.ContentFormat `json:"content_format"`
	CoverImage    *string               `json:"cover_image"`
	// CategoryID distinguishes an explicit null from an absent field
	CategoryID json.RawMessage `json:"category_id"`
	TagIDs     *[]int64        `json:"tag_ids"`
	IsPinned   *bool           `json:"is_pinned"`
}

type tagIDsRequest struct {
	TagIDs []int64 `json:"tag_ids"`
}

// nullableID decodes an optional, nullable id field. set is false when the
// field was absent.
func nullableID(raw json.RawMessage, field string) (set bool, id *int64, err error) {
	if len(raw) == 0 {
		return false, nil, nil
	}
	if string(raw) == "null" {
		return true, nil, nil
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, nil, apperrors.NewValidationFailed(field, "must be an integer or null")
	}
	return true, &v, nil
}

func (h *handler) noteID(c *gin.Context) (int64, bool) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return 0, false
	}
	return id, true
}

func (h *handler) listNotes(c *gin.Context) {
	filter := store.NoteFilter{Archived: c.Query("archived") == "true"}
	var err error
	if filter.CategoryID, err = optionalID(c, "category"); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if filter.TagID, err = optionalID(c, "tag"); err != nil {
		respondError(c, h.logger, err)
		return
	}
	filter.Ordering = c.Query("ordering")
	if filter.Ordering == "" {
		filter.Ordering = c.Query("order")
	}
	h.respondNotePage(c, filter)
}

func (h *handler) archivedNotes(c *gin.Context) {
	h.respondNotePage(c, store.NoteFilter{Archived: true, Ordering: "-updated_at"})
}

func (h *handler) respondNotePage(c *gin.Context, filter store.NoteFilter) {
	page := pageFromQuery(c, constants.NoteDefaultPageSize, constants.NoteMaxPageSize)
	notes, err := h.svc.Notes.List(c.Request.Context(), currentUser(c), filter, page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", paginate(c, notes, page))
}

func (h *handler) createNote(c *gin.Context) {
	var req noteCreateRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	note, err := h.svc.Notes.Create(c.Request.Context(), currentUser(c), services.NoteInput{
		Title:         req.Title,
		Slug:          req.Slug,
		Content:       req.Content,
		ContentFormat: req.ContentFormat,
		CoverImage:    req.CoverImage,
		CategoryID:    req.CategoryID,
		TagIDs:        req.TagIDs,
		IsPinned:      req.IsPinned,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "created", note)
}

func (h *handler) getNote(c *gin.Context) {
	id, ok := h.noteID(c)
	if !ok {
		return
	}
	note, err := h.svc.Notes.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", note)
}

func (h *handler) noteContent(c *gin.Context) {
	id, ok := h.noteID(c)
	if !ok {
		return
	}
	note, err := h.svc.Notes.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", gin.H{"content": note.Content, "content_format": note.ContentFormat})
}

func (h *handler) updateNote(c *gin.Context) {
	id, ok := h.noteID(c)
	if !ok {
		return
	}
	var req noteUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	set, categoryID, err := nullableID(req.CategoryID, "category_id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	note, err := h.svc.Notes.Update(c.Request.Context(), currentUser(c), id, services.NoteUpdate{
		Title:         req.Title,
		Content:       req.Content,
		ContentFormat: req.ContentFormat,
		CoverImage:    req.CoverImage,
		CategorySet:   set,
		CategoryID:    categoryID,
		TagIDs:        req.TagIDs,
		IsPinned:      req.IsPinned,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "updated", note)
}

func (h *handler) deleteNote(c *gin.Context) {
	id, ok := h.noteID(c)
	if !ok {
		return
	}
	if err := h.svc.Notes.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "deleted", nil)
}

func (h *handler) searchNotes(c *gin.Context) {
	page := pageFromQuery(c, constants.NoteDefaultPageSize, constants.NoteMaxPageSize)
	notes, err := h.svc.Notes.Search(c.Request.Context(), currentUser(c), c.Query("q"), page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", paginate(c, notes, page))
}

func (h *handler) noteSuggestions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	refs, err := h.svc.Notes.Suggestions(c.Request.Context(), currentUser(c), c.Query("q"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", refs)
}

func (h *handler) recentNotes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	notes, err := h.svc.Notes.Recent(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", notes)
}

// noteAction adapts a flag operation on one note into a handler
func (h *handler) noteAction(message string, op func(c *gin.Context, owner, id int64) (*models.Note, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.noteID(c)
		if !ok {
			return
		}
		note, err := op(c, currentUser(c), id)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		respondOK(c, message, note)
	}
}

func (h *handler) archiveNote() gin.HandlerFunc {
	return h.noteAction("archived", func(c *gin.Context, owner, id int64) (*models.Note, error) {
		return h.svc.Notes.Archive(c.Request.Context(), owner, id)
	})
}

func (h *handler) unarchiveNote() gin.HandlerFunc {
	return h.noteAction("unarchived", func(c *gin.Context, owner, id int64) (*models.Note, error) {
		return h.svc.Notes.Unarchive(c.Request.Context(), owner, id)
	})
}

func (h *handler) pinNote() gin.HandlerFunc {
	return h.noteAction("pin toggled", func(c *gin.Context, owner, id int64) (*models.Note, error) {
		return h.svc.Notes.TogglePin(c.Request.Context(), owner, id)
	})
}

func (h *handler) incrementNoteView(c *gin.Context) {
	id, ok := h.noteID(c)
	if !ok {
		return
	}
	views, err := h.svc.Notes.IncrementView(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "view counted", gin.H{"view_count": views})
}

// noteTags handles PUT (replace), POST (add) and DELETE (remove the listed
// tags, or all of them when none are listed)
func (h *handler) noteTags(c *gin.Context) {
	id, ok := h.noteID(c)
	if !ok {
		return
	}
	var req tagIDsRequest
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	ctx, owner := c.Request.Context(), currentUser(c)
	var (
		note *models.Note
		err  error
	)
	switch c.Request.Method {
	case "PUT":
		note, err = h.svc.Notes.SetTags(ctx, owner, id, req.TagIDs)
	case "POST":
		note, err = h.svc.Notes.AddTags(ctx, owner, id, req.TagIDs)
	default:
		if len(req.TagIDs) == 0 {
			note, err = h.svc.Notes.ClearTags(ctx, owner, id)
		} else {
			note, err = h.svc.Notes.RemoveTags(ctx, owner, id, req.TagIDs)
		}
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "tags updated", note)
}
