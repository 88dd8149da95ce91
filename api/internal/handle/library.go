package handle

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"profeic/api/internal/decode/schemas"
	"profeic/api/internal/store"
)

func (h *Handle) requireLibrary(c *gin.Context) {
	if h.lib == nil {
		respondError(c, http.StatusServiceUnavailable, "library_disabled", errors.New("library requires DATABASE_URL"))
		return
	}
	c.Next()
}

func requireUser(c *gin.Context) {
	if strings.TrimSpace(c.GetHeader(headerUserID)) == "" {
		respondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing "+headerUserID))
		return
	}
	c.Next()
}

func userID(c *gin.Context) string { return strings.TrimSpace(c.GetHeader(headerUserID)) }

type SaveResourceRequest struct {
	Kind       string         `json:"kind" binding:"required"`
	Title      string         `json:"title" binding:"required"`
	Subject    string         `json:"subject"`
	Grade      string         `json:"grade"`
	Content    map[string]any `json:"content" binding:"required"`
	IsPublic   bool           `json:"is_public"`
	AuthorName string         `json:"author_name"`
}

func (h *Handle) SaveResource(c *gin.Context) {
	var req SaveResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, ok := schemas.Lookup(req.Kind); !ok {
		respondError(c, http.StatusBadRequest, "unknown_kind", errors.New("unknown document kind "+strconv.Quote(req.Kind)))
		return
	}
	id, err := h.lib.Save(c.Request.Context(), store.Resource{
		UserID:     userID(c),
		Kind:       req.Kind,
		Title:      req.Title,
		Subject:    req.Subject,
		Grade:      req.Grade,
		Content:    req.Content,
		IsPublic:   req.IsPublic,
		AuthorName: req.AuthorName,
	})
	if err != nil {
		respondFailure(c, err, 0)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handle) ListResources(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badRequest(c, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	out, err := h.lib.List(c.Request.Context(), userID(c), c.Query("kind"), limit)
	if err != nil {
		respondFailure(c, err, 0)
		return
	}
	if out == nil {
		out = []store.Resource{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handle) GetResource(c *gin.Context) {
	res, err := h.lib.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondFailure(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PatchResourceRequest changes the title, the content or both.
type PatchResourceRequest struct {
	Title   *string        `json:"title"`
	Content map[string]any `json:"content"`
}

func (h *Handle) PatchResource(c *gin.Context) {
	var req PatchResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Title == nil && req.Content == nil {
		badRequest(c, errors.New("nothing to update"))
		return
	}
	ctx, uid, id := c.Request.Context(), userID(c), c.Param("id")
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			badRequest(c, errors.New("title must not be empty"))
			return
		}
		if err := h.lib.Rename(ctx, uid, id, *req.Title); err != nil {
			respondFailure(c, err, 0)
			return
		}
	}
	if req.Content != nil {
		if err := h.lib.UpdateContent(ctx, uid, id, req.Content); err != nil {
			respondFailure(c, err, 0)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handle) DeleteResource(c *gin.Context) {
	if err := h.lib.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondFailure(c, err, 0)
		return
	}
	c.Status(http.StatusNoContent)
}
