package handle

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"profeic/api/internal/prompt"
)

// Prompts is the part of prompt.Builder the prompt endpoints use.
type Prompts interface {
	Names() []string
	Save(name, text string) (string, error)
}

type UpdatePromptRequest struct {
	Text string `json:"text" binding:"required"`
}

type UpdatePromptResponse struct {
	OK      bool   `json:"ok"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Updated string `json:"updated"`
}

func (h *Handle) ListPrompts(c *gin.Context) {
	if h.prompts == nil {
		c.JSON(http.StatusOK, gin.H{"names": []string{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"names": h.prompts.Names()})
}

// UpdatePrompt overrides one template under PROMPT_DIR. The next generation
// of that kind uses it.
func (h *Handle) UpdatePrompt(c *gin.Context) {
	if h.prompts == nil {
		respondError(c, http.StatusServiceUnavailable, "prompts_read_only", prompt.ErrReadOnly)
		return
	}
	var req UpdatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	name := c.Param("name")
	path, err := h.prompts.Save(name, req.Text)
	switch {
	case errors.Is(err, prompt.ErrUnknownTemplate):
		respondError(c, http.StatusNotFound, "unknown_prompt", err)
		return
	case errors.Is(err, prompt.ErrReadOnly):
		respondError(c, http.StatusServiceUnavailable, "prompts_read_only", err)
		return
	case err != nil:
		badRequest(c, err)
		return
	}
	h.log.Info("prompt updated", "name", name, "size", len(req.Text), "request_id", c.GetString(ctxRequestID))
	c.JSON(http.StatusOK, UpdatePromptResponse{
		OK:      true,
		Name:    name,
		Path:    path,
		Size:    len(req.Text),
		Updated: time.Now().UTC().Format(time.RFC3339),
	})
}
