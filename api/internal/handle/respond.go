package handle

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"profeic/api/internal/decode"
	"profeic/api/internal/generate"
	"profeic/api/internal/llm"
	"profeic/api/internal/render"
	"profeic/api/internal/store"
)

type APIError struct {
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Field   string   `json:"field,omitempty"`
	Keys    []string `json:"keys,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	body := APIError{Message: msg, Code: code}
	var f *decode.Failure
	if errors.As(err, &f) {
		body.Field = f.Field
		body.Keys = f.Keys
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "bad_request", err)
}

// respondFailure maps errors from generation, decoding and storage.
// Decode failures of model output are the upstream's fault (502); the same
// failures on caller-supplied content use clientStatus.
func respondFailure(c *gin.Context, err error, clientStatus int) {
	var f *decode.Failure
	switch {
	case errors.As(err, &f):
		status := http.StatusBadGateway
		if clientStatus != 0 {
			status = clientStatus
		}
		respondError(c, status, f.Kind.String(), err)
	case errors.Is(err, generate.ErrUnknownKind), errors.Is(err, render.ErrUnknownKind):
		respondError(c, http.StatusNotFound, "unknown_kind", err)
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "timeout", err)
	case llm.IsTransient(err):
		respondError(c, http.StatusServiceUnavailable, "llm_unavailable", err)
	default:
		var le *llm.Error
		if errors.As(err, &le) || errors.Is(err, llm.ErrEmptyResponse) {
			respondError(c, http.StatusBadGateway, "llm_error", err)
			return
		}
		respondError(c, http.StatusInternalServerError, "internal", err)
	}
}
