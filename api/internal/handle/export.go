package handle

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"profeic/api/internal/decode"
	"profeic/api/internal/decode/schemas"
	"profeic/api/internal/render"
)

const maxDecodeBody = 1 << 20

// Decode runs raw model text through the decoder for kind. The body is the
// text itself, not JSON.
func (h *Handle) Decode(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDecodeBody+1))
	if err != nil {
		badRequest(c, err)
		return
	}
	if len(body) > maxDecodeBody {
		respondError(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Errorf("body exceeds %d bytes", maxDecodeBody))
		return
	}
	rec, err := h.gen.Decode(c.Param("kind"), string(body))
	if err != nil {
		respondFailure(c, err, http.StatusUnprocessableEntity)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type ExportMeta struct {
	Institution string `json:"institution"`
	Subject     string `json:"subject"`
	Grade       string `json:"grade"`
	Author      string `json:"author"`
	Date        string `json:"date"`
}

type ExportRequest struct {
	Content map[string]any `json:"content" binding:"required"`
	Meta    ExportMeta     `json:"meta"`
}

// Export re-normalizes edited content through the kind's descriptor and
// returns it as a document.
func (h *Handle) Export(c *gin.Context) {
	kind := c.Param("kind")
	format, err := render.ParseFormat(c.Query("format"))
	if err != nil {
		badRequest(c, err)
		return
	}
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, ok := schemas.Lookup(kind)
	if !ok {
		respondError(c, http.StatusNotFound, "unknown_kind", fmt.Errorf("unknown document kind %q", kind))
		return
	}
	rec, err := decode.Normalize(req.Content, d)
	if err != nil {
		respondFailure(c, err, http.StatusUnprocessableEntity)
		return
	}

	meta := render.Meta(req.Meta)
	if meta.Institution == "" {
		meta.Institution = h.institution
	}
	if meta.Date == "" {
		meta.Date = time.Now().Format("02-01-2006")
	}
	out, err := render.Render(kind, rec, meta, format)
	if err != nil {
		respondFailure(c, err, 0)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, fileStem(kind, rec), format))
	c.Data(http.StatusOK, format.ContentType(), out)
}

// fileStem builds an ASCII file name from the kind and the first words of the title.
func fileStem(kind string, rec decode.Record) string {
	d, _ := schemas.Lookup(kind)
	title := ""
	for _, name := range d.Required() {
		if t := rec.Text(name); t != "" {
			title = t
			break
		}
	}
	if plain, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title); err == nil {
		title = plain
	}
	var b strings.Builder
	b.WriteString(kind)
	words := strings.Fields(title)
	for i, w := range words {
		if i == 4 {
			break
		}
		b.WriteByte('_')
		for _, r := range strings.ToLower(w) {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}
