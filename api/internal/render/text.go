package render

import (
	"strings"

	"profeic/api/internal/decode"
	"profeic/api/internal/decode/schemas"
)

// PlainText prints doc for chat clients: no markup, two spaces per level.
func PlainText(doc *Document) string {
	var b strings.Builder
	for _, bl := range doc.blocks {
		indent := strings.Repeat("  ", max(bl.level-1, 0))
		switch bl.kind {
		case blockTitle:
			b.WriteString(strings.ToUpper(bl.text))
			b.WriteString("\n")
		case blockHeader:
			b.WriteString(bl.text)
			b.WriteString("\n")
		case blockHeading:
			b.WriteString("\n")
			b.WriteString(indent + bl.text + "\n")
		case blockLabelled:
			b.WriteString(indent + bl.label + ": " + bl.text + "\n")
		case blockBullet:
			b.WriteString(indent + "• " + bl.text + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Text renders rec as plain text, or "" for an unknown kind.
func Text(kind string, rec decode.Record) string {
	sch, ok := schemas.Builtin().Schema(kind)
	if !ok {
		return ""
	}
	return PlainText(Layout(sch.Title, sch.Descriptor, rec, Meta{}))
}
