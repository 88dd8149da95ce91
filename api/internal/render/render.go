// Package render prints decoded records as Word, PDF or plain text.
package render

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"profeic/api/internal/decode"
	"profeic/api/internal/decode/schemas"
)

type Format string

const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

var ErrUnknownKind = errors.New("render: unknown kind")

// ParseFormat accepts docx, pdf and txt in any case. Empty means docx.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatDOCX, nil
	case FormatDOCX, FormatPDF, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("render: unsupported format %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	}
	return "text/plain; charset=utf-8"
}

// Meta is the document header.
type Meta struct {
	Institution string
	Subject     string
	Grade       string
	Author      string
	Date        string
}

func (m Meta) line() string {
	var parts []string
	if m.Subject != "" {
		parts = append(parts, "Asignatura: "+m.Subject)
	}
	if m.Grade != "" {
		parts = append(parts, "Nivel: "+m.Grade)
	}
	if m.Author != "" {
		parts = append(parts, "Docente: "+m.Author)
	}
	if m.Date != "" {
		parts = append(parts, m.Date)
	}
	return strings.Join(parts, " | ")
}

// Render lays rec out using the descriptor of kind and encodes it as format.
func Render(kind string, rec decode.Record, meta Meta, format Format) ([]byte, error) {
	sch, ok := schemas.Builtin().Schema(kind)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	doc := Layout(sch.Title, sch.Descriptor, rec, meta)
	switch format {
	case FormatDOCX:
		return writeDOCX(doc)
	case FormatPDF:
		return writePDF(doc)
	case FormatText:
		return []byte(PlainText(doc)), nil
	}
	return nil, fmt.Errorf("render: unsupported format %q", format)
}

type blockKind int

const (
	blockTitle blockKind = iota
	blockHeader
	blockHeading
	blockLabelled
	blockBullet
)

type block struct {
	kind  blockKind
	label string
	text  string
	level int
}

// Document is the format-neutral layout shared by every writer.
type Document struct {
	Title  string
	blocks []block
}

var labelCaser = cases.Title(language.Spanish)

// Label turns a canonical field name into a printable heading.
func Label(name string) string {
	return labelCaser.String(strings.ReplaceAll(name, "_", " "))
}

var (
	displayMath = regexp.MustCompile(`\$\$(.*?)\$\$`)
	inlineMath  = regexp.MustCompile(`\$([^$\n]+)\$`)
)

// StripLatex removes math delimiters and backslashes so formulas print as text.
func StripLatex(s string) string {
	s = displayMath.ReplaceAllString(s, "$1")
	s = inlineMath.ReplaceAllString(s, "$1")
	return strings.ReplaceAll(s, `\`, "")
}

// Layout walks d in field order. The first required string field becomes the title.
func Layout(fallbackTitle string, d *decode.Descriptor, rec decode.Record, meta Meta) *Document {
	doc := &Document{Title: fallbackTitle}
	titleField := ""
	for _, f := range d.Fields() {
		if f.Shape == decode.ShapeString && f.Required {
			if t := strings.TrimSpace(rec.Text(f.Name)); t != "" {
				doc.Title = StripLatex(t)
				titleField = f.Name
			}
			break
		}
	}
	doc.add(block{kind: blockTitle, text: doc.Title})
	if meta.Institution != "" {
		doc.add(block{kind: blockHeader, text: meta.Institution})
	}
	if l := meta.line(); l != "" {
		doc.add(block{kind: blockHeader, text: l})
	}
	doc.fields(d, rec, titleField, 1)
	return doc
}

func (doc *Document) add(b block) { doc.blocks = append(doc.blocks, b) }

func (doc *Document) fields(d *decode.Descriptor, rec decode.Record, skip string, level int) {
	for _, f := range d.Fields() {
		if f.Name == skip {
			continue
		}
		v, ok := rec[f.Name]
		if !ok || v == nil {
			continue
		}
		label := Label(f.Name)
		switch x := v.(type) {
		case string:
			if x = strings.TrimSpace(x); x != "" {
				doc.add(block{kind: blockLabelled, label: label, text: StripLatex(x), level: level})
			}
		case int:
			doc.add(block{kind: blockLabelled, label: label, text: strconv.Itoa(x), level: level})
		case float64:
			doc.add(block{kind: blockLabelled, label: label, text: strconv.FormatFloat(x, 'f', -1, 64), level: level})
		case bool:
			doc.add(block{kind: blockLabelled, label: label, text: yesNo(x), level: level})
		case []string:
			if len(x) == 0 {
				continue
			}
			doc.add(block{kind: blockHeading, text: label, level: level})
			for _, s := range x {
				doc.add(block{kind: blockBullet, text: StripLatex(s), level: level})
			}
		case map[string]string:
			if len(x) == 0 {
				continue
			}
			doc.add(block{kind: blockHeading, text: label, level: level})
			for _, k := range mapOrder(f.Keys, x) {
				doc.add(block{kind: blockLabelled, label: Label(k), text: StripLatex(x[k]), level: level + 1})
			}
		case decode.Record:
			if f.Item == nil || len(x) == 0 {
				continue
			}
			doc.add(block{kind: blockHeading, text: label, level: level})
			doc.fields(f.Item, x, "", level+1)
		case []decode.Record:
			if f.Item == nil || len(x) == 0 {
				continue
			}
			doc.add(block{kind: blockHeading, text: label, level: level})
			for i, item := range x {
				doc.add(block{kind: blockHeading, text: fmt.Sprintf("%d.", i+1), level: level + 1})
				doc.fields(f.Item, item, "", level+1)
			}
		}
	}
}

func mapOrder(keys []string, m map[string]string) []string {
	if len(keys) > 0 {
		return keys
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
