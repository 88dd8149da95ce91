package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

	relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	documentOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	documentClose = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1134" w:right="1134" w:bottom="1134" w:left="1134" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr></w:body></w:document>`

	brandColor = "2B546E"
)

type run struct {
	text   string
	bold   bool
	italic bool
	size   int // half-points, 0 keeps the default
	color  string
}

func writeDOCX(doc *Document) ([]byte, error) {
	var body bytes.Buffer
	body.WriteString(documentOpen)
	for _, bl := range doc.blocks {
		indent := 360 * max(bl.level-1, 0)
		var err error
		switch bl.kind {
		case blockTitle:
			err = paragraph(&body, "center", 0, run{text: bl.text, bold: true, size: 32, color: brandColor})
		case blockHeader:
			err = paragraph(&body, "right", 0, run{text: bl.text, italic: true, size: 20})
		case blockHeading:
			err = paragraph(&body, "", indent, run{text: bl.text, bold: true, size: 26, color: brandColor})
		case blockLabelled:
			err = paragraph(&body, "", indent, run{text: bl.label + ": ", bold: true}, run{text: bl.text})
		case blockBullet:
			err = paragraph(&body, "", indent+360, run{text: "• " + bl.text})
		}
		if err != nil {
			return nil, fmt.Errorf("docx: %w", err)
		}
	}
	body.WriteString(documentClose)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, data string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", body.String()},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("docx %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.data)); err != nil {
			return nil, fmt.Errorf("docx %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx: %w", err)
	}
	return buf.Bytes(), nil
}

func paragraph(b *bytes.Buffer, align string, indent int, runs ...run) error {
	b.WriteString("<w:p>")
	if align != "" || indent > 0 {
		b.WriteString("<w:pPr>")
		if indent > 0 {
			fmt.Fprintf(b, `<w:ind w:left="%d"/>`, indent)
		}
		if align != "" {
			fmt.Fprintf(b, `<w:jc w:val="%s"/>`, align)
		}
		b.WriteString("</w:pPr>")
	}
	for _, r := range runs {
		b.WriteString("<w:r>")
		if r.bold || r.italic || r.size > 0 || r.color != "" {
			b.WriteString("<w:rPr>")
			if r.bold {
				b.WriteString("<w:b/>")
			}
			if r.italic {
				b.WriteString("<w:i/>")
			}
			if r.color != "" {
				fmt.Fprintf(b, `<w:color w:val="%s"/>`, r.color)
			}
			if r.size > 0 {
				fmt.Fprintf(b, `<w:sz w:val="%d"/>`, r.size)
			}
			b.WriteString("</w:rPr>")
		}
		lines := strings.Split(r.text, "\n")
		for i, line := range lines {
			if i > 0 {
				b.WriteString("<w:br/>")
			}
			b.WriteString(`<w:t xml:space="preserve">`)
			if err := xml.EscapeText(b, []byte(line)); err != nil {
				return err
			}
			b.WriteString("</w:t>")
		}
		b.WriteString("</w:r>")
	}
	b.WriteString("</w:p>")
	return nil
}
