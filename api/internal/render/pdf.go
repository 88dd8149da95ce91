package render

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"
)

const (
	pdfFont    = "Helvetica"
	pdfMargin  = 18.0
	pdfIndent  = 6.0
	lineHeight = 6.0
)

func writePDF(doc *Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	// Core fonts are cp1252; accents and ñ need the translator.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.Title, true)
	pdf.AddPage()

	for _, bl := range doc.blocks {
		left := pdfMargin + pdfIndent*float64(max(bl.level-1, 0))
		pdf.SetX(left)
		switch bl.kind {
		case blockTitle:
			pdf.SetFont(pdfFont, "B", 18)
			pdf.SetTextColor(43, 84, 110)
			pdf.MultiCell(0, 9, tr(bl.text), "", "C", false)
			pdf.SetTextColor(0, 0, 0)
		case blockHeader:
			pdf.SetFont(pdfFont, "I", 10)
			pdf.CellFormat(0, lineHeight, tr(bl.text), "", 1, "R", false, 0, "")
		case blockHeading:
			pdf.Ln(2)
			pdf.SetX(left)
			pdf.SetFont(pdfFont, "B", 13)
			pdf.MultiCell(0, 7, tr(bl.text), "", "L", false)
		case blockLabelled:
			pdf.SetFont(pdfFont, "B", 11)
			label := tr(bl.label + ": ")
			pdf.Write(lineHeight, label)
			pdf.SetFont(pdfFont, "", 11)
			pdf.Write(lineHeight, tr(bl.text))
			pdf.Ln(lineHeight)
		case blockBullet:
			pdf.SetX(left + pdfIndent)
			pdf.SetFont(pdfFont, "", 11)
			pdf.MultiCell(0, lineHeight, tr("- "+bl.text), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return buf.Bytes(), nil
}
