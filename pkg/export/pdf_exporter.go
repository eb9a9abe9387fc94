package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a basic tabular PDF, landscape A4
// with evenly split columns.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with a title, table body and generation footer.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, errors.New("pdf requires at least one header")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pageWidth, _ := pdf.GetPageSize()
	colWidth := (pageWidth - 20) / float64(len(data.Headers))

	writeRow := func(height float64, align string, cells func(header string) string) {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, height, cells(header), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	writeRow(8, "C", func(header string) string { return header })

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		row := row
		writeRow(7, "", func(header string) string { return row[header] })
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	stamp := time.Now().UTC().Format("2006-01-02 15:04 MST")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", stamp), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
