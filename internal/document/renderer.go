// Package document wraps the PDF rendering primitive used by the extractor.
// It yields per-page plain text plus cell grids recovered from the text
// layout, so the extractor never talks to mupdf directly.
package document

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// Page holds the extracted content of a single document page.
type Page struct {
	Text   string
	Tables [][][]string // each table is rows of cells
}

// Renderer turns raw document bytes into per-page text and table grids.
type Renderer interface {
	RenderPages(data []byte, filename string) ([]Page, error)
}

// FitzRenderer renders PDF documents using mupdf.
type FitzRenderer struct {
	logger *zap.Logger
}

// NewFitzRenderer creates a renderer backed by go-fitz.
func NewFitzRenderer(logger *zap.Logger) *FitzRenderer {
	return &FitzRenderer{logger: logger}
}

// RenderPages extracts text and table grids from a PDF. Non-PDF input and
// unreadable documents return an error; callers fall back to other
// strategies.
func (r *FitzRenderer) RenderPages(data []byte, filename string) ([]Page, error) {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && ext != ".pdf" {
		return nil, fmt.Errorf("unsupported document type: %s", ext)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	r.logger.Debug("Rendering document", zap.String("filename", filename), zap.Int("pages", pageCount))

	pages := make([]Page, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		text, err := doc.Text(pageNum)
		if err != nil {
			r.logger.Warn("Failed to extract page text",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		pages = append(pages, Page{
			Text:   text,
			Tables: TablesFromText(text),
		})
	}

	return pages, nil
}

// cellSeparator matches a tab or a run of two or more spaces, the column
// gaps mupdf leaves between aligned table cells.
var cellSeparator = regexp.MustCompile(`\t|\s{2,}`)

// TablesFromText recovers cell grids from page text by splitting lines on
// column gaps and grouping consecutive multi-cell lines into blocks. A block
// must span at least two rows to count as a table (header plus data).
func TablesFromText(text string) [][][]string {
	var tables [][][]string
	var current [][]string

	flush := func() {
		if len(current) >= 2 {
			tables = append(tables, current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		cells := splitCells(line)
		if len(cells) >= 2 {
			current = append(current, cells)
		} else {
			flush()
		}
	}
	flush()

	return tables
}

func splitCells(line string) []string {
	var cells []string
	for _, cell := range cellSeparator.Split(strings.TrimSpace(line), -1) {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells
}
