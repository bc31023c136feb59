// Package pdftext reads the text layer of PDF files page by page.
//
// It uses github.com/ledongthuc/pdf. Only embedded text is read; scanned
// (image-only) PDFs yield empty pages.
package pdftext

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// ErrExtraction marks a document whose text could not be read. Callers skip
// such documents.
var ErrExtraction = errors.New("pdf extraction failed")

// Source returns the ordered page texts of the document at path.
type Source interface {
	Pages(path string) ([]string, error)
}

// Reader is the ledongthuc/pdf backed Source.
type Reader struct {
	// RowTolerance is the vertical distance, in points, under which glyphs
	// are placed on the same line. Defaults to 1.
	RowTolerance float64
}

var _ Source = (*Reader)(nil)

// Pages opens path, reads every page and closes the file before returning.
// Any failure, including a panic inside the PDF parser, is reported as
// ErrExtraction.
func (r *Reader) Pages(path string) (pages []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: %v", ErrExtraction, path, rec)
		}
	}()
	f, doc, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrExtraction, path, err)
	}
	defer f.Close()

	n := doc.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := doc.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, r.pageText(p))
	}
	return pages, nil
}

// pageText rebuilds the lines of a page from positioned glyphs: glyphs are
// grouped into rows by their baseline, rows run top to bottom and glyphs
// left to right. A space is inserted where a horizontal gap separates two
// glyphs that carry no whitespace themselves.
func (r *Reader) pageText(p pdf.Page) string {
	tol := r.RowTolerance
	if tol <= 0 {
		tol = 1
	}
	glyphs := make([]pdf.Text, 0, 256)
	for _, t := range p.Content().Text {
		if t.S == "" || t.S == "\n" {
			continue
		}
		glyphs = append(glyphs, t)
	}
	if len(glyphs) == 0 {
		return ""
	}
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].Y > glyphs[j].Y })

	var rows [][]pdf.Text
	for _, g := range glyphs {
		last := len(rows) - 1
		if last >= 0 && math.Abs(rows[last][0].Y-g.Y) < tol {
			rows[last] = append(rows[last], g)
			continue
		}
		rows = append(rows, []pdf.Text{g})
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		var b strings.Builder
		for i, g := range row {
			if i > 0 {
				prev := row[i-1]
				gap := g.X - (prev.X + prev.W)
				if gap > 0.2*g.FontSize && !endsWithSpace(prev.S) && !startsWithSpace(g.S) {
					b.WriteByte(' ')
				}
			}
			b.WriteString(g.S)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func endsWithSpace(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)
	return unicode.IsSpace(r[len(r)-1])
}

func startsWithSpace(s string) bool {
	for _, r := range s {
		return unicode.IsSpace(r)
	}
	return false
}
