// Package render lays the text of a directory of PDFs out into one wrapped,
// plain-font PDF with a heading per source file.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/corpusclean/internal/pdftext"
	"github.com/hyperifyio/corpusclean/internal/store"
)

// DefaultOutputName is written inside the input directory when no output is
// given.
const DefaultOutputName = "merged_wrapped.pdf"

// ErrNoInputs is returned when the directory holds no PDF.
var ErrNoInputs = errors.New("no pdf files")

const (
	margin     = 20.0 // mm
	lineHeight = 4.5  // mm
	bodySize   = 10.0
	headSize   = 12.0
)

const allowedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 .,;:!?()[]{}<>\"'-\n\t"

var (
	invisible    = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00A0}]`)
	blankRuns    = regexp.MustCompile(`[ \t]{2,}`)
	manyNewlines = regexp.MustCompile(`\n{3,}`)
)

// Options configure a render.
type Options struct {
	InputDir string
	// Output defaults to DefaultOutputName inside InputDir.
	Output string
	Source pdftext.Source
}

// Result summarizes a render.
type Result struct {
	Output  string
	Files   int
	Skipped int
	Pages   int
}

// Lines cleans text for the core PDF fonts and returns its non-blank lines.
func Lines(text string) []string {
	text = invisible.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(allowedChars, r) {
			return r
		}
		return ' '
	}, text)
	text = blankRuns.ReplaceAllString(text, " ")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimRight(strings.ReplaceAll(ln, "\t", " "), " ")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		out = append(out, ln)
	}
	return out
}

// List returns the PDFs directly inside dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Run renders every PDF of opts.InputDir into opts.Output. Files whose text
// cannot be extracted are logged and skipped.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Output == "" {
		opts.Output = filepath.Join(opts.InputDir, DefaultOutputName)
	}
	if opts.Source == nil {
		opts.Source = &pdftext.Reader{}
	}
	res := Result{Output: opts.Output}
	files, err := List(opts.InputDir)
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", opts.InputDir, err)
	}
	absOut, _ := filepath.Abs(opts.Output)
	kept := files[:0]
	for _, f := range files {
		if abs, _ := filepath.Abs(f); abs != absOut {
			kept = append(kept, f)
		}
	}
	files = kept
	if len(files) == 0 {
		return res, fmt.Errorf("%w in %s", ErrNoInputs, opts.InputDir)
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(true, margin)
	doc.SetCompression(true)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	pageW, _ := doc.GetPageSize()
	width := pageW - 2*margin
	doc.AddPage()

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := filepath.Base(path)
		pages, err := opts.Source.Pages(path)
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("skipping pdf")
			res.Skipped++
			continue
		}
		var nonBlank []string
		for _, p := range pages {
			if strings.TrimSpace(p) != "" {
				nonBlank = append(nonBlank, p)
			}
		}
		lines := Lines(strings.Join(nonBlank, "\n"))
		if len(lines) == 0 {
			log.Warn().Str("file", name).Msg("no text to render")
			res.Skipped++
			continue
		}
		doc.SetFont("Helvetica", "B", headSize)
		doc.CellFormat(0, lineHeight+1, tr("### "+name), "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", bodySize)
		for _, ln := range lines {
			for _, wrapped := range doc.SplitLines([]byte(ln), width) {
				doc.CellFormat(0, lineHeight, string(wrapped), "", 1, "L", false, 0, "")
			}
		}
		res.Files++
		log.Debug().Str("file", name).Int("lines", len(lines)).Msg("rendered")
	}
	if err := doc.Error(); err != nil {
		return res, fmt.Errorf("render: %w", err)
	}
	res.Pages = doc.PageNo()

	out, err := store.Create(opts.Output, 0o644)
	if err != nil {
		return res, err
	}
	if err := doc.Output(out); err != nil {
		out.Abort()
		return res, fmt.Errorf("write %s: %w", opts.Output, err)
	}
	if err := out.Commit(); err != nil {
		return res, err
	}
	log.Info().Int("files", res.Files).Int("skipped", res.Skipped).Int("pages", res.Pages).Str("out", opts.Output).Msg("render finished")
	return res, nil
}
