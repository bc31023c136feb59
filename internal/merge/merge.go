// Package merge concatenates the text files of a directory tree into a single
// file, normalizing line endings and whitespace on the way.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"

	"github.com/hyperifyio/corpusclean/internal/extract"
	"github.com/hyperifyio/corpusclean/internal/store"
)

// ErrNoInputs is returned when the input directory holds no mergeable file.
var ErrNoInputs = errors.New("no input files")

var (
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	blankRuns     = regexp.MustCompile(`[ \t]+`)
	trailingSpace = regexp.MustCompile(` +\n`)
)

// Options select the input tree and output file.
type Options struct {
	InputDir string
	Output   string
}

// Result summarizes a merge.
type Result struct {
	Files   int
	Skipped int
	Bytes   int64
}

// Gather returns the .txt, .html and .htm files under root in sorted order.
func Gather(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".txt", ".html", ".htm":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Decode returns b as text. Invalid UTF-8 is decoded as Windows-1250.
func Decode(b []byte) string {
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.Windows1250.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "")
	}
	return string(out)
}

// Normalize unifies line endings, drops control characters other than
// newline and tab, collapses runs of spaces and tabs, and removes spaces at
// line ends.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlChars.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, " ")
	return trailingSpace.ReplaceAllString(text, "\n")
}

// Run merges opts.InputDir into opts.Output. Files that cannot be read are
// logged and skipped.
func Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	files, err := Gather(opts.InputDir)
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", opts.InputDir, err)
	}
	files = excludeOutput(files, opts.Output)
	if len(files) == 0 {
		return res, fmt.Errorf("%w in %s", ErrNoInputs, opts.InputDir)
	}
	log.Info().Int("files", len(files)).Str("dir", opts.InputDir).Msg("merging")

	out, err := store.Create(opts.Output, 0o644)
	if err != nil {
		return res, err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			out.Abort()
			return res, err
		}
		text, err := readText(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("skipping file")
			res.Skipped++
			continue
		}
		n, err := out.WriteString(Normalize(text) + "\n\n")
		if err != nil {
			out.Abort()
			return res, fmt.Errorf("write %s: %w", opts.Output, err)
		}
		res.Files++
		res.Bytes += int64(n)
		log.Debug().Str("file", path).Int("bytes", n).Msg("merged")
	}
	if err := out.Commit(); err != nil {
		return res, err
	}
	log.Info().Int("files", res.Files).Int("skipped", res.Skipped).Str("size", humanize.Bytes(uint64(res.Bytes))).Str("out", opts.Output).Msg("merge finished")
	return res, nil
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := Decode(b)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		doc, err := extract.FromHTML([]byte(text))
		if err != nil {
			return "", err
		}
		return doc.String(), nil
	}
	return text, nil
}

func excludeOutput(files []string, output string) []string {
	absOut, err := filepath.Abs(output)
	if err != nil {
		return files
	}
	kept := files[:0]
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil && abs == absOut {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
