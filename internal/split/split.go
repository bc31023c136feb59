// Package split streams a large text file into cleaned parts of bounded size.
package split

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/corpusclean/internal/store"
)

const (
	DefaultMaxMB  = 90
	DefaultPrefix = "cleaned"
)

// extraLetters are the Polish diacritics kept besides ASCII.
const extraLetters = "ąćęłńóśźżĄĆĘŁŃÓŚŹŻ"

const punct = `.,:;!?()[]{}"'-`

// Options configure a split.
type Options struct {
	Input     string
	OutputDir string
	// MaxBytes bounds the size of each part. Zero means DefaultMaxMB MiB.
	MaxBytes int64
	Prefix   string
}

// Result lists the parts written.
type Result struct {
	Parts []string
	Lines int
	Bytes int64
}

func keep(r rune) bool {
	switch {
	case r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'):
		return true
	case unicode.IsSpace(r):
		return true
	}
	return strings.ContainsRune(punct, r) || strings.ContainsRune(extraLetters, r)
}

// CleanLine deletes characters outside the kept set and collapses every run
// of whitespace, the line terminator included, into one space.
func CleanLine(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	space := false
	for _, r := range strings.ToValidUTF8(line, "") {
		if !keep(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return b.String()
}

// PartName returns the file name of the n-th part.
func PartName(prefix string, n int) string {
	return fmt.Sprintf("%s_part%03d.txt", prefix, n)
}

type splitter struct {
	opts  Options
	res   Result
	part  int
	cur   *store.File
	name  string
	size  int64
	blank bool
}

// Run splits opts.Input into parts inside opts.OutputDir. A line is never
// divided: a new part starts before the line that would bring the current
// part to the limit.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxMB * 1024 * 1024
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = DefaultPrefix
	}
	in, err := os.Open(opts.Input)
	if err != nil {
		return Result{}, err
	}
	defer in.Close()
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return Result{}, err
	}

	s := &splitter{opts: opts, part: 1, blank: true}
	r := bufio.NewReaderSize(in, 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			s.abort()
			return s.res, err
		}
		line, rerr := r.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			s.abort()
			return s.res, fmt.Errorf("read %s: %w", opts.Input, rerr)
		}
		if line != "" {
			if err := s.add(CleanLine(line)); err != nil {
				s.abort()
				return s.res, err
			}
		}
		if rerr != nil {
			break
		}
	}
	if err := s.finish(); err != nil {
		return s.res, err
	}
	log.Info().Int("parts", len(s.res.Parts)).Int("lines", s.res.Lines).Str("size", humanize.Bytes(uint64(s.res.Bytes))).Msg("split finished")
	return s.res, nil
}

func (s *splitter) add(line string) error {
	n := int64(len(line))
	if s.cur != nil && s.size+n >= s.opts.MaxBytes {
		if err := s.commit(); err != nil {
			return err
		}
		s.part++
	}
	if s.cur == nil {
		s.name = PartName(s.opts.Prefix, s.part)
		f, err := store.Create(filepath.Join(s.opts.OutputDir, s.name), 0o644)
		if err != nil {
			return err
		}
		s.cur, s.size, s.blank = f, 0, true
	}
	if _, err := s.cur.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", s.name, err)
	}
	s.size += n
	s.res.Lines++
	if strings.TrimSpace(line) != "" {
		s.blank = false
	}
	return nil
}

func (s *splitter) commit() error {
	if err := s.cur.Commit(); err != nil {
		return err
	}
	log.Info().Str("file", s.name).Str("size", humanize.Bytes(uint64(s.size))).Msg("part written")
	s.res.Parts = append(s.res.Parts, s.name)
	s.res.Bytes += s.size
	s.cur = nil
	return nil
}

// finish writes the last part unless it holds only whitespace.
func (s *splitter) finish() error {
	if s.cur == nil {
		return nil
	}
	if s.blank {
		s.abort()
		return nil
	}
	return s.commit()
}

func (s *splitter) abort() {
	if s.cur != nil {
		s.cur.Abort()
		s.cur = nil
	}
}
