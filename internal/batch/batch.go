// Package batch groups cleaned documents into output files so that the number
// of files never exceeds a fixed cap, raising its per-group limits as the run
// progresses when the remaining input would not otherwise fit.
package batch

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/corpusclean/internal/budget"
)

const (
	DefaultMaxGroups   = 300
	DefaultInitChars   = 1_300_000
	DefaultInitDocs    = 25
	DefaultMinChars    = 1500
	DefaultGrowth      = 1.25
	DefaultFilePattern = "group_%04d.txt"
)

// ErrInvalidConfig reports limits an Accumulator cannot work with.
var ErrInvalidConfig = errors.New("invalid batch config")

// Config holds the starting limits of an Accumulator.
type Config struct {
	MaxGroups   int
	InitChars   int
	InitDocs    int
	MinChars    int
	Growth      float64
	FilePattern string
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxGroups:   DefaultMaxGroups,
		InitChars:   DefaultInitChars,
		InitDocs:    DefaultInitDocs,
		MinChars:    DefaultMinChars,
		Growth:      DefaultGrowth,
		FilePattern: DefaultFilePattern,
	}
}

// Validate checks that cfg describes a usable accumulator.
func (cfg Config) Validate() error {
	switch {
	case cfg.MaxGroups < 1:
		return fmt.Errorf("%w: max groups must be at least 1, got %d", ErrInvalidConfig, cfg.MaxGroups)
	case cfg.InitChars < 1:
		return fmt.Errorf("%w: initial chars must be positive, got %d", ErrInvalidConfig, cfg.InitChars)
	case cfg.InitDocs < 1:
		return fmt.Errorf("%w: initial docs must be positive, got %d", ErrInvalidConfig, cfg.InitDocs)
	case cfg.MinChars < 0:
		return fmt.Errorf("%w: min chars must not be negative, got %d", ErrInvalidConfig, cfg.MinChars)
	case cfg.Growth < 1:
		return fmt.Errorf("%w: growth must be at least 1, got %g", ErrInvalidConfig, cfg.Growth)
	case !strings.Contains(cfg.FilePattern, "%"):
		return fmt.Errorf("%w: file pattern %q has no index verb", ErrInvalidConfig, cfg.FilePattern)
	case strings.Contains(fmt.Sprintf(cfg.FilePattern, 1), "%!"):
		return fmt.Errorf("%w: file pattern %q does not format a single integer index", ErrInvalidConfig, cfg.FilePattern)
	}
	return nil
}

// Group is one flushed batch.
type Group struct {
	Index int
	File  string
	Names []string
	// Chars is the body length before residual lines were stripped.
	Chars int
	Body  string
}

// Sink persists written groups.
type Sink interface {
	WriteGroup(g Group) error
}

// Residual reports lines that must not survive into a written group.
type Residual interface {
	Residual(line string) bool
}

// Stats is a snapshot of the accumulator state.
type Stats struct {
	Processed int
	Written   int
	// Discarded groups carry no Body.
	Discarded []Group
	MaxChars  int
	MaxDocs   int
	Index     int
}

// Accumulator buffers cleaned documents and flushes them as groups.
type Accumulator struct {
	cfg      Config
	total    int
	sink     Sink
	residual Residual

	texts []string
	names []string
	chars int

	index     int
	maxChars  int
	maxDocs   int
	processed int
	written   int
	discarded []Group
}

// New returns an Accumulator for a run over total documents. residual may be
// nil, in which case flushed bodies are written as assembled.
func New(cfg Config, total int, sink Sink, residual Residual) (*Accumulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrInvalidConfig)
	}
	return &Accumulator{
		cfg:      cfg,
		total:    total,
		sink:     sink,
		residual: residual,
		index:    1,
		maxChars: cfg.InitChars,
		maxDocs:  cfg.InitDocs,
	}, nil
}

// Ingest adds one cleaned document. Empty text counts as processed but is
// otherwise ignored. The buffer is flushed first when adding text would
// exceed the current limits, unless the last permitted group is being
// filled, which absorbs everything that remains.
func (a *Accumulator) Ingest(name, text string) error {
	a.processed++
	if text == "" {
		return nil
	}
	n := utf8.RuneCountInString(text)
	if a.index < a.cfg.MaxGroups && len(a.texts) > 0 {
		if a.chars+n > a.maxChars || len(a.texts)+1 > a.maxDocs {
			if err := a.flush(); err != nil {
				return err
			}
		}
	}
	a.texts = append(a.texts, text)
	a.names = append(a.names, name)
	a.chars += n
	a.adapt()
	return nil
}

// Finalize flushes whatever is still buffered.
func (a *Accumulator) Finalize() error {
	if len(a.texts) == 0 {
		return nil
	}
	return a.flush()
}

// Stats returns the current counters and limits.
func (a *Accumulator) Stats() Stats {
	return Stats{
		Processed: a.processed,
		Written:   a.written,
		Discarded: append([]Group(nil), a.discarded...),
		MaxChars:  a.maxChars,
		MaxDocs:   a.maxDocs,
		Index:     a.index,
	}
}

// adapt raises the limits when the documents still to come would need more
// groups than are left at the current per-group document limit.
func (a *Accumulator) adapt() {
	slots := a.cfg.MaxGroups - a.index + 1
	remaining := a.total - a.processed
	if slots <= 0 || remaining <= a.maxDocs*slots {
		return
	}
	a.maxDocs = (remaining + slots - 1) / slots
	a.maxChars = int(float64(a.maxChars) * a.cfg.Growth)
	log.Debug().Int("maxDocs", a.maxDocs).Int("maxChars", a.maxChars).Int("slots", slots).Int("remaining", remaining).Msg("batch limits raised")
}

func (a *Accumulator) flush() error {
	g := Group{
		Index: a.index,
		File:  fmt.Sprintf(a.cfg.FilePattern, a.index),
		Names: a.names,
	}
	body := strings.Join(a.texts, "\n\n")
	g.Chars = utf8.RuneCountInString(body)

	a.texts, a.names, a.chars = nil, nil, 0
	a.index++

	if g.Chars < a.cfg.MinChars {
		log.Warn().Int("group", g.Index).Int("docs", len(g.Names)).Int("chars", g.Chars).Int("min", a.cfg.MinChars).Msg("group too small, discarded")
		a.discarded = append(a.discarded, g)
		return nil
	}

	g.Body = a.stripResidual(body)
	if err := a.sink.WriteGroup(g); err != nil {
		return fmt.Errorf("write group %d: %w", g.Index, err)
	}
	a.written++
	log.Info().
		Str("file", g.File).
		Int("docs", len(g.Names)).
		Int("chars", g.Chars).
		Str("size", humanize.Bytes(uint64(len(g.Body)))).
		Int("tokens", budget.EstimateTokens(g.Body)).
		Msg("group written")
	return nil
}

func (a *Accumulator) stripResidual(body string) string {
	if a.residual == nil {
		return body
	}
	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if a.residual.Residual(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.Join(kept, "\n")
}
