package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/corpusclean/internal/batch"
	"github.com/hyperifyio/corpusclean/internal/cache"
	"github.com/hyperifyio/corpusclean/internal/clean"
	"github.com/hyperifyio/corpusclean/internal/pdftext"
	"github.com/hyperifyio/corpusclean/internal/store"
)

// App runs the pdf pipeline: discovery, extraction, cleaning, batching and
// writing.
type App struct {
	cfg     Config
	source  pdftext.Source
	cleaner *clean.Cleaner
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID     string
	Documents int
	Skipped   int
	Written   int
	Discarded int
	Bytes     int64
}

// New validates cfg and prepares the page cache.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{
		cfg:     cfg,
		source:  &pdftext.Reader{},
		cleaner: clean.New(cfg.CleanOptions()),
	}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Info().Int("removed", n).Dur("maxAge", cfg.CacheMaxAge).Msg("cache purged")
			}
		}
		a.source = &cache.Source{
			Next:  a.source,
			Cache: &cache.PageCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms},
		}
	}
	return a, nil
}

// Close enforces the cache size limit.
func (a *App) Close() {
	if a.cfg.CacheDir == "" || a.cfg.CacheMaxBytes <= 0 {
		return
	}
	if n, err := cache.EnforceLimits(a.cfg.CacheDir, a.cfg.CacheMaxBytes, 0); err != nil {
		log.Warn().Err(err).Msg("cache limit enforcement failed")
	} else if n > 0 {
		log.Info().Int("removed", n).Msg("cache entries evicted")
	}
}

// DiscoverPDFs returns every .pdf file under root, matched case-insensitively
// and sorted by path.
func DiscoverPDFs(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
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

// Run processes every PDF under the source directory. Documents that fail
// extraction or clean to nothing are logged, recorded and skipped. A
// cancelled context stops the run between documents without flushing.
func (a *App) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	start := time.Now()
	files, err := DiscoverPDFs(a.cfg.SrcDir)
	if err != nil {
		return sum, fmt.Errorf("%w: %w: %v", ErrConfig, ErrNoSourceDir, err)
	}
	if len(files) == 0 {
		return sum, fmt.Errorf("%w: %w in %s", ErrConfig, ErrNoDocuments, a.cfg.SrcDir)
	}
	sum.Documents = len(files)

	out := &store.Dir{Root: a.cfg.DstDir}
	if err := out.Ensure(); err != nil {
		return sum, fmt.Errorf("create output dir: %w", err)
	}
	manifest := store.NewManifest(a.cfg.Summary())
	manifest.Documents = len(files)
	sum.RunID = manifest.RunID
	sink := &store.GroupWriter{Dir: out, Manifest: manifest, TokenWindow: a.cfg.TokenWindow}
	acc, err := batch.New(a.cfg.BatchConfig(), len(files), sink, a.cleaner.Classifier())
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	log.Info().Str("run", manifest.RunID).Int("documents", len(files)).Str("src", a.cfg.SrcDir).Str("dst", a.cfg.DstDir).Msg("run started")

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			log.Warn().Int("processed", i).Msg("run cancelled")
			return sum, err
		}
		name := filepath.Base(path)
		text, reason := a.document(path)
		if text == "" {
			manifest.AddSkipped(name, reason)
			sum.Skipped++
		}
		if err := acc.Ingest(name, text); err != nil {
			return sum, err
		}
	}
	if err := acc.Finalize(); err != nil {
		return sum, err
	}

	st := acc.Stats()
	manifest.AddDiscarded(st.Discarded...)
	sum.Written = st.Written
	sum.Discarded = len(st.Discarded)
	for _, g := range manifest.Groups {
		sum.Bytes += int64(g.Bytes)
	}
	if a.cfg.Manifest {
		if err := manifest.Write(out); err != nil {
			return sum, err
		}
	}
	log.Info().
		Int("groups", sum.Written).
		Int("discarded", sum.Discarded).
		Int("skipped", sum.Skipped).
		Str("size", humanize.Bytes(uint64(sum.Bytes))).
		Dur("took", time.Since(start)).
		Msg("run finished")
	return sum, nil
}

// document extracts and cleans one PDF. An empty result comes with the
// reason it is empty.
func (a *App) document(path string) (string, string) {
	name := filepath.Base(path)
	pages, err := a.source.Pages(path)
	if err != nil {
		log.Error().Err(err).Str("document", name).Msg("extraction failed")
		if errors.Is(err, pdftext.ErrExtraction) {
			return "", "extraction failed"
		}
		return "", err.Error()
	}
	text := a.cleaner.Document(pages)
	if text == "" {
		log.Warn().Str("document", name).Int("pages", len(pages)).Msg("no text left after cleaning")
		return "", "empty after cleaning"
	}
	log.Debug().Str("document", name).Int("pages", len(pages)).Int("chars", len(text)).Msg("document cleaned")
	return text, ""
}
