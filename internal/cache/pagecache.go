// Package cache keeps extracted page text on disk so that re-running over an
// unchanged corpus skips PDF parsing.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/corpusclean/internal/pdftext"
)

// Entry is the on-disk form of one cached document.
type Entry struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	SavedAt time.Time `json:"saved_at"`
	Pages   []string  `json:"pages"`
}

// PageCache stores entries as <key>.json where key is derived from the
// source path, size and modification time, so an edited file misses.
type PageCache struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600
	// on files.
	StrictPerms bool
}

func (c *PageCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

// KeyFor builds the cache key of a source file.
func KeyFor(path string, info os.FileInfo) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	h := sha256.New()
	h.Write([]byte(abs))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *PageCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Load returns the cached pages of path. A miss is not an error.
func (c *PageCache) Load(path string) ([]string, bool, error) {
	if err := c.ensureDir(); err != nil {
		return nil, false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}
	p := c.pathFor(KeyFor(path, info))
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		// Corrupt entries are treated as misses and overwritten on Save.
		return nil, false, nil
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return e.Pages, true, nil
}

// Save stores pages for path.
func (c *PageCache) Save(path string, pages []string) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	e := Entry{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		SavedAt: time.Now().UTC(),
		Pages:   pages,
	}
	dest := c.pathFor(KeyFor(path, info))
	tmp := dest + ".tmp"
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	if err := json.NewEncoder(f).Encode(&e); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// Source wraps a pdftext.Source with the cache. Only successful
// extractions are stored; cache I/O problems are logged and ignored.
type Source struct {
	Next  pdftext.Source
	Cache *PageCache
}

// Pages implements pdftext.Source.
func (s *Source) Pages(path string) ([]string, error) {
	if s.Cache == nil {
		return s.Next.Pages(path)
	}
	pages, ok, err := s.Cache.Load(path)
	if err != nil {
		log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("page cache read failed")
	}
	if ok {
		log.Debug().Str("file", filepath.Base(path)).Msg("page cache hit")
		return pages, nil
	}
	pages, err = s.Next.Pages(path)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Save(path, pages); err != nil {
		log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("page cache write failed")
	}
	return pages, nil
}
