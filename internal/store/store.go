// Package store writes group files and the run manifest. Every file is
// written through a temporary file in the destination directory that is
// synced and renamed into place, so readers never observe a partial file.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/corpusclean/internal/batch"
	"github.com/hyperifyio/corpusclean/internal/budget"
)

// ErrPathInvalid is returned for file names that would escape the directory.
var ErrPathInvalid = errors.New("invalid output path")

// Dir is an output directory.
type Dir struct {
	Root string
	// PermFile and PermDir default to 0644 and 0755.
	PermFile os.FileMode
	PermDir  os.FileMode
}

// Ensure creates the directory when it does not exist.
func (d *Dir) Ensure() error {
	if d == nil || strings.TrimSpace(d.Root) == "" {
		return errors.New("output dir not configured")
	}
	return os.MkdirAll(d.Root, d.permDir())
}

// Path maps a flat file name into the directory.
func (d *Dir) Path(name string) (string, error) {
	base := filepath.Base(filepath.Clean(name))
	if base != name || base == "." || base == ".." || base == "" {
		return "", fmt.Errorf("%w: %q", ErrPathInvalid, name)
	}
	return filepath.Join(d.Root, base), nil
}

// WriteFile atomically replaces name inside the directory with data.
func (d *Dir) WriteFile(name string, data []byte) error {
	dest, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := d.Ensure(); err != nil {
		return err
	}
	return WriteAtomic(dest, data, d.permFile())
}

func (d *Dir) permFile() os.FileMode {
	if d.PermFile == 0 {
		return 0o644
	}
	return d.PermFile
}

func (d *Dir) permDir() os.FileMode {
	if d.PermDir == 0 {
		return 0o755
	}
	return d.PermDir
}

// WriteAtomic writes data to a temporary file next to dest, syncs it and
// renames it over dest. The temporary file is removed on any failure.
func WriteAtomic(dest string, data []byte, perm os.FileMode) error {
	f, err := Create(dest, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}
	return f.Commit()
}

// File is an output file that only appears under its final name once
// Commit succeeds.
type File struct {
	dest string
	perm os.FileMode
	tmp  *os.File
	w    *bufio.Writer
}

// Create opens a temporary file in the directory of dest.
func Create(dest string, perm os.FileMode) (*File, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	return &File{dest: dest, perm: perm, tmp: tmp, w: bufio.NewWriterSize(tmp, 64*1024)}, nil
}

// Write buffers p.
func (f *File) Write(p []byte) (int, error) { return f.w.Write(p) }

// WriteString buffers s.
func (f *File) WriteString(s string) (int, error) { return f.w.WriteString(s) }

// Abort discards the temporary file.
func (f *File) Abort() {
	_ = f.tmp.Close()
	_ = os.Remove(f.tmp.Name())
}

// Commit flushes, syncs and renames the temporary file over dest.
func (f *File) Commit() error {
	tmpPath := f.tmp.Name()
	fail := func(step string, err error) error {
		f.Abort()
		return fmt.Errorf("%s %s: %w", step, filepath.Base(f.dest), err)
	}
	if err := f.w.Flush(); err != nil {
		return fail("flush", err)
	}
	if err := f.tmp.Chmod(f.perm); err != nil {
		return fail("chmod", err)
	}
	if err := f.tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := f.tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", filepath.Base(f.dest), err)
	}
	if err := os.Rename(tmpPath, f.dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(f.dest), err)
	}
	// Best effort; not every platform can fsync a directory.
	_ = syncDir(filepath.Dir(f.dest))
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// GroupWriter is the batch.Sink that writes group bodies into a Dir and
// records them in a Manifest. The manifest's TokenWindow follows
// GroupWriter.TokenWindow.
type GroupWriter struct {
	Dir      *Dir
	Manifest *Manifest
	// TokenWindow, when positive, is the token budget a group should fit
	// into; larger groups are written with a warning.
	TokenWindow int
}

// WriteGroup implements batch.Sink.
func (w *GroupWriter) WriteGroup(g batch.Group) error {
	if err := w.Dir.WriteFile(g.File, []byte(g.Body)); err != nil {
		return err
	}
	if w.Manifest != nil {
		w.Manifest.TokenWindow = w.TokenWindow
		w.Manifest.AddGroup(g)
	}
	if w.TokenWindow <= 0 {
		return nil
	}
	tokens := budget.EstimateTokens(g.Body)
	if !budget.Fits(w.TokenWindow, tokens) {
		log.Warn().Str("file", g.File).Int("tokens", tokens).Int("window", w.TokenWindow).Msg("group exceeds token window")
		return nil
	}
	log.Debug().Str("file", g.File).Int("tokens", tokens).Int("left", budget.Remaining(w.TokenWindow, tokens)).Msg("group fits token window")
	return nil
}
