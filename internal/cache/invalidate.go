package cache

import (
    "encoding/json"
    "errors"
    "io/fs"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"
)

// ClearDir removes the directory and all contents. It recreates the directory
// afterwards to leave a valid empty cache location.
func ClearDir(dir string) error {
    if strings.TrimSpace(dir) == "" {
        return errors.New("empty dir")
    }
    if err := os.RemoveAll(dir); err != nil {
        return err
    }
    return os.MkdirAll(dir, 0o755)
}

// PurgeByAge removes entries saved more than maxAge ago. It reads SavedAt
// from each entry and falls back to the file modification time when the
// entry cannot be decoded.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
    if maxAge <= 0 {
        return 0, nil
    }
    now := time.Now().UTC()
    removed := 0
    err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
        if err != nil {
            return err
        }
        if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
            return nil
        }
        saved := time.Time{}
        if b, err := os.ReadFile(path); err == nil {
            var e Entry
            if json.Unmarshal(b, &e) == nil {
                saved = e.SavedAt
            }
        }
        if saved.IsZero() {
            info, err := d.Info()
            if err != nil {
                return nil
            }
            saved = info.ModTime().UTC()
        }
        if now.Sub(saved) <= maxAge {
            return nil
        }
        removed++
        _ = os.Remove(path)
        return nil
    })
    if errors.Is(err, fs.ErrNotExist) {
        return removed, nil
    }
    return removed, err
}

// EnforceLimits evicts least recently used entries (by modification time,
// which Load refreshes) until the cache holds at most maxBytes bytes and
// maxCount entries. Zero disables a limit.
func EnforceLimits(dir string, maxBytes int64, maxCount int) (int, error) {
    if maxBytes <= 0 && maxCount <= 0 {
        return 0, nil
    }
    type item struct {
        path string
        size int64
        mod  time.Time
    }
    var items []item
    var total int64
    err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
        if err != nil {
            return err
        }
        if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
            return nil
        }
        info, err := d.Info()
        if err != nil {
            return nil
        }
        items = append(items, item{path: path, size: info.Size(), mod: info.ModTime()})
        total += info.Size()
        return nil
    })
    if err != nil && !errors.Is(err, fs.ErrNotExist) {
        return 0, err
    }
    sort.Slice(items, func(i, j int) bool { return items[i].mod.Before(items[j].mod) })
    removed := 0
    count := len(items)
    for _, it := range items {
        overBytes := maxBytes > 0 && total > maxBytes
        overCount := maxCount > 0 && count > maxCount
        if !overBytes && !overCount {
            break
        }
        if err := os.Remove(it.path); err != nil {
            continue
        }
        total -= it.size
        count--
        removed++
    }
    return removed, nil
}
