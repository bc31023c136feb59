package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyperifyio/corpusclean/internal/batch"
	"github.com/hyperifyio/corpusclean/internal/budget"
)

// ManifestName is the file name of the manifest inside the output directory.
const ManifestName = "manifest.json"

// GroupRecord describes one written group file.
type GroupRecord struct {
	Index      int      `json:"index"`
	File       string   `json:"file"`
	Documents  []string `json:"documents"`
	Chars      int      `json:"chars"`
	Bytes      int      `json:"bytes"`
	Tokens     int      `json:"tokens"`
	SHA256     string   `json:"sha256"`
	// WindowLeft is the token window left after the group and the headroom,
	// zero when no window is set or the group does not fit.
	WindowLeft int `json:"window_left,omitempty"`
}

// DiscardRecord describes a group dropped for being below the size floor.
type DiscardRecord struct {
	Index     int      `json:"index"`
	Documents []string `json:"documents"`
	Chars     int      `json:"chars"`
}

// SkipRecord describes a document that contributed no text.
type SkipRecord struct {
	Document string `json:"document"`
	Reason   string `json:"reason"`
}

// Manifest is a machine-readable record of one run.
type Manifest struct {
	RunID       string          `json:"run_id"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Settings    map[string]any  `json:"settings,omitempty"`
	Documents   int             `json:"documents"`
	Groups      []GroupRecord   `json:"groups"`
	Discarded   []DiscardRecord `json:"discarded"`
	Skipped     []SkipRecord    `json:"skipped"`
	Tokens      int             `json:"tokens"`
	TokenWindow int             `json:"token_window,omitempty"`
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest(settings map[string]any) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Settings:  settings,
		Groups:    []GroupRecord{},
		Discarded: []DiscardRecord{},
		Skipped:   []SkipRecord{},
	}
}

// computeSHA256Hex returns a lowercase hex-encoded SHA-256 of the given text.
func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// AddGroup records a written group.
func (m *Manifest) AddGroup(g batch.Group) {
	tokens := budget.EstimateTokens(g.Body)
	m.Groups = append(m.Groups, GroupRecord{
		Index:      g.Index,
		File:       g.File,
		Documents:  append([]string(nil), g.Names...),
		Chars:      g.Chars,
		Bytes:      len(g.Body),
		Tokens:     tokens,
		WindowLeft: budget.Remaining(m.TokenWindow, tokens),
		SHA256:     computeSHA256Hex(g.Body),
	})
	m.Tokens += tokens
}

// AddDiscarded records groups dropped by the accumulator.
func (m *Manifest) AddDiscarded(groups ...batch.Group) {
	for _, g := range groups {
		m.Discarded = append(m.Discarded, DiscardRecord{
			Index:     g.Index,
			Documents: append([]string(nil), g.Names...),
			Chars:     g.Chars,
		})
	}
}

// AddSkipped records a document that produced no text.
func (m *Manifest) AddSkipped(document, reason string) {
	m.Skipped = append(m.Skipped, SkipRecord{Document: document, Reason: reason})
}

// Write stamps the finish time and writes the manifest into d.
func (m *Manifest) Write(d *Dir) error {
	m.FinishedAt = time.Now().UTC()
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := d.WriteFile(ManifestName, append(b, '\n')); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
