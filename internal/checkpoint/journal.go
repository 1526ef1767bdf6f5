// File: internal/checkpoint/journal.go
// Description: Persists the CheckpointSet of the running install to disk
// so an abrupt process termination mid-write leaves enough state for a
// later `rollback` invocation.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/kvasirlabs/gatewright/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	stateDirName    = ".gatewright"
	journalFileName = "journal.json"
)

// journalDoc is the on-disk recovery log for one install run.
type journalDoc struct {
	RunID       string         `json:"run_id"`
	CreatedAt   time.Time      `json:"created_at"`
	Checkpoints []journalEntry `json:"checkpoints"`
}

type journalEntry struct {
	Path         string `json:"path"`
	Existed      bool   `json:"existed"`
	PriorContent []byte `json:"prior_content,omitempty"`
	PriorMode    uint32 `json:"prior_mode,omitempty"`
}

// JournalPath returns the recovery log location for a target root.
func JournalPath(root string) string {
	return filepath.Join(root, stateDirName, journalFileName)
}

// Persist durably records the set for root. It must be called after every
// checkpoint append and before the corresponding write. The journal is
// written atomically (temp file + rename) so a crash never leaves a torn
// recovery log.
func (c *Checkpointer) Persist(root, runID string, set schemas.CheckpointSet) error {
	doc := journalDoc{
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
		Checkpoints: make([]journalEntry, 0, len(set)),
	}
	for _, cp := range set {
		doc.Checkpoints = append(doc.Checkpoints, journalEntry{
			Path:         cp.Path,
			Existed:      cp.Existed,
			PriorContent: cp.PriorContent,
			PriorMode:    uint32(cp.PriorMode),
		})
	}

	raw, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding journal: %w", err)
	}

	dir := filepath.Join(root, stateDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, journalFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating journal temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing journal: %w", err)
	}
	if err := os.Rename(tmpName, JournalPath(root)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing journal: %w", err)
	}
	return nil
}

// LoadJournal reads the persisted recovery log for root. A missing
// journal returns fs.ErrNotExist for the caller to translate.
func (c *Checkpointer) LoadJournal(root string) (string, schemas.CheckpointSet, error) {
	raw, err := os.ReadFile(JournalPath(root))
	if err != nil {
		return "", nil, err
	}
	var doc journalDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", nil, fmt.Errorf("corrupt journal at %s: %w", JournalPath(root), err)
	}

	set := make(schemas.CheckpointSet, 0, len(doc.Checkpoints))
	for _, e := range doc.Checkpoints {
		set = append(set, schemas.Checkpoint{
			Path:         e.Path,
			Existed:      e.Existed,
			PriorContent: e.PriorContent,
			PriorMode:    fs.FileMode(e.PriorMode),
		})
	}
	return doc.RunID, set, nil
}

// Discard removes the recovery log once a run reaches a terminal state.
// A missing journal is not an error; Discard is safe to call twice.
func (c *Checkpointer) Discard(root string) error {
	err := os.Remove(JournalPath(root))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discarding journal: %w", err)
	}
	return nil
}
