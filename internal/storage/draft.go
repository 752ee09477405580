package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"liquidityGuard/internal/model"
)

// DraftFile persists one quoted draft so it can be settled by a later run.
type DraftFile struct {
	path string
}

func NewDraftFile(path string) *DraftFile {
	return &DraftFile{path: path}
}

// Load reads the draft. A missing file reports ok=false without error.
func (d *DraftFile) Load() (model.PolicyDraft, bool, error) {
	stat, err := os.Stat(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.PolicyDraft{}, false, nil
		}
		return model.PolicyDraft{}, false, fmt.Errorf("stat draft: %w", err)
	}
	if stat.IsDir() {
		return model.PolicyDraft{}, false, fmt.Errorf("draft path is a directory")
	}

	data, err := os.ReadFile(d.path)
	if err != nil {
		return model.PolicyDraft{}, false, fmt.Errorf("read draft: %w", err)
	}

	var draft model.PolicyDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return model.PolicyDraft{}, false, fmt.Errorf("parse draft: %w", err)
	}
	if strings.TrimSpace(draft.DraftID) == "" {
		return model.PolicyDraft{}, false, fmt.Errorf("draft has no draftId")
	}
	return draft, true, nil
}

// Save replaces the file atomically.
func (d *DraftFile) Save(draft model.PolicyDraft) error {
	dir := filepath.Dir(d.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create draft dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	tmpPath := d.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write draft tmp: %w", err)
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		return fmt.Errorf("rename draft: %w", err)
	}
	return nil
}
