// Package history keeps past speed test results in a JSON file.
package history

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/pkg/errors"
)

// MaxEntries is how many results a history file holds.
const MaxEntries = 100

type History interface {
	Load() []types.SpeedTestResult
	Append(result types.SpeedTestResult) error
}

var _ History = &fileHistory{}

type fileHistory struct {
	log  *slog.Logger
	path string
	max  int
}

func NewHistory(log *slog.Logger, path string) History {
	return &fileHistory{
		log:  log,
		path: path,
		max:  MaxEntries,
	}
}

// Load returns the stored results, oldest first. A missing or unreadable file
// yields an empty history.
func (h *fileHistory) Load() []types.SpeedTestResult {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if !os.IsNotExist(err) {
			h.log.Warn("failed to read history file", "path", h.path, "err", err)
		}
		return nil
	}

	var results []types.SpeedTestResult
	if err := json.Unmarshal(data, &results); err != nil {
		h.log.Warn("ignoring corrupt history file", "path", h.path, "err", err)
		return nil
	}
	return results
}

// Append adds result and drops the oldest entries beyond the cap.
func (h *fileHistory) Append(result types.SpeedTestResult) error {
	results := append(h.Load(), result)
	if len(results) > h.max {
		results = results[len(results)-h.max:]
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode history")
	}

	if dir := filepath.Dir(h.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create history directory")
		}
	}

	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write history file")
	}
	return nil
}
