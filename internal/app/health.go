package app

import (
	"encoding/json"
	"time"

	"github.com/spf13/afero"

	"github.com/YoshitsuguKoike/procrunner/internal/infra/persistence/file"
)

// Health is the last run outcome of a source, written for external probes
type Health struct {
	TS      string `json:"ts"`
	Source  string `json:"source"`
	StateID string `json:"state_id,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Result  string `json:"result"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// WriteHealth replaces the health file at path. An empty path disables it.
func WriteHealth(fs afero.Fs, path string, h Health) error {
	if path == "" {
		return nil
	}
	if h.TS == "" {
		h.TS = time.Now().UTC().Format(time.RFC3339Nano)
	}
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return file.WriteFileAtomic(fs, path, append(b, '\n'))
}
