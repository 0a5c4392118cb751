package process

import "time"

// SourceConfig is the per-source default configuration, created on first run
// and read once per run during initialisation.
type SourceConfig struct {
	Source    string
	Config    Payload
	CreatedAt time.Time
}
