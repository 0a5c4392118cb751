package runner

import (
	"fmt"
	"sort"
	"sync"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
)

// Definition describes one kind of process: its source key, entry stage,
// default configuration and stage handlers
type Definition struct {
	Source        string
	Description   string
	InitialStage  process.Stage
	DefaultConfig process.Payload
	Stages        *StageRegistry
}

// Validate checks that the definition can drive a run
func (d *Definition) Validate() error {
	if d.Source == "" {
		return fmt.Errorf("definition source is required")
	}
	if d.Stages == nil || d.Stages.Len() == 0 {
		return fmt.Errorf("definition %s has no stages", d.Source)
	}
	if _, ok := d.Stages.Lookup(d.initialStage()); !ok {
		return fmt.Errorf("definition %s has no handler for initial stage %s", d.Source, d.initialStage())
	}
	return nil
}

func (d *Definition) initialStage() process.Stage {
	if d.InitialStage.IsEmpty() {
		return process.StageInitial
	}
	return d.InitialStage
}

// Catalog holds the definitions known to a binary, keyed by source
type Catalog struct {
	mu          sync.RWMutex
	definitions map[string]Definition
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{definitions: make(map[string]Definition)}
}

// Register validates and adds def
func (c *Catalog) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.definitions[def.Source]; exists {
		return fmt.Errorf("source %s is already registered", def.Source)
	}
	c.definitions[def.Source] = def
	return nil
}

// Get returns the definition for source
func (c *Catalog) Get(source string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.definitions[source]
	return def, ok
}

// Sources returns the registered sources in sorted order
func (c *Catalog) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sources := make([]string, 0, len(c.definitions))
	for s := range c.definitions {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}
