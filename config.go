package stagegate

import (
	"fmt"

	"github.com/gearmill/stagegate/service/messaging"
	"github.com/gearmill/stagegate/service/messaging/fs"
	"github.com/gearmill/stagegate/service/messaging/memory"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from JSON, YAML, environment variables, etc. The
// zero-value is useful, all nested fields inherit their package defaults.

type Config struct {
	Dispatcher DispatcherConfig `json:"dispatcher" yaml:"dispatcher"`
	Queue      QueueConfig      `json:"queue" yaml:"queue"`
	Catalog    CatalogConfig    `json:"catalog" yaml:"catalog"`
}

// DispatcherConfig sizes the worker pool delivering terminal outcomes to
// registered subject-kind handlers.
type DispatcherConfig struct {
	WorkerCount int `json:"workers" yaml:"workers"`
	Buffer      int `json:"buffer" yaml:"buffer"`
}

// QueueConfig selects the messaging vendor backing the lifecycle event feed.
type QueueConfig struct {
	Vendor string `json:"vendor" yaml:"vendor"`
	// BasePath roots on-disk queue directories; fs vendor only.
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`
}

// CatalogConfig points the loader at a policy catalog document applied on
// Start.
type CatalogConfig struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Seed writes the starter catalog to URL when no document exists yet.
	Seed bool `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DefaultConfig returns a Config populated with exactly the same default
// values the constructors apply. Callers may modify the returned struct
// before passing it to NewFromConfig.
func DefaultConfig() *Config {
	return &Config{
		Dispatcher: DispatcherConfig{
			WorkerCount: 5,
			Buffer:      128,
		},
		Queue: QueueConfig{Vendor: string(memory.Vendor)},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Dispatcher.WorkerCount <= 0 {
		return fmt.Errorf("dispatcher.workers must be > 0")
	}
	switch messaging.Vendor(c.Queue.Vendor) {
	case "", memory.Vendor:
	case fs.Vendor:
		if c.Queue.BasePath == "" {
			return fmt.Errorf("queue.basePath is required for the fs vendor")
		}
	default:
		return fmt.Errorf("unsupported queue vendor: %s", c.Queue.Vendor)
	}
	if c.Catalog.Seed && c.Catalog.URL == "" {
		return fmt.Errorf("catalog.seed requires catalog.url")
	}
	return nil
}
