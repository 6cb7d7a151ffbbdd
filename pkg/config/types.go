package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent cortex configuration stored as config.toml
// in the .cortex/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Ingest      IngestConfig      `toml:"ingest"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Events      EventsConfig      `toml:"events"`
}

// StorageConfig selects and configures the repository backend.
type StorageConfig struct {
	// Driver is one of "postgres", "sqlite" or "inmemory".
	Driver      string `toml:"driver,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`

	// SRID is stamped on stored PostGIS geometries.
	SRID int `toml:"srid,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// IngestConfig holds the ingestion worker pool settings.
type IngestConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// VectorStoreConfig holds centroid index settings.
type VectorStoreConfig struct {
	// Provider is one of "none", "sqlite-vec" or "qdrant".
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EventsConfig holds event publishing settings.
type EventsConfig struct {
	// Provider is one of "none" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of Kafka brokers.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func oneOfKey(name string, allowed []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, a := range allowed {
				if v == a {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for %s: %q (allowed: %v)", name, v, allowed)
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": oneOfKey("storage.driver", StorageDrivers,
		func(c *Config) *string { return &c.Storage.Driver }),
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.srid": {
		get: func(c *Config) string { return strconv.Itoa(c.Storage.SRID) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for storage.srid: %q", v)
			}
			c.Storage.SRID = n
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"ingest.workers":    uintKey("ingest.workers", func(c *Config) *uint { return &c.Ingest.Workers }),
	"ingest.queue_size": uintKey("ingest.queue_size", func(c *Config) *uint { return &c.Ingest.QueueSize }),
	"vector_store.provider": oneOfKey("vector_store.provider", VectorStoreProviders,
		func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"events.provider": oneOfKey("events.provider", EventProviders,
		func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
