package config

const (
	defaultStorageDriver = "sqlite"
	defaultSQLitePath    = "cortex.db"
	defaultSRID          = 0

	defaultAPIListen = ":8081"

	defaultIngestWorkers   = 3
	defaultIngestQueueSize = 256

	defaultVectorProvider = "none"

	defaultEventsProvider = "none"
	defaultEventsBrokers  = "localhost:9092"
	defaultEventsTopic    = "cortex-events"
)

// StorageDrivers are the accepted storage.driver values.
var StorageDrivers = []string{"postgres", "sqlite", "inmemory"}

// VectorStoreProviders are the accepted vector_store.provider values.
var VectorStoreProviders = []string{"none", "sqlite-vec", "qdrant"}

// EventProviders are the accepted events.provider values.
var EventProviders = []string{"none", "kafka"}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver:     defaultStorageDriver,
			SQLitePath: defaultSQLitePath,
			SRID:       defaultSRID,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Ingest: IngestConfig{
			Workers:   defaultIngestWorkers,
			QueueSize: defaultIngestQueueSize,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Brokers:  defaultEventsBrokers,
			Topic:    defaultEventsTopic,
		},
	}
}
