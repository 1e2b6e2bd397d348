package types

type RunMode string

const (
	// ModeLocal is the mode for running both the API server and the event consumer locally
	ModeLocal RunMode = "local"
	// ModeAPI is the mode for running just the API server
	ModeAPI RunMode = "api"
	// ModeConsumer is the mode for running just the event consumer
	ModeConsumer RunMode = "consumer"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// StorageBackend selects the repository implementation
type StorageBackend string

const (
	StorageBackendPostgres StorageBackend = "postgres"
	StorageBackendMemory   StorageBackend = "memory"
)
