package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// ConnectTimeout bounds dialing, the TLS handshake and waiting for
	// response headers, each separately.
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "truthlens/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries is the number of 429 retries (0 uses the default).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// VerifyConfig holds settings for the remote verification endpoint.
type VerifyConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the verification service root, without a trailing slash.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// TextPath and ImagePath override the endpoint paths. Empty selects
	// the authenticated or test paths depending on APIKey.
	TextPath  string `json:"text_path,omitempty" yaml:"text_path,omitempty" mapstructure:"text_path"`
	ImagePath string `json:"image_path,omitempty" yaml:"image_path,omitempty" mapstructure:"image_path"`

	// APIKey enables the authenticated endpoints and the bearer header.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Mode and Language are the defaults applied to new requests.
	Mode     Mode   `json:"mode" yaml:"mode" mapstructure:"mode"`
	Language string `json:"language" yaml:"language" mapstructure:"language"`
}

// StorageBackend names a storage implementation.
type StorageBackend string

const (
	BackendSQLite   StorageBackend = "sqlite"
	BackendMySQL    StorageBackend = "mysql"
	BackendPostgres StorageBackend = "postgres"
	BackendRedis    StorageBackend = "redis"
	BackendMemory   StorageBackend = "memory"
)

// IsSQL reports whether the backend is served by database/sql.
func (b StorageBackend) IsSQL() bool {
	return b == BackendSQLite || b == BackendMySQL || b == BackendPostgres
}

// StorageConfig selects a backend and its connection string. For SQLite the
// DSN is a file path; for Redis a redis:// URL.
type StorageConfig struct {
	Backend StorageBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
	DSN     string         `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// CacheConfig holds settings for the cache store.
type CacheConfig struct {
	StorageConfig `yaml:",inline" mapstructure:",squash"`

	Names CacheNames `json:"names" yaml:"names" mapstructure:"names"`
}

// ShellConfig holds settings for the static application shell cache.
type ShellConfig struct {
	// Origin is where shell assets are fetched from and where cache misses
	// are forwarded. Empty disables passthrough.
	Origin string `json:"origin" yaml:"origin" mapstructure:"origin"`

	// Dir installs assets from a local build directory instead of Origin.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" mapstructure:"dir"`

	// Assets is the install manifest.
	Assets []string `json:"assets" yaml:"assets" mapstructure:"assets"`

	// IgnoreSearch matches cached assets by path only.
	IgnoreSearch bool `json:"ignore_search" yaml:"ignore_search" mapstructure:"ignore_search"`

	// InstallOnStart installs the manifest before the server listens.
	InstallOnStart bool `json:"install_on_start" yaml:"install_on_start" mapstructure:"install_on_start"`
}

// SharedConfig holds settings for payloads handed over by share actions.
type SharedConfig struct {
	// MaxBytes bounds an accepted share submission.
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`

	// DeleteOnConsume removes a shared payload once a verification has
	// loaded it.
	DeleteOnConsume bool `json:"delete_on_consume" yaml:"delete_on_consume" mapstructure:"delete_on_consume"`
}

// QueueConfig holds settings for the offline submission queue. Zero values
// keep items forever and retry them on every reconnect.
type QueueConfig struct {
	StorageConfig `yaml:",inline" mapstructure:",squash"`

	// MaxAttempts drops an item after this many failed replays.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// MaxAge drops items enqueued longer ago than this.
	MaxAge time.Duration `json:"max_age" yaml:"max_age" mapstructure:"max_age"`

	// BackoffBase is the minimum wait after the first failed replay; it
	// doubles with each further attempt.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`

	// ProbeInterval is how often connectivity is checked. Zero disables
	// the monitor.
	ProbeInterval time.Duration `json:"probe_interval" yaml:"probe_interval" mapstructure:"probe_interval"`
}

// ServerConfig holds settings for the edge HTTP server.
type ServerConfig struct {
	Addr              string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LogConfig selects the logger level and encoding ("json" or "console").
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all component configurations.
type Config struct {
	Verify VerifyConfig `json:"verify" yaml:"verify" mapstructure:"verify"`
	Cache  CacheConfig  `json:"cache" yaml:"cache" mapstructure:"cache"`
	Shell  ShellConfig  `json:"shell" yaml:"shell" mapstructure:"shell"`
	Shared SharedConfig `json:"shared" yaml:"shared" mapstructure:"shared"`
	Queue  QueueConfig  `json:"queue" yaml:"queue" mapstructure:"queue"`
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`
}
