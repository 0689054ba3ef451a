// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config registers configuration defaults and resolves the
// effective types.Config from defaults, the config file, environment
// variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/channi23/OrangeLens/pkg/types"
)

const (
	// FileName is the config file name without extension.
	FileName = "truthlens"

	// EnvPrefix prefixes environment overrides, e.g. TRUTHLENS_VERIFY_BASE_URL.
	EnvPrefix = "TRUTHLENS"
)

// DefaultBaseURL is the hosted verification service.
const DefaultBaseURL = "https://truthlens-api-276376440888.us-central1.run.app"

// DefaultAssets is the application shell install manifest.
var DefaultAssets = []string{
	"/",
	"/static/js/bundle.js",
	"/static/css/main.css",
	"/manifest.json",
}

// Default returns the built-in configuration.
func Default() types.Config {
	return types.Config{
		Verify: types.VerifyConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:        90 * time.Second,
				ConnectTimeout: 30 * time.Second,
				UserAgent:      "truthlens/dev",
				MaxRetries:     3,
			},
			BaseURL:  DefaultBaseURL,
			Mode:     types.ModeFast,
			Language: types.DefaultLanguage,
		},
		Cache: types.CacheConfig{
			StorageConfig: types.StorageConfig{Backend: types.BackendSQLite},
			Names: types.CacheNames{
				Static: "truthlens-v1",
				Shared: "truthlens-shared-v1",
			},
		},
		Shell: types.ShellConfig{
			Assets: append([]string(nil), DefaultAssets...),
			// Share redirects land on /?text=...; serve them the cached /.
			IgnoreSearch: true,
		},
		Shared: types.SharedConfig{
			MaxBytes: 20 << 20,
		},
		Queue: types.QueueConfig{
			StorageConfig: types.StorageConfig{Backend: types.BackendSQLite},
			ProbeInterval: 30 * time.Second,
		},
		Server: types.ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Log: types.LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// SetDefaults registers every key of Default on v so that environment
// variables resolve for keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("verify.timeout", d.Verify.Timeout)
	v.SetDefault("verify.connect_timeout", d.Verify.ConnectTimeout)
	v.SetDefault("verify.user_agent", d.Verify.UserAgent)
	v.SetDefault("verify.max_retries", d.Verify.MaxRetries)
	v.SetDefault("verify.base_url", d.Verify.BaseURL)
	v.SetDefault("verify.text_path", "")
	v.SetDefault("verify.image_path", "")
	v.SetDefault("verify.api_key", "")
	v.SetDefault("verify.mode", string(d.Verify.Mode))
	v.SetDefault("verify.language", d.Verify.Language)

	v.SetDefault("cache.backend", string(d.Cache.Backend))
	v.SetDefault("cache.dsn", "")
	v.SetDefault("cache.names.static", d.Cache.Names.Static)
	v.SetDefault("cache.names.shared", d.Cache.Names.Shared)

	v.SetDefault("shell.origin", "")
	v.SetDefault("shell.dir", "")
	v.SetDefault("shell.assets", d.Shell.Assets)
	v.SetDefault("shell.ignore_search", d.Shell.IgnoreSearch)
	v.SetDefault("shell.install_on_start", d.Shell.InstallOnStart)

	v.SetDefault("shared.max_bytes", d.Shared.MaxBytes)
	v.SetDefault("shared.delete_on_consume", d.Shared.DeleteOnConsume)

	v.SetDefault("queue.backend", string(d.Queue.Backend))
	v.SetDefault("queue.dsn", "")
	v.SetDefault("queue.max_attempts", d.Queue.MaxAttempts)
	v.SetDefault("queue.max_age", d.Queue.MaxAge)
	v.SetDefault("queue.backoff_base", d.Queue.BackoffBase)
	v.SetDefault("queue.probe_interval", d.Queue.ProbeInterval)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Setup points v at the config file (explicit path, or truthlens.yaml in
// the working directory or ~/.config/truthlens) and enables environment
// overrides.
func Setup(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Read loads the config file if one is present. A missing file is not an
// error; defaults, environment and flags still apply.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// Load unmarshals the resolved values of v and validates them.
func Load(v *viper.Viper) (*types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	cfg.Verify.BaseURL = strings.TrimRight(cfg.Verify.BaseURL, "/")
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that unmarshalling cannot.
func Validate(cfg *types.Config) error {
	var errs []error

	if _, err := url.ParseRequestURI(cfg.Verify.BaseURL); err != nil || cfg.Verify.BaseURL == "" {
		errs = append(errs, fmt.Errorf("verify.base_url %q is not an absolute URL", cfg.Verify.BaseURL))
	}
	switch cfg.Verify.Mode {
	case types.ModeFast, types.ModeDeep:
	default:
		errs = append(errs, fmt.Errorf("verify.mode %q must be fast or deep", cfg.Verify.Mode))
	}

	switch cfg.Cache.Backend {
	case types.BackendSQLite, types.BackendMySQL, types.BackendPostgres, types.BackendRedis, types.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not supported", cfg.Cache.Backend))
	}
	if !cfg.Queue.Backend.IsSQL() {
		errs = append(errs, fmt.Errorf("queue.backend %q must be sqlite, mysql, or postgres", cfg.Queue.Backend))
	}

	if cfg.Cache.Names.Static == "" || cfg.Cache.Names.Shared == "" {
		errs = append(errs, errors.New("cache.names.static and cache.names.shared must both be set"))
	} else if cfg.Cache.Names.Static == cfg.Cache.Names.Shared {
		errs = append(errs, errors.New("cache.names.static and cache.names.shared must differ"))
	}

	if cfg.Shell.Origin != "" {
		if u, err := url.Parse(cfg.Shell.Origin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("shell.origin %q is not an absolute URL", cfg.Shell.Origin))
		}
	}
	for _, a := range cfg.Shell.Assets {
		if !strings.HasPrefix(a, "/") {
			errs = append(errs, fmt.Errorf("shell asset %q must start with /", a))
		}
	}

	if cfg.Shared.MaxBytes <= 0 {
		errs = append(errs, errors.New("shared.max_bytes must be positive"))
	}
	if cfg.Queue.MaxAttempts < 0 || cfg.Queue.MaxAge < 0 || cfg.Queue.BackoffBase < 0 || cfg.Queue.ProbeInterval < 0 {
		errs = append(errs, errors.New("queue limits must not be negative"))
	}

	return errors.Join(errs...)
}
