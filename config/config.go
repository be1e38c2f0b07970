// Package config loads the openvdb server configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/openvdb/codec"
	"github.com/hupe1980/openvdb/index"
	"github.com/hupe1980/openvdb/persistence"
	"github.com/hupe1980/openvdb/wal"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OPENVDB_"

// Config is the server configuration.
type Config struct {
	Listen           string            `yaml:"listen"`
	DataDir          string            `yaml:"data_dir"`
	Index            string            `yaml:"index"`
	HNSW             HNSWConfig        `yaml:"hnsw"`
	Durability       string            `yaml:"durability"`
	StrictDurability bool              `yaml:"strict_durability"`
	Codec            string            `yaml:"codec"` // go-json or json
	Snapshot         SnapshotConfig    `yaml:"snapshot"`
	APIKeys          map[string]string `yaml:"api_keys"` // key -> tenant
	RateLimit        RateLimitConfig   `yaml:"rate_limit"`
	Log              LogConfig         `yaml:"log"`
}

// HNSWConfig tunes the approximate index. Zero values keep the defaults.
type HNSWConfig struct {
	M              int   `yaml:"m"`
	EfConstruction int   `yaml:"ef_construction"`
	EfSearch       int   `yaml:"ef_search"`
	Overfetch      int   `yaml:"overfetch"`
	Seed           int64 `yaml:"seed"`
}

// SnapshotConfig controls snapshot scheduling and storage.
type SnapshotConfig struct {
	// Interval between periodic snapshots. Zero disables the loop.
	Interval time.Duration `yaml:"interval"`

	// AutoEntries triggers a snapshot once the WAL holds this many records.
	AutoEntries int `yaml:"auto_entries"`

	// Compression is one of none, zstd or lz4.
	Compression string `yaml:"compression"`

	Mirror MirrorConfig `yaml:"mirror"`
}

// MirrorConfig selects where snapshots are copied off-host.
type MirrorConfig struct {
	// Kind is one of "", local, s3 or minio. Empty disables mirroring.
	Kind string `yaml:"kind"`

	// Path is the root directory for the local kind.
	Path string `yaml:"path"`

	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UseSSL       bool   `yaml:"use_ssl"`
	UsePathStyle bool   `yaml:"use_path_style"`
	Keep         int    `yaml:"keep"`
}

// RateLimitConfig is a per-tenant token bucket. Zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Listen:     "127.0.0.1:8080",
		DataDir:    "data",
		Index:      string(index.KindHNSW),
		Durability: wal.DurabilityAsync.String(),
		Codec:      codec.Default.Name(),
		Snapshot: SnapshotConfig{
			Interval:    5 * time.Minute,
			AutoEntries: 10000,
			Compression: string(persistence.CompressionNone),
			Mirror: MirrorConfig{
				Prefix: persistence.DefaultOptions.MirrorPrefix,
				Keep:   persistence.DefaultOptions.MirrorKeep,
			},
		},
		APIKeys: map[string]string{},
		RateLimit: RateLimitConfig{
			RPS:   100,
			Burst: 200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults, expands ${VAR}
// references in secret fields, applies OPENVDB_* overrides and validates
// the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.expandEnvVars()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars expands ${VAR} references in path and credential fields.
func (c *Config) expandEnvVars() {
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.Snapshot.Mirror.Path = os.ExpandEnv(c.Snapshot.Mirror.Path)
	c.Snapshot.Mirror.AccessKey = os.ExpandEnv(c.Snapshot.Mirror.AccessKey)
	c.Snapshot.Mirror.SecretKey = os.ExpandEnv(c.Snapshot.Mirror.SecretKey)

	keys := make(map[string]string, len(c.APIKeys))
	for k, tenant := range c.APIKeys {
		keys[os.ExpandEnv(k)] = tenant
	}
	c.APIKeys = keys
}

// applyEnv overrides fields from OPENVDB_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("LISTEN", &c.Listen)
	str("DATA_DIR", &c.DataDir)
	str("INDEX", &c.Index)
	str("DURABILITY", &c.Durability)
	str("CODEC", &c.Codec)
	boolean("STRICT_DURABILITY", &c.StrictDurability)
	str("SNAPSHOT_COMPRESSION", &c.Snapshot.Compression)
	integer("SNAPSHOT_AUTO_ENTRIES", &c.Snapshot.AutoEntries)
	str("MIRROR_KIND", &c.Snapshot.Mirror.Kind)
	str("MIRROR_PATH", &c.Snapshot.Mirror.Path)
	str("MIRROR_BUCKET", &c.Snapshot.Mirror.Bucket)
	str("MIRROR_PREFIX", &c.Snapshot.Mirror.Prefix)
	str("MIRROR_REGION", &c.Snapshot.Mirror.Region)
	str("MIRROR_ENDPOINT", &c.Snapshot.Mirror.Endpoint)
	str("MIRROR_ACCESS_KEY", &c.Snapshot.Mirror.AccessKey)
	str("MIRROR_SECRET_KEY", &c.Snapshot.Mirror.SecretKey)
	boolean("MIRROR_USE_SSL", &c.Snapshot.Mirror.UseSSL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup(EnvPrefix + "SNAPSHOT_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSNAPSHOT_INTERVAL: %w", EnvPrefix, err))
		} else {
			c.Snapshot.Interval = d
		}
	}

	// OPENVDB_API_KEYS=key1=tenant1,key2=tenant2 replaces the file's keys.
	if v, ok := lookup(EnvPrefix + "API_KEYS"); ok {
		keys, err := ParseAPIKeys(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sAPI_KEYS: %w", EnvPrefix, err))
		} else {
			c.APIKeys = keys
		}
	}

	return errors.Join(errs...)
}

// ParseAPIKeys parses a comma-separated list of key=tenant pairs. A bare
// key maps to a tenant of the same name.
func ParseAPIKeys(s string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, tenant, found := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		tenant = strings.TrimSpace(tenant)
		if !found {
			tenant = key
		}
		if key == "" || tenant == "" {
			return nil, fmt.Errorf("malformed entry %q", part)
		}
		keys[key] = tenant
	}
	return keys, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address must not be empty")
	}
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if _, err := index.ParseKind(c.Index); err != nil {
		return err
	}
	if _, err := wal.ParseDurabilityMode(c.Durability); err != nil {
		return err
	}
	if _, err := codec.Parse(c.Codec); err != nil {
		return err
	}
	if _, err := persistence.ParseCompression(c.Snapshot.Compression); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if c.HNSW.M < 0 || c.HNSW.EfConstruction < 0 || c.HNSW.EfSearch < 0 || c.HNSW.Overfetch < 0 {
		return errors.New("hnsw parameters must not be negative")
	}
	if c.Snapshot.Interval < 0 {
		return errors.New("snapshot.interval must not be negative")
	}
	if c.Snapshot.AutoEntries < 0 {
		return errors.New("snapshot.auto_entries must not be negative")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		return errors.New("rate_limit.burst must be positive when rps is set")
	}

	for key, tenant := range c.APIKeys {
		if key == "" || tenant == "" {
			return errors.New("api_keys entries must have a non-empty key and tenant")
		}
	}

	m := c.Snapshot.Mirror
	switch m.Kind {
	case "":
	case "local":
		if m.Path == "" {
			return errors.New("snapshot.mirror.path is required for the local mirror")
		}
	case "s3", "minio":
		if m.Bucket == "" {
			return fmt.Errorf("snapshot.mirror.bucket is required for the %s mirror", m.Kind)
		}
		if m.Kind == "minio" && m.Endpoint == "" {
			return errors.New("snapshot.mirror.endpoint is required for the minio mirror")
		}
	default:
		return fmt.Errorf("unknown snapshot mirror kind %q", m.Kind)
	}
	if m.Keep < 0 {
		return errors.New("snapshot.mirror.keep must not be negative")
	}

	return nil
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
