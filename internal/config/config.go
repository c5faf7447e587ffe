// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/tracekit/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `tracekit:` root key in YAML.
type GlobalConfig struct {
	Log     LogConfig      `mapstructure:"log"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	Pool    PoolConfig     `mapstructure:"pool"`
	Parser  ParserConfig   `mapstructure:"parser"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Kafka   KafkaConfig    `mapstructure:"kafka"`
	Outputs []OutputConfig `mapstructure:"outputs"`
}

// ─── Worker Pool ───

// PoolConfig configures the parse worker pool.
type PoolConfig struct {
	MaxWorkers          int    `mapstructure:"max_workers"`            // 0 = auto (NumCPU)
	MaxPendingPerWorker int    `mapstructure:"max_pending_per_worker"` // 1 = queue when saturated
	Dispatch            string `mapstructure:"dispatch"`               // first-idle | round-robin | least-used
}

// ─── Parser ───

// ParserConfig configures record scanning and decoding.
type ParserConfig struct {
	SegmentSize     int      `mapstructure:"segment_size"`      // bytes per task, 0 = whole file
	Families        []string `mapstructure:"families"`          // frame | log
	Charset         string   `mapstructure:"charset"`           // utf-8 | gbk | gb18030 | latin1
	Timezone        string   `mapstructure:"timezone"`          // IANA name, "Local" or "UTC"
	MaxRecordLength int      `mapstructure:"max_record_length"` // largest accepted length field
	SplitEmbedded   bool     `mapstructure:"split_embedded"`    // one log entry per embedded line
}

// Kinds returns the configured record families.
func (c ParserConfig) Kinds() ([]core.Kind, error) {
	kinds := make([]core.Kind, 0, len(c.Families))
	for _, f := range c.Families {
		k, err := core.ParseKind(strings.ToLower(strings.TrimSpace(f)))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Location returns the configured time zone.
func (c ParserConfig) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "UTC":
		return time.UTC, nil
	case "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Timezone)
	}
}

// ─── Result Cache ───

// CacheConfig configures the parse result cache.
type CacheConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	TTL             string `mapstructure:"ttl"`              // e.g. "10m"
	CleanupInterval string `mapstructure:"cleanup_interval"` // e.g. "1m"
}

// TTLDuration returns the parsed TTL; call after validation.
func (c CacheConfig) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// CleanupDuration returns the parsed cleanup interval; call after validation.
func (c CacheConfig) CleanupDuration() time.Duration {
	d, _ := time.ParseDuration(c.CleanupInterval)
	return d
}

// ─── Kafka Global Default ───

// KafkaConfig provides shared Kafka connection defaults.
// Kafka outputs inherit brokers from here when they set none.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// ─── Outputs ───

// OutputConfig configures one output sink. Options are decoded by the sink itself.
type OutputConfig struct {
	Type    string         `mapstructure:"type"` // console | jsonl | yaml | kafka
	Options map[string]any `mapstructure:"options"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `tracekit: ...`.
type configRoot struct {
	Tracekit GlobalConfig `mapstructure:"tracekit"`
}

// Load loads configuration from file. An empty path loads defaults and environment
// overrides only.
// The YAML file uses `tracekit:` as root key; env vars use the TRACEKIT_ prefix
// (e.g., TRACEKIT_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `tracekit.` key prefix maps to `TRACEKIT_` in env vars via the key replacer
	// (e.g., key "tracekit.pool.max_workers" → env "TRACEKIT_POOL_MAX_WORKERS").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Tracekit

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "tracekit." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("tracekit.log.level", "info")
	v.SetDefault("tracekit.log.format", "text")
	v.SetDefault("tracekit.log.outputs.file.enabled", false)
	v.SetDefault("tracekit.log.outputs.file.path", "/var/log/tracekit/tracekit.log")
	v.SetDefault("tracekit.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("tracekit.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("tracekit.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("tracekit.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("tracekit.metrics.enabled", false)
	v.SetDefault("tracekit.metrics.listen", ":9091")
	v.SetDefault("tracekit.metrics.path", "/metrics")

	// Pool defaults
	v.SetDefault("tracekit.pool.max_workers", 0)
	v.SetDefault("tracekit.pool.max_pending_per_worker", 1)
	v.SetDefault("tracekit.pool.dispatch", "first-idle")

	// Parser defaults
	v.SetDefault("tracekit.parser.segment_size", 0)
	v.SetDefault("tracekit.parser.families", []string{"frame", "log"})
	v.SetDefault("tracekit.parser.charset", "utf-8")
	v.SetDefault("tracekit.parser.timezone", "Local")
	v.SetDefault("tracekit.parser.max_record_length", 10000)
	v.SetDefault("tracekit.parser.split_embedded", true)

	// Cache defaults
	v.SetDefault("tracekit.cache.enabled", false)
	v.SetDefault("tracekit.cache.ttl", "10m")
	v.SetDefault("tracekit.cache.cleanup_interval", "1m")
}

var (
	validDispatch = map[string]bool{"first-idle": true, "round-robin": true, "least-used": true}
	validCharsets = map[string]bool{
		"utf-8": true, "utf8": true, "gbk": true, "cp936": true,
		"gb18030": true, "latin1": true, "iso-8859-1": true,
	}
)

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}

	// ── Pool ──
	if cfg.Pool.MaxWorkers < 0 {
		return fmt.Errorf("%w: pool.max_workers must be >= 0, got %d", core.ErrConfigInvalid, cfg.Pool.MaxWorkers)
	}
	if cfg.Pool.MaxPendingPerWorker <= 0 {
		cfg.Pool.MaxPendingPerWorker = 1
	}
	if cfg.Pool.Dispatch == "" {
		cfg.Pool.Dispatch = "first-idle"
	}
	if !validDispatch[cfg.Pool.Dispatch] {
		return fmt.Errorf("%w: unknown pool.dispatch %q", core.ErrConfigInvalid, cfg.Pool.Dispatch)
	}

	// ── Parser ──
	if cfg.Parser.SegmentSize < 0 {
		return fmt.Errorf("%w: parser.segment_size must be >= 0", core.ErrConfigInvalid)
	}
	if len(cfg.Parser.Families) == 0 {
		cfg.Parser.Families = []string{"frame", "log"}
	}
	if _, err := cfg.Parser.Kinds(); err != nil {
		return err
	}
	if !validCharsets[strings.ToLower(cfg.Parser.Charset)] {
		return fmt.Errorf("%w: unsupported parser.charset %q", core.ErrConfigInvalid, cfg.Parser.Charset)
	}
	if _, err := cfg.Parser.Location(); err != nil {
		return fmt.Errorf("%w: parser.timezone: %v", core.ErrConfigInvalid, err)
	}
	if cfg.Parser.MaxRecordLength <= 0 || cfg.Parser.MaxRecordLength > 0xFFFF {
		return fmt.Errorf("%w: parser.max_record_length must be in 1..65535, got %d", core.ErrConfigInvalid, cfg.Parser.MaxRecordLength)
	}

	// ── Cache ──
	if cfg.Cache.Enabled {
		if d, err := time.ParseDuration(cfg.Cache.TTL); err != nil || d <= 0 {
			return fmt.Errorf("%w: invalid cache.ttl %q", core.ErrConfigInvalid, cfg.Cache.TTL)
		}
		if _, err := time.ParseDuration(cfg.Cache.CleanupInterval); err != nil {
			return fmt.Errorf("%w: invalid cache.cleanup_interval %q", core.ErrConfigInvalid, cfg.Cache.CleanupInterval)
		}
	}

	// ── Outputs ──
	for i := range cfg.Outputs {
		out := &cfg.Outputs[i]
		out.Type = strings.ToLower(strings.TrimSpace(out.Type))
		if out.Type == "" {
			return fmt.Errorf("%w: outputs[%d].type is required", core.ErrConfigInvalid, i)
		}
		if out.Options == nil {
			out.Options = map[string]any{}
		}
	}
	applyKafkaInheritance(cfg)

	return nil
}

// applyKafkaInheritance copies the global kafka brokers into kafka outputs that do
// not set their own.
func applyKafkaInheritance(cfg *GlobalConfig) {
	if len(cfg.Kafka.Brokers) == 0 {
		return
	}
	for i := range cfg.Outputs {
		out := &cfg.Outputs[i]
		if out.Type != "kafka" {
			continue
		}
		if _, ok := out.Options["brokers"]; !ok {
			out.Options["brokers"] = append([]string(nil), cfg.Kafka.Brokers...)
		}
	}
}
