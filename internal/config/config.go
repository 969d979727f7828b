// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/core/decoder"
	"firestige.xyz/speadcap/internal/log"
)

// Config maps to the `speadcap:` root key in YAML.
type Config struct {
	Log       log.LoggerConfig `mapstructure:"log"`
	Decoder   DecoderConfig    `mapstructure:"decoder"`
	Batch     BatchConfig      `mapstructure:"batch"`
	Source    PluginConfig     `mapstructure:"source"`
	Reporters []PluginConfig   `mapstructure:"reporters"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
}

// DecoderConfig holds the expectations every packet is checked against.
type DecoderConfig struct {
	Version       int    `mapstructure:"version"` // 0..255
	Flavour       string `mapstructure:"flavour"`
	NumHeaders    *int   `mapstructure:"num_headers"` // 0..65535; nil = not checked
	PayloadLen    *int   `mapstructure:"payload_len"` // words; nil = not checked
	MissingLength string `mapstructure:"missing_length"`
}

// BatchConfig controls how a batch of word sequences is processed.
type BatchConfig struct {
	FailureMode string `mapstructure:"failure_mode"` // fail_fast | isolate
	Workers     int    `mapstructure:"workers"`
}

// PluginConfig selects a source or reporter plugin by name.
type PluginConfig struct {
	Name   string         `mapstructure:"name"`
	Config map[string]any `mapstructure:"config"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure `speadcap: ...`.
type configRoot struct {
	Speadcap Config `mapstructure:"speadcap"`
}

// Load loads configuration from file. Env vars override file values through
// the key replacer, e.g. SPEADCAP_DECODER_FLAVOUR for speadcap.decoder.flavour.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(v)
}

// Default returns the defaulted configuration without reading a file.
// Environment overrides still apply.
func Default() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Speadcap

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("speadcap.log.level", "info")
	v.SetDefault("speadcap.log.pattern", log.DefaultPattern)
	v.SetDefault("speadcap.log.time", log.DefaultTime)
	v.SetDefault("speadcap.log.file.enabled", false)
	v.SetDefault("speadcap.log.file.path", "speadcap.log")
	v.SetDefault("speadcap.log.file.max_size_mb", 100)
	v.SetDefault("speadcap.log.file.max_age_days", 30)
	v.SetDefault("speadcap.log.file.max_backups", 5)
	v.SetDefault("speadcap.log.file.compress", true)

	v.SetDefault("speadcap.decoder.version", 4)
	v.SetDefault("speadcap.decoder.flavour", "64,48")
	v.SetDefault("speadcap.decoder.missing_length", "require")

	v.SetDefault("speadcap.batch.failure_mode", "fail_fast")
	v.SetDefault("speadcap.batch.workers", 1)

	v.SetDefault("speadcap.source.name", "words")

	v.SetDefault("speadcap.metrics.enabled", false)
	v.SetDefault("speadcap.metrics.listen", ":9091")
	v.SetDefault("speadcap.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and fills runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("%w: log level %q (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	if cfg.Decoder.Version < 0 || cfg.Decoder.Version > math.MaxUint8 {
		return fmt.Errorf("%w: decoder.version %d out of range 0..255", core.ErrConfigInvalid, cfg.Decoder.Version)
	}
	if n := cfg.Decoder.NumHeaders; n != nil && (*n < 0 || *n > math.MaxUint16) {
		return fmt.Errorf("%w: decoder.num_headers %d out of range 0..65535", core.ErrConfigInvalid, *n)
	}
	if cfg.Decoder.Flavour == "" {
		return fmt.Errorf("%w: decoder.flavour is required", core.ErrConfigInvalid)
	}
	if _, err := decoder.ParseLengthPolicy(cfg.Decoder.MissingLength); err != nil {
		return err
	}
	if cfg.Decoder.PayloadLen != nil && *cfg.Decoder.PayloadLen < 0 {
		return fmt.Errorf("%w: decoder.payload_len must not be negative", core.ErrConfigInvalid)
	}

	switch cfg.Batch.FailureMode {
	case "":
		cfg.Batch.FailureMode = "fail_fast"
	case "fail_fast", "isolate":
	default:
		return fmt.Errorf("%w: batch.failure_mode %q (must be fail_fast/isolate)", core.ErrConfigInvalid, cfg.Batch.FailureMode)
	}
	if cfg.Batch.Workers < 1 {
		cfg.Batch.Workers = 1
	}

	if cfg.Source.Name == "" {
		return fmt.Errorf("%w: source.name is required", core.ErrConfigInvalid)
	}
	for i, r := range cfg.Reporters {
		if r.Name == "" {
			return fmt.Errorf("%w: reporters[%d]: name is required", core.ErrConfigInvalid, i)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}
	return nil
}

// Expectations converts the decoder section into decoder expectations.
// Version and flavour are always checked. Call it on a validated config:
// the ranges are checked by ValidateAndApplyDefaults.
func (d DecoderConfig) Expectations() decoder.Expectations {
	exp := decoder.Expectations{
		Version: decoder.Ptr(uint8(d.Version)),
		Flavour: decoder.Ptr(d.Flavour),
	}
	if d.NumHeaders != nil {
		exp.NumHeaders = decoder.Ptr(uint16(*d.NumHeaders))
	}
	if d.PayloadLen != nil {
		exp.PayloadLen = decoder.Ptr(*d.PayloadLen)
	}
	return exp
}
