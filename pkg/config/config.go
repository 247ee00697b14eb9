// Package config loads extraction settings from defaults, an optional YAML
// file and DISCRIP_* environment variables.
package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/hansbonini/discrip/pkg/binio"
)

// EnvPrefix prefixes every environment override, e.g. DISCRIP_WORKERS.
const EnvPrefix = "DISCRIP"

// Keys
const (
	KeyVerbose           = "verbose"
	KeyLogFile           = "log_file"
	KeyCodePage          = "code_page"
	KeyConfigPattern     = "config_pattern"
	KeyWADPattern        = "wad_pattern"
	KeyZeroCopyThreshold = "zero_copy_threshold"
	KeyWorkers           = "workers"
)

// Config holds every setting the loader and CLI read.
type Config struct {
	Verbose           bool   `mapstructure:"verbose" yaml:"verbose"`
	LogFile           string `mapstructure:"log_file" yaml:"log_file"`
	CodePage          string `mapstructure:"code_page" yaml:"code_page"`
	ConfigPattern     string `mapstructure:"config_pattern" yaml:"config_pattern"`
	WADPattern        string `mapstructure:"wad_pattern" yaml:"wad_pattern"`
	ZeroCopyThreshold int    `mapstructure:"zero_copy_threshold" yaml:"zero_copy_threshold"`
	Workers           int    `mapstructure:"workers" yaml:"workers"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		CodePage:          "windows-1252",
		ConfigPattern:     "*.ini",
		WADPattern:        "*.wad",
		ZeroCopyThreshold: 16 << 20,
		Workers:           4,
	}
}

// SetDefaults registers Default() on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyVerbose, d.Verbose)
	v.SetDefault(KeyLogFile, d.LogFile)
	v.SetDefault(KeyCodePage, d.CodePage)
	v.SetDefault(KeyConfigPattern, d.ConfigPattern)
	v.SetDefault(KeyWADPattern, d.WADPattern)
	v.SetDefault(KeyZeroCopyThreshold, d.ZeroCopyThreshold)
	v.SetDefault(KeyWorkers, d.Workers)
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (if non-empty) into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the loader cannot use.
func (c *Config) Validate() error {
	var errs error
	if _, err := binio.LookupCodePage(c.CodePage); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.Workers < 1 {
		errs = multierr.Append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.ZeroCopyThreshold < 0 {
		errs = multierr.Append(errs, fmt.Errorf("zero_copy_threshold must not be negative, got %d", c.ZeroCopyThreshold))
	}
	for _, p := range [][2]string{{KeyConfigPattern, c.ConfigPattern}, {KeyWADPattern, c.WADPattern}} {
		if _, err := path.Match(p[1], ""); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %q: %w", p[0], p[1], err))
		}
	}
	return errs
}

// CodePageTable resolves CodePage.
func (c *Config) CodePageTable() (*binio.CodePage, error) {
	return binio.LookupCodePage(c.CodePage)
}
