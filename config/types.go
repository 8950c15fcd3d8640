package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:generate sh -c "cd .. && go run ./tools/config-schema-generator/"

// ListenerConfig configures the hook event listener.
type ListenerConfig struct {
	// Port is the fixed local TCP port hook events are POSTed to.
	Port int `yaml:"port,omitempty" toml:"port,omitempty" jsonschema:"description=Local TCP port for the hook event listener,default=7842"`
}

// ScanConfig configures periodic process discovery.
type ScanConfig struct {
	// Interval between full process rescans (duration string).
	Interval string `yaml:"interval,omitempty" toml:"interval,omitempty" jsonschema:"description=Interval between process rescans (e.g. 20s),default=20s"`
	// ProcessName is the executable name discovered as a session candidate.
	ProcessName string `yaml:"process_name,omitempty" toml:"process_name,omitempty" jsonschema:"description=Executable name to discover,default=claude"`
	// Ignore holds dockerignore-style patterns; processes whose working
	// directory matches are never published as sessions.
	Ignore []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" jsonschema:"description=Working-directory patterns to exclude from discovery"`
}

// ModelRate is a per-model-family price override in USD per million tokens.
type ModelRate struct {
	InputPerMTok  float64 `yaml:"input_per_mtok" toml:"input_per_mtok" jsonschema:"description=USD per million input tokens"`
	OutputPerMTok float64 `yaml:"output_per_mtok" toml:"output_per_mtok" jsonschema:"description=USD per million output tokens"`
}

// PricingConfig overrides the built-in per-model token rates.
type PricingConfig struct {
	Models map[string]ModelRate `yaml:"models,omitempty" toml:"models,omitempty" jsonschema:"description=Per-model-family rate overrides in USD per million tokens"`
}

// Config is the canopy.yml configuration.
type Config struct {
	Version  string         `yaml:"version" toml:"version" jsonschema:"description=Config format version,required"`
	Listener ListenerConfig `yaml:"listener,omitempty" toml:"listener,omitempty" jsonschema:"description=Hook event listener settings"`
	Scan     ScanConfig     `yaml:"scan,omitempty" toml:"scan,omitempty" jsonschema:"description=Process discovery settings"`
	Pricing  PricingConfig  `yaml:"pricing,omitempty" toml:"pricing,omitempty" jsonschema:"description=Token pricing overrides"`

	// Extensions captures all other top-level keys for extensibility
	// (e.g. the "logging" section consumed by the logging package).
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultPort        = 7842
	DefaultProcessName = "claude"
)

// DefaultScanInterval is how often a full process rescan runs when the
// config does not override it.
const DefaultScanInterval = 20 * time.Second

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Listener.Port == 0 {
		c.Listener.Port = DefaultPort
	}
	if c.Scan.Interval == "" {
		c.Scan.Interval = DefaultScanInterval.String()
	}
	if c.Scan.ProcessName == "" {
		c.Scan.ProcessName = DefaultProcessName
	}
}

// ScanInterval parses the configured rescan interval, falling back to
// the default on a malformed duration.
func (c *Config) ScanInterval() time.Duration {
	d, err := time.ParseDuration(c.Scan.Interval)
	if err != nil || d <= 0 {
		return DefaultScanInterval
	}
	return d
}


// Validate checks structural constraints not covered by defaults.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Listener.Port < 0 || c.Listener.Port > 65535 {
		return fmt.Errorf("listener.port %d out of range", c.Listener.Port)
	}
	if c.Scan.Interval != "" {
		if _, err := time.ParseDuration(c.Scan.Interval); err != nil {
			return fmt.Errorf("scan.interval: %w", err)
		}
	}
	for family, rate := range c.Pricing.Models {
		if rate.InputPerMTok < 0 || rate.OutputPerMTok < 0 {
			return fmt.Errorf("pricing.models.%s: rates must be non-negative", family)
		}
	}
	return nil
}

// UnmarshalExtension decodes a captured extension section into a
// strongly-typed target struct using its yaml tags. A missing key is
// not an error; the target simply stays zero-valued.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}

// ToYAML renders the config back to YAML.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToTOML renders the config to TOML (used by `canopy config export`).
func (c *Config) ToTOML() ([]byte, error) {
	return toml.Marshal(c)
}
