package config

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/canopy/errors"
	"github.com/grovetools/canopy/pkg/paths"
)

// ConfigFileName is the canonical config file name looked up in the
// working directory tree and the XDG config dir.
const ConfigFileName = "canopy.yml"

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and parses a Canopy configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	if filepath.Ext(path) == ".toml" {
		return LoadFromTOMLBytes(data)
	}
	return LoadFromBytes(data)
}

// LoadDefault finds and loads the configuration: canopy.yml in the
// current directory or any parent, else the XDG config dir. A missing
// config is not an error; defaults apply.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration starting the file search from startDir.
func LoadFrom(startDir string) (*Config, error) {
	path, err := FindConfigFile(startDir)
	if err != nil {
		// No config anywhere: run on defaults.
		cfg := &Config{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return Load(path)
}

// LoadFromBytes parses YAML config data, expands ${ENV} references,
// applies defaults and validates.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, err.Error())
	}
	return &cfg, nil
}

// LoadFromTOMLBytes parses TOML config data. Extension sections are a
// YAML-only feature; TOML configs carry the typed settings only.
func LoadFromTOMLBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML config")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, err.Error())
	}
	return &cfg, nil
}

// FindConfigFile searches for canopy.yml from startDir upwards, then
// in the XDG config directory.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if configDir := paths.ConfigDir(); configDir != "" {
		candidate := filepath.Join(configDir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.ConfigNotFound(ConfigFileName)
}

// expandEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRegex.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
