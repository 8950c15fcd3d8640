package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBytes(t *testing.T) {
	yamlContent := []byte(`
version: "1.0"
listener:
  port: 9911
scan:
  interval: 45s
  process_name: claude
  ignore:
    - "/tmp/**"
pricing:
  models:
    sonnet:
      input_per_mtok: 2.5
      output_per_mtok: 12.0
`)

	cfg, err := LoadFromBytes(yamlContent)
	require.NoError(t, err)

	assert.Equal(t, 9911, cfg.Listener.Port)
	assert.Equal(t, 45*time.Second, cfg.ScanInterval())
	assert.Equal(t, "claude", cfg.Scan.ProcessName)
	assert.Equal(t, []string{"/tmp/**"}, cfg.Scan.Ignore)
	assert.Equal(t, 2.5, cfg.Pricing.Models["sonnet"].InputPerMTok)
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`version: "1.0"`))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Listener.Port)
	assert.Equal(t, DefaultScanInterval, cfg.ScanInterval())
	assert.Equal(t, DefaultProcessName, cfg.Scan.ProcessName)
	assert.Empty(t, cfg.Pricing.Models)
}

func TestExtensions(t *testing.T) {
	yamlContent := []byte(`
version: "1.0"

# Extension section consumed by the logging package
logging:
  level: debug
  report_caller: true

notifications:
  sound: submarine
`)

	cfg, err := LoadFromBytes(yamlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg.Extensions)

	type LoggingExt struct {
		Level        string `yaml:"level"`
		ReportCaller bool   `yaml:"report_caller"`
	}
	var logExt LoggingExt
	require.NoError(t, cfg.UnmarshalExtension("logging", &logExt))
	assert.Equal(t, "debug", logExt.Level)
	assert.True(t, logExt.ReportCaller)

	// Missing extension keys are not an error
	var missing LoggingExt
	require.NoError(t, cfg.UnmarshalExtension("nope", &missing))
	assert.Empty(t, missing.Level)
}

func TestValidation(t *testing.T) {
	_, err := LoadFromBytes([]byte("version: \"1.0\"\nlistener:\n  port: 99999\n"))
	assert.Error(t, err)

	_, err = LoadFromBytes([]byte("version: \"1.0\"\nscan:\n  interval: soon\n"))
	assert.Error(t, err)

	_, err = LoadFromBytes([]byte("version: \"1.0\"\npricing:\n  models:\n    opus:\n      input_per_mtok: -1\n"))
	assert.Error(t, err)
}

func TestLoadFromTOMLBytes(t *testing.T) {
	tomlContent := []byte(`
version = "1.0"

[listener]
port = 8001

[scan]
interval = "30s"
`)

	cfg, err := LoadFromTOMLBytes(tomlContent)
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Listener.Port)
	assert.Equal(t, 30*time.Second, cfg.ScanInterval())
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("CANOPY_TEST_PORT", "7001")
	cfg, err := LoadFromBytes([]byte("version: \"1.0\"\nlistener:\n  port: ${CANOPY_TEST_PORT}\n"))
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Listener.Port)
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	cfgPath := filepath.Join(root, ConfigFileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte("version: \"1.0\"\n"), 0644))

	found, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, found)
}

func TestLoadFromMissingConfigUsesDefaults(t *testing.T) {
	t.Setenv("CANOPY_HOME", t.TempDir())
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Listener.Port)
}
