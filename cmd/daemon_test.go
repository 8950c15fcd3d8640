package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/grovetools/canopy/config"
	"github.com/grovetools/canopy/internal/daemon/server"
)

func TestRateOverrides(t *testing.T) {
	cfg := &config.Config{}
	assert.Nil(t, rateOverrides(cfg))

	cfg.Pricing.Models = map[string]config.ModelRate{
		"sonnet": {InputPerMTok: 4.0, OutputPerMTok: 20.0},
	}

	overrides := rateOverrides(cfg)
	assert.Equal(t, 4.0, overrides["sonnet"].InputPerMTok)
	assert.Equal(t, 20.0, overrides["sonnet"].OutputPerMTok)
}

func TestRunningConfigFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()

	rc := server.RunningConfig{
		ListenPort:   cfg.Listener.Port,
		ScanInterval: cfg.ScanInterval(),
		ProcessName:  cfg.Scan.ProcessName,
	}

	assert.Equal(t, config.DefaultPort, rc.ListenPort)
	assert.Equal(t, 20*time.Second, rc.ScanInterval)
	assert.Equal(t, "claude", rc.ProcessName)
}
