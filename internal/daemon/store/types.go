// Package store provides the in-memory published state for the canopy daemon.
package store

import (
	"github.com/grovetools/canopy/pkg/models"
	"github.com/grovetools/canopy/pkg/transcript"
)

// UpdateType defines what kind of event is flowing through the engine.
type UpdateType string

const (
	UpdateScan         UpdateType = "scan"
	UpdateHook         UpdateType = "hook"
	UpdateUsage        UpdateType = "usage"
	UpdateAck          UpdateType = "ack"
	UpdateReorder      UpdateType = "reorder"
	UpdateRefresh      UpdateType = "refresh"
	UpdateConfigReload UpdateType = "config_reload"
)

// Update represents a single event to be applied by the engine's consumer
// loop. Producers (the HTTP server, collectors, refresh workers) construct
// these; only the engine applies them.
type Update struct {
	Type    UpdateType
	Source  string // Which producer sent this update (e.g., "server", "procscan", "refresh")
	Payload interface{}
}

// UsageResult is the payload of an UpdateUsage update, carrying the outcome
// of an asynchronous transcript read back into the serialized apply loop.
type UsageResult struct {
	PID       int
	SessionID string
	Task      string
	Usage     transcript.Usage
	Cost      float64
}

// ScanResult is the payload of an UpdateScan update: the full set of
// candidate processes observed in one discovery pass.
type ScanResult struct {
	Processes []models.ProcessIdentity
}

// ReorderRequest is the payload of an UpdateReorder update: move the
// session for PID to display position Index.
type ReorderRequest struct {
	PID   int
	Index int
}
