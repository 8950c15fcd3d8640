// Package daemon provides a client for interacting with the canopy
// daemon (canopyd) over its local HTTP API.
package daemon

import (
	"context"

	"github.com/grovetools/canopy/pkg/models"
)

// Client defines the interface for interacting with canopyd.
type Client interface {
	// GetSessions returns the published session list in display order.
	GetSessions(ctx context.Context) ([]*models.SessionRecord, error)

	// Refresh triggers an on-demand usage/cost refresh for one session.
	Refresh(ctx context.Context, pid int) error

	// Acknowledge clears the session's pending-output flag.
	Acknowledge(ctx context.Context, pid int) error

	// Reorder moves the session to a new display position.
	Reorder(ctx context.Context, pid, index int) error

	// StreamState subscribes to real-time state updates from the daemon.
	// The returned channel is closed when the context is canceled or the
	// connection is lost.
	StreamState(ctx context.Context) (<-chan StateUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// StateUpdate represents an update pushed from the daemon to subscribers.
type StateUpdate struct {
	UpdateType string                  `json:"update_type"` // "initial", "scan", "hook", "usage", "ack", "reorder", "config_reload"
	Source     string                  `json:"source,omitempty"`
	Sessions   []*models.SessionRecord `json:"sessions"`
	ConfigFile string                  `json:"config_file,omitempty"`
}
