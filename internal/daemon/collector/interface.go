// Package collector provides background workers that feed updates into
// the daemon's engine.
package collector

import (
	"context"

	"github.com/grovetools/canopy/internal/daemon/store"
)

// Collector is a background worker that gathers data and emits updates.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run starts the collector. It should block until context is canceled.
	// It emits updates via the updates channel and may read published
	// state from the store (thread-safe).
	Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error
}
