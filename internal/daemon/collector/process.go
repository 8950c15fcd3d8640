package collector

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/canopy/internal/daemon/store"
	"github.com/grovetools/canopy/pkg/procscan"
)

// ProcessCollector rescans the OS process table on a fixed interval and
// emits the full candidate set. Pid liveness from these scans is the
// sole source of truth for session garbage collection.
type ProcessCollector struct {
	scanner  procscan.Scanner
	interval time.Duration
	logger   *logrus.Entry
}

// NewProcessCollector creates a new ProcessCollector.
func NewProcessCollector(scanner procscan.Scanner, interval time.Duration, logger *logrus.Entry) *ProcessCollector {
	return &ProcessCollector{
		scanner:  scanner,
		interval: interval,
		logger:   logger,
	}
}

// Name returns the collector's name.
func (c *ProcessCollector) Name() string { return "procscan" }

// Run starts the rescan loop.
func (c *ProcessCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	scan := func() {
		procs, err := c.scanner.List(ctx)
		if err != nil {
			// A failed scan degrades to "no change" rather than tearing
			// down every session record.
			c.logger.WithError(err).Warn("Process scan failed")
			return
		}
		updates <- store.Update{
			Type:    store.UpdateScan,
			Source:  c.Name(),
			Payload: store.ScanResult{Processes: procs},
		}
	}

	scan()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		}
	}
}
