// Package engine is the serialization point of the canopy daemon: every
// mutation of correlation and session state flows through one consumer
// goroutine, so event-driven updates and periodic rescans never race.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/canopy/internal/daemon/collector"
	"github.com/grovetools/canopy/internal/daemon/store"
	"github.com/grovetools/canopy/internal/daemon/tracker"
	"github.com/grovetools/canopy/pkg/models"
)

// Engine runs the collectors and the single update-consumer loop.
type Engine struct {
	store      *store.Store
	tracker    *tracker.Tracker
	collectors []collector.Collector
	updates    chan store.Update
	logger     *logrus.Entry
}

// New creates a new Engine instance. The tracker is attached separately
// because it needs the engine's Enqueue as its sink.
func New(st *store.Store, logger *logrus.Entry) *Engine {
	return &Engine{
		store:   st,
		updates: make(chan store.Update, 100),
		logger:  logger,
	}
}

// SetTracker attaches the session tracker. Must be called before Start.
func (e *Engine) SetTracker(tr *tracker.Tracker) {
	e.tracker = tr
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Enqueue submits an update for serialized application. Safe to call
// from any goroutine.
func (e *Engine) Enqueue(u store.Update) {
	e.updates <- u
}

// Store returns the engine's published-state store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Start runs the consumer loop and all collectors, blocking until the
// context is canceled.
func (e *Engine) Start(ctx context.Context) {
	var wg sync.WaitGroup

	// 1. Start Update Consumer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-e.updates:
				e.apply(u)
			}
		}
	}()

	// 2. Start Collectors
	for _, c := range e.collectors {
		wg.Add(1)
		go func(col collector.Collector) {
			defer wg.Done()
			e.logger.WithField("collector", col.Name()).Info("Starting collector")
			if err := col.Run(ctx, e.store, e.updates); err != nil {
				e.logger.WithField("collector", col.Name()).WithError(err).Error("Collector failed")
			}
		}(c)
	}

	wg.Wait()
}

// apply routes one update into the tracker and publishes the resulting
// snapshot. This is the only place session state is mutated.
func (e *Engine) apply(u store.Update) {
	now := time.Now()

	switch u.Type {
	case store.UpdateScan:
		if scan, ok := u.Payload.(store.ScanResult); ok {
			e.tracker.ApplyScan(scan.Processes, now)
		}
	case store.UpdateHook:
		if ev, ok := u.Payload.(models.HookEvent); ok {
			e.tracker.ApplyHook(ev, now)
		}
	case store.UpdateUsage:
		if res, ok := u.Payload.(store.UsageResult); ok {
			e.tracker.ApplyUsage(res)
		}
	case store.UpdateAck:
		if pid, ok := u.Payload.(int); ok {
			e.tracker.Acknowledge(pid)
		}
	case store.UpdateReorder:
		if req, ok := u.Payload.(store.ReorderRequest); ok {
			e.tracker.Reorder(req.PID, req.Index)
		}
	case store.UpdateRefresh:
		if pid, ok := u.Payload.(int); ok {
			e.tracker.Refresh(pid)
		}
	}

	e.store.Publish(e.tracker.Snapshot(), u)
}
