package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/canopy/internal/daemon/correlate"
	"github.com/grovetools/canopy/internal/daemon/store"
	"github.com/grovetools/canopy/internal/daemon/tracker"
	"github.com/grovetools/canopy/pkg/models"
	"github.com/grovetools/canopy/pkg/transcript"
)

func newEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	logger := l.WithField("component", "test")

	st := store.New()
	eng := New(st, logger)
	tr := tracker.New(logger, correlate.New(logger), transcript.NewStore(nil), eng.Enqueue, nil)
	eng.SetTracker(tr)
	return eng, st
}

// waitForSessions polls the store until cond holds or the deadline passes.
func waitForSessions(t *testing.T, st *store.Store, cond func([]*models.SessionRecord) bool) []*models.SessionRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := st.GetSessions()
		if cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
	return nil
}

func TestEngineSerializesScanAndHook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t1.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"sessionId":"S1","cwd":"/home/u/proj"}`+"\n"), 0644))

	eng, st := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Start(ctx)

	eng.Enqueue(store.Update{
		Type:    store.UpdateScan,
		Source:  "test",
		Payload: store.ScanResult{Processes: []models.ProcessIdentity{{PID: 100, WorkingDirectory: "/home/u/proj"}}},
	})
	waitForSessions(t, st, func(s []*models.SessionRecord) bool { return len(s) == 1 })

	eng.Enqueue(store.Update{
		Type:   store.UpdateHook,
		Source: "server",
		Payload: models.HookEvent{
			Kind:           models.HookPreToolUse,
			SessionID:      "S1",
			TranscriptPath: path,
			ToolName:       "Edit",
		},
	})

	snap := waitForSessions(t, st, func(s []*models.SessionRecord) bool {
		return len(s) == 1 && s[0].State == models.StateWorking
	})
	assert.Equal(t, "Edit", snap[0].CurrentTool)
	assert.Equal(t, "S1", snap[0].SessionID)
}

func TestEngineAckAndReorder(t *testing.T) {
	eng, st := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Start(ctx)

	eng.Enqueue(store.Update{
		Type:    store.UpdateScan,
		Payload: store.ScanResult{Processes: []models.ProcessIdentity{{PID: 100}, {PID: 200}}},
	})
	waitForSessions(t, st, func(s []*models.SessionRecord) bool { return len(s) == 2 })

	eng.Enqueue(store.Update{Type: store.UpdateReorder, Payload: store.ReorderRequest{PID: 200, Index: 0}})
	snap := waitForSessions(t, st, func(s []*models.SessionRecord) bool {
		return len(s) == 2 && s[0].PID == 200
	})
	assert.Equal(t, 100, snap[1].PID)
}

func TestEngineBroadcastsAppliedUpdates(t *testing.T) {
	eng, st := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	go eng.Start(ctx)

	eng.Enqueue(store.Update{Type: store.UpdateScan, Source: "test", Payload: store.ScanResult{}})

	select {
	case u := <-ch:
		assert.Equal(t, store.UpdateScan, u.Type)
		assert.Equal(t, "test", u.Source)
	case <-time.After(5 * time.Second):
		t.Fatal("no broadcast received")
	}
}
