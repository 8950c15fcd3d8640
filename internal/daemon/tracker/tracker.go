// Package tracker maintains the published session records for the canopy
// daemon: one record per discovered pid, carrying its correlated session
// id, activity state, and transcript-derived usage.
//
// The tracker is the sole owner of the record table. It is not
// thread-safe: every method except the goroutine spawned by Refresh must
// be called from the engine's single consumer goroutine.
package tracker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/canopy/internal/daemon/correlate"
	"github.com/grovetools/canopy/internal/daemon/store"
	"github.com/grovetools/canopy/pkg/models"
	"github.com/grovetools/canopy/pkg/transcript"
)

// Sink receives updates produced outside the consumer loop (currently
// only asynchronous refresh results) and feeds them back into it.
type Sink func(store.Update)

// FinishedFunc is invoked when a session transitions to Waiting, so
// collaborators (notifications, UI) can react.
type FinishedFunc func(rec *models.SessionRecord)

// Tracker owns the session-record table and drives the per-session state
// machine from hook events and scans.
type Tracker struct {
	logger      *logrus.Entry
	correlator  *correlate.Correlator
	transcripts *transcript.Store
	sink        Sink
	onFinished  FinishedFunc

	records   map[int]*models.SessionRecord
	order     []int // display order of pids
	processes []models.ProcessIdentity
	refreshes map[int]context.CancelFunc
}

// New creates a Tracker. sink must be non-nil for Refresh to work;
// onFinished may be nil.
func New(logger *logrus.Entry, correlator *correlate.Correlator, transcripts *transcript.Store, sink Sink, onFinished FinishedFunc) *Tracker {
	return &Tracker{
		logger:      logger,
		correlator:  correlator,
		transcripts: transcripts,
		sink:        sink,
		onFinished:  onFinished,
		records:     make(map[int]*models.SessionRecord),
		refreshes:   make(map[int]context.CancelFunc),
	}
}

// ApplyScan replaces the process table from a discovery pass. Records for
// vanished pids are garbage-collected together with their mappings, new
// pids get Idle records, and previously known working directories are
// re-adopted.
func (t *Tracker) ApplyScan(procs []models.ProcessIdentity, now time.Time) {
	t.processes = procs

	live := make(map[int]bool, len(procs))
	for _, p := range procs {
		live[p.PID] = true
	}

	for pid := range t.records {
		if !live[pid] {
			t.remove(pid)
		}
	}
	t.correlator.ReleaseDead(live)

	for _, p := range procs {
		if rec, ok := t.records[p.PID]; ok {
			// Fill attributes that earlier scans could not read.
			if rec.WorkingDirectory == "" {
				rec.WorkingDirectory = p.WorkingDirectory
			}
			if rec.TTY == "" {
				rec.TTY = p.TTY
			}
			continue
		}
		rec := &models.SessionRecord{
			PID:              p.PID,
			WorkingDirectory: p.WorkingDirectory,
			TTY:              p.TTY,
			State:            models.StateIdle,
			StartedAt:        p.StartTime,
			LastActivity:     now,
		}
		t.records[p.PID] = rec
		t.order = append(t.order, p.PID)
		t.logger.WithField("pid", p.PID).Debug("Session discovered")
	}

	for _, m := range t.correlator.AdoptByWorkingDirectory(procs, now) {
		if rec, ok := t.records[m.PID]; ok {
			rec.SessionID = m.SessionID
			rec.Confidence = m.Confidence
			rec.Method = m.Method
		}
	}
}

// ApplyHook correlates the event's session id to a pid and applies the
// state transition. Unresolvable events are dropped with a diagnostic.
func (t *Tracker) ApplyHook(ev models.HookEvent, now time.Time) {
	evidence := correlate.Evidence{
		SessionID:      ev.SessionID,
		TranscriptPath: ev.TranscriptPath,
	}
	entry, err := t.transcripts.Lookup(ev.TranscriptPath)
	if err == nil {
		evidence.WorkingDirectory = entry.Cwd
	}

	mapping, err := t.correlator.Resolve(evidence, t.processes, now)
	if err != nil {
		t.logger.WithError(err).WithField("session_id", ev.SessionID).Warn("Dropping event for unresolvable session")
		return
	}

	rec, ok := t.records[mapping.PID]
	if !ok {
		// Mapping points at a process the record table has not seen yet;
		// synthesize the record so the event is not lost.
		rec = &models.SessionRecord{
			PID:          mapping.PID,
			State:        models.StateIdle,
			LastActivity: now,
		}
		t.records[mapping.PID] = rec
		t.order = append(t.order, mapping.PID)
	}

	rec.SessionID = mapping.SessionID
	rec.TranscriptPath = ev.TranscriptPath
	rec.Confidence = mapping.Confidence
	rec.Method = mapping.Method
	rec.LastActivity = now
	if entry != nil {
		if rec.TaskDescription == "" {
			rec.TaskDescription = entry.TaskDescription
		}
		if rec.Model == "" {
			rec.Model = entry.Usage.Model
		}
	}

	switch ev.Kind {
	case models.HookPreToolUse:
		rec.State = models.StateWorking
		rec.CurrentTool = ev.ToolName
		rec.PendingOutput = false
	case models.HookPostToolUse:
		// Activity timestamp only; the session stays Working.
	case models.HookStop, models.HookNotification:
		rec.State = models.StateWaiting
		rec.CurrentTool = ""
		rec.PendingOutput = true
		if t.onFinished != nil {
			t.onFinished(rec.Clone())
		}
	}
}

// ApplyUsage folds an asynchronous refresh result into the record table.
// Results for pids that died or were remapped in the meantime are
// discarded.
func (t *Tracker) ApplyUsage(res store.UsageResult) {
	rec, ok := t.records[res.PID]
	if !ok || rec.SessionID != res.SessionID {
		return
	}
	rec.TaskDescription = res.Task
	rec.Model = res.Usage.Model
	rec.InputTokens = res.Usage.InputTokens
	rec.OutputTokens = res.Usage.OutputTokens
	rec.Cost = res.Cost
}

// Acknowledge clears the pending-output flag. It never changes the
// Working/Waiting classification.
func (t *Tracker) Acknowledge(pid int) {
	if rec, ok := t.records[pid]; ok {
		rec.PendingOutput = false
	}
}

// Reorder moves a session to a new display position. Display only:
// correlation state is untouched. Out-of-range indexes clamp.
func (t *Tracker) Reorder(pid, index int) {
	pos := -1
	for i, p := range t.order {
		if p == pid {
			pos = i
			break
		}
	}
	if pos == -1 {
		return
	}
	t.order = append(t.order[:pos], t.order[pos+1:]...)
	if index < 0 {
		index = 0
	}
	if index > len(t.order) {
		index = len(t.order)
	}
	t.order = append(t.order[:index], append([]int{pid}, t.order[index:]...)...)
}

// Refresh re-reads the session's transcript off the consumer loop and
// feeds the result back through the sink. A new refresh for the same pid
// supersedes any still-running one.
func (t *Tracker) Refresh(pid int) {
	rec, ok := t.records[pid]
	if !ok || rec.TranscriptPath == "" {
		return
	}

	if cancel, ok := t.refreshes[pid]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.refreshes[pid] = cancel

	sessionID := rec.SessionID
	path := rec.TranscriptPath
	transcripts := t.transcripts
	sink := t.sink
	logger := t.logger

	go func() {
		transcripts.Invalidate(path)
		entry, err := transcripts.Lookup(path)
		if err != nil {
			logger.WithError(err).WithField("pid", pid).Warn("Transcript refresh failed")
			return
		}
		if ctx.Err() != nil {
			return // superseded
		}
		sink(store.Update{
			Type:   store.UpdateUsage,
			Source: "refresh",
			Payload: store.UsageResult{
				PID:       pid,
				SessionID: sessionID,
				Task:      entry.TaskDescription,
				Usage:     entry.Usage,
				Cost:      transcripts.Cost(entry.Usage),
			},
		})
	}()
}

// Snapshot returns deep copies of all records in display order.
func (t *Tracker) Snapshot() []*models.SessionRecord {
	out := make([]*models.SessionRecord, 0, len(t.order))
	for _, pid := range t.order {
		if rec, ok := t.records[pid]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func (t *Tracker) remove(pid int) {
	if cancel, ok := t.refreshes[pid]; ok {
		cancel()
		delete(t.refreshes, pid)
	}
	delete(t.records, pid)
	for i, p := range t.order {
		if p == pid {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.logger.WithField("pid", pid).Debug("Session removed")
}
