package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/canopy/internal/daemon/correlate"
	"github.com/grovetools/canopy/internal/daemon/engine"
	"github.com/grovetools/canopy/internal/daemon/store"
	"github.com/grovetools/canopy/internal/daemon/tracker"
	"github.com/grovetools/canopy/pkg/models"
	"github.com/grovetools/canopy/pkg/transcript"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "test")
}

// daemonFixture wires a full server+engine+tracker stack around httptest.
type daemonFixture struct {
	ts  *httptest.Server
	eng *engine.Engine
	st  *store.Store
}

func newFixture(t *testing.T) *daemonFixture {
	t.Helper()
	logger := testLogger()

	st := store.New()
	eng := engine.New(st, logger)
	tr := tracker.New(logger, correlate.New(logger), transcript.NewStore(nil), eng.Enqueue, nil)
	eng.SetTracker(tr)

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Start(ctx)
	t.Cleanup(cancel)

	srv := New(logger)
	srv.SetEngine(eng)
	srv.SetRunningConfig(&RunningConfig{
		ListenPort:   7842,
		ScanInterval: 20 * time.Second,
		ProcessName:  "claude",
		StartedAt:    time.Now(),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &daemonFixture{ts: ts, eng: eng, st: st}
}

func (f *daemonFixture) scan(procs ...models.ProcessIdentity) {
	f.eng.Enqueue(store.Update{
		Type:    store.UpdateScan,
		Source:  "test",
		Payload: store.ScanResult{Processes: procs},
	})
}

// waitFor polls the store until cond holds.
func (f *daemonFixture) waitFor(t *testing.T, cond func([]*models.SessionRecord) bool) []*models.SessionRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := f.st.GetSessions()
		if cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
	return nil
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func writeTranscript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHookMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ts.URL + "/hook/pretooluse")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHookUnknownKind(t *testing.T) {
	f := newFixture(t)
	resp := postJSON(t, f.ts.URL+"/hook/bogus", `{"session_id":"s","transcript_path":"/t"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHookMalformedBodyLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.scan(models.ProcessIdentity{PID: 100, WorkingDirectory: "/home/u/a"})
	before := f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 })

	for _, body := range []string{"{not json", `{"transcript_path":"/t"}`, `{"session_id":"s"}`, ""} {
		resp := postJSON(t, f.ts.URL+"/hook/pretooluse", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}

	after := f.st.GetSessions()
	require.Len(t, after, 1)
	assert.Equal(t, before[0].State, after[0].State)
	assert.Equal(t, before[0].SessionID, after[0].SessionID)
}

func TestHookAcknowledgment(t *testing.T) {
	f := newFixture(t)
	f.scan(models.ProcessIdentity{PID: 100})
	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 })

	path := writeTranscript(t, "t1.jsonl", `{"sessionId":"S1","cwd":"/home/u/a"}`+"\n")
	resp := postJSON(t, f.ts.URL+"/hook/pretooluse", `{"session_id":"S1","transcript_path":"`+path+`","tool_name":"Bash"}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestHookLifecycleWorkingToWaiting(t *testing.T) {
	f := newFixture(t)
	f.scan(models.ProcessIdentity{PID: 100, WorkingDirectory: "/home/u/proj"})
	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 })

	path := writeTranscript(t, "t1.jsonl", `{"sessionId":"S1","cwd":"/home/u/proj"}`+"\n")

	resp := postJSON(t, f.ts.URL+"/hook/pretooluse", `{"session_id":"S1","transcript_path":"`+path+`","tool_name":"Bash"}`)
	resp.Body.Close()
	snap := f.waitFor(t, func(s []*models.SessionRecord) bool {
		return len(s) == 1 && s[0].State == models.StateWorking
	})
	assert.Equal(t, "Bash", snap[0].CurrentTool)

	resp = postJSON(t, f.ts.URL+"/hook/stop", `{"session_id":"S1","transcript_path":"`+path+`"}`)
	resp.Body.Close()
	snap = f.waitFor(t, func(s []*models.SessionRecord) bool {
		return len(s) == 1 && s[0].State == models.StateWaiting
	})
	assert.Empty(t, snap[0].CurrentTool)
	assert.True(t, snap[0].PendingOutput)
}

func TestGetSessions(t *testing.T) {
	f := newFixture(t)
	f.scan(models.ProcessIdentity{PID: 100, WorkingDirectory: "/home/u/a"})
	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 })

	resp, err := http.Get(f.ts.URL + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessions []*models.SessionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, 100, sessions[0].PID)
	assert.Equal(t, models.StateIdle, sessions[0].State)
}

func TestSessionActionUnknownPid(t *testing.T) {
	f := newFixture(t)
	resp := postJSON(t, f.ts.URL+"/api/sessions/999/ack", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionAck(t *testing.T) {
	f := newFixture(t)
	f.scan(models.ProcessIdentity{PID: 100})
	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 })

	path := writeTranscript(t, "t1.jsonl", `{"sessionId":"S1"}`+"\n")
	resp := postJSON(t, f.ts.URL+"/hook/stop", `{"session_id":"S1","transcript_path":"`+path+`"}`)
	resp.Body.Close()
	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 && s[0].PendingOutput })

	resp = postJSON(t, f.ts.URL+"/api/sessions/100/ack", "")
	resp.Body.Close()
	snap := f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 && !s[0].PendingOutput })
	// Classification is untouched by ack.
	assert.Equal(t, models.StateWaiting, snap[0].State)
}

func TestSessionReorder(t *testing.T) {
	f := newFixture(t)
	f.scan(models.ProcessIdentity{PID: 100}, models.ProcessIdentity{PID: 200})
	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 2 })

	resp := postJSON(t, f.ts.URL+"/api/sessions/200/reorder", `{"index":0}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 2 && s[0].PID == 200 })

	// Malformed body is rejected.
	resp = postJSON(t, f.ts.URL+"/api/sessions/200/reorder", "{bad")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionRefreshUpdatesUsage(t *testing.T) {
	f := newFixture(t)
	f.scan(models.ProcessIdentity{PID: 100, WorkingDirectory: "/home/u/proj"})
	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 })

	path := writeTranscript(t, "t1.jsonl", `{"sessionId":"S1","cwd":"/home/u/proj"}
{"type":"summary","summary":"Refactor the scanner"}
{"message":{"model":"claude-sonnet-4","usage":{"input_tokens":100,"output_tokens":50}}}
{"message":{"usage":{"input_tokens":20,"output_tokens":5}}}
`)
	resp := postJSON(t, f.ts.URL+"/hook/pretooluse", `{"session_id":"S1","transcript_path":"`+path+`","tool_name":"Read"}`)
	resp.Body.Close()
	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 && s[0].SessionID == "S1" })

	resp = postJSON(t, f.ts.URL+"/api/sessions/100/refresh", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	snap := f.waitFor(t, func(s []*models.SessionRecord) bool {
		return len(s) == 1 && s[0].InputTokens == 120
	})
	assert.Equal(t, int64(55), snap[0].OutputTokens)
	assert.Equal(t, "Refactor the scanner", snap[0].TaskDescription)
	assert.Greater(t, snap[0].Cost, 0.0)
}

func TestGetConfig(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ts.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cfg RunningConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, 7842, cfg.ListenPort)
	assert.Equal(t, "claude", cfg.ProcessName)
}

func TestStreamStateSSE(t *testing.T) {
	f := newFixture(t)
	f.scan(models.ProcessIdentity{PID: 100})
	f.waitFor(t, func(s []*models.SessionRecord) bool { return len(s) == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ts.URL+"/api/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// First frame is the connection comment, then the initial snapshot.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, ": connected"))

	var dataLine string
	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			dataLine = strings.TrimPrefix(line, "data: ")
			break
		}
	}

	var update apiStateUpdate
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(dataLine)), &update))
	assert.Equal(t, "initial", update.UpdateType)
	require.Len(t, update.Sessions, 1)
	assert.Equal(t, 100, update.Sessions[0].PID)
}
