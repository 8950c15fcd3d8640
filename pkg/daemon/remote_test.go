package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/canopy/pkg/models"
)

// fakeDaemon serves a minimal canopyd API surface for client tests.
func fakeDaemon(t *testing.T) (*RemoteClient, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	client := NewRemoteClient(port)
	t.Cleanup(func() { client.Close() })
	return client, mux
}

func TestGetSessions(t *testing.T) {
	client, mux := fakeDaemon(t)
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*models.SessionRecord{
			{PID: 100, SessionID: "s1", State: models.StateWorking},
		})
	})

	sessions, err := client.GetSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 100, sessions[0].PID)
	assert.Equal(t, models.StateWorking, sessions[0].State)
}

func TestSessionActions(t *testing.T) {
	client, mux := fakeDaemon(t)

	var gotPath string
	var gotIndex int
	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Index int `json:"index"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotIndex = body.Index
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	ctx := context.Background()
	require.NoError(t, client.Refresh(ctx, 100))
	assert.Equal(t, "/api/sessions/100/refresh", gotPath)

	require.NoError(t, client.Acknowledge(ctx, 100))
	assert.Equal(t, "/api/sessions/100/ack", gotPath)

	require.NoError(t, client.Reorder(ctx, 100, 3))
	assert.Equal(t, "/api/sessions/100/reorder", gotPath)
	assert.Equal(t, 3, gotIndex)
}

func TestActionUnknownSession(t *testing.T) {
	client, mux := fakeDaemon(t)
	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown session", http.StatusNotFound)
	})

	err := client.Acknowledge(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42")
}

func TestIsRunning(t *testing.T) {
	client, mux := fakeDaemon(t)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	assert.True(t, client.IsRunning())

	// A port nothing listens on.
	dead := NewRemoteClient(1)
	assert.False(t, dead.IsRunning())
}

func TestStreamState(t *testing.T) {
	client, mux := fakeDaemon(t)
	mux.HandleFunc("/api/stream", func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, ": connected\n\n")
		flusher.Flush()

		update := StateUpdate{UpdateType: "scan", Sessions: []*models.SessionRecord{{PID: 7}}}
		data, _ := json.Marshal(update)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := client.StreamState(ctx)
	require.NoError(t, err)

	select {
	case update := <-ch:
		assert.Equal(t, "scan", update.UpdateType)
		require.Len(t, update.Sessions, 1)
		assert.Equal(t, 7, update.Sessions[0].PID)
	case <-ctx.Done():
		t.Fatal("no update received")
	}
}
