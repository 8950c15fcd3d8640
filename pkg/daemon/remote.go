package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/grovetools/canopy/errors"
	"github.com/grovetools/canopy/pkg/models"
)

// RemoteClient implements Client by calling the daemon's HTTP API on its
// loopback port.
type RemoteClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewRemoteClient creates a RemoteClient for a daemon on the given port.
func NewRemoteClient(port int) *RemoteClient {
	return &RemoteClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
	}
}

// GetSessions returns the published session list from the daemon.
func (c *RemoteClient) GetSessions(ctx context.Context) ([]*models.SessionRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.DaemonNotRunning()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	var sessions []*models.SessionRecord
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

// Refresh triggers an on-demand usage refresh for one session.
func (c *RemoteClient) Refresh(ctx context.Context, pid int) error {
	return c.postAction(ctx, pid, "refresh", nil)
}

// Acknowledge clears the session's pending-output flag.
func (c *RemoteClient) Acknowledge(ctx context.Context, pid int) error {
	return c.postAction(ctx, pid, "ack", nil)
}

// Reorder moves the session to a new display position.
func (c *RemoteClient) Reorder(ctx context.Context, pid, index int) error {
	body, _ := json.Marshal(map[string]int{"index": index})
	return c.postAction(ctx, pid, "reorder", body)
}

func (c *RemoteClient) postAction(ctx context.Context, pid int, action string, body []byte) error {
	url := fmt.Sprintf("%s/api/sessions/%d/%s", c.baseURL, pid, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.DaemonNotRunning()
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("no session with pid %d", pid)
	default:
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamState subscribes to real-time state updates via Server-Sent
// Events (SSE). The channel is closed when the context is cancelled or
// the connection is lost.
func (c *RemoteClient) StreamState(ctx context.Context) (<-chan StateUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// Use a separate client with no timeout for streaming
	streamClient := &http.Client{Timeout: 0}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, errors.DaemonNotRunning()
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	ch := make(chan StateUpdate, 10)

	go func() {
		defer resp.Body.Close()
		defer close(ch)

		scanner := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()

			// Skip comments and empty lines
			if strings.HasPrefix(line, ":") || line == "" {
				continue
			}

			if strings.HasPrefix(line, "data: ") {
				jsonStr := strings.TrimPrefix(line, "data: ")
				var update StateUpdate
				if err := json.Unmarshal([]byte(jsonStr), &update); err != nil {
					continue // Skip malformed data
				}

				select {
				case ch <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
