package models

import "time"

// SessionState classifies what a bound session is currently doing.
type SessionState string

const (
	// StateIdle means the process was discovered but no hook event has
	// arrived for it yet.
	StateIdle SessionState = "idle"
	// StateWorking means a tool is (or was recently) executing.
	StateWorking SessionState = "working"
	// StateWaiting means the session stopped or notified and is waiting
	// for the user.
	StateWaiting SessionState = "waiting"
)

// SessionMapping binds a logical session id to a concrete OS process.
// At most one live mapping exists per session id, and at most one
// session id maps to a given live pid. Once established, a mapping is
// stable while its pid remains live.
type SessionMapping struct {
	SessionID     string    `json:"session_id"`
	PID           int       `json:"pid"`
	Confidence    float64   `json:"confidence"` // always in [0,1]
	Method        string    `json:"method"`
	EstablishedAt time.Time `json:"established_at"`
}

// SessionRecord is the published per-process entity consumed by UI and
// notification collaborators. Keyed by PID; created when a pid is first
// discovered, deleted when a scan no longer observes it.
type SessionRecord struct {
	PID              int          `json:"pid"`
	SessionID        string       `json:"session_id,omitempty"`
	WorkingDirectory string       `json:"working_directory,omitempty"`
	TTY              string       `json:"tty,omitempty"`
	TranscriptPath   string       `json:"transcript_path,omitempty"`
	State            SessionState `json:"state"`
	CurrentTool      string       `json:"current_tool,omitempty"`
	PendingOutput    bool         `json:"pending_output"`
	TaskDescription  string       `json:"task_description,omitempty"`
	Model            string       `json:"model,omitempty"`
	InputTokens      int64        `json:"input_tokens"`
	OutputTokens     int64        `json:"output_tokens"`
	Cost             float64      `json:"cost"`
	Confidence       float64      `json:"confidence,omitempty"`
	Method           string       `json:"method,omitempty"`
	StartedAt        time.Time    `json:"started_at"`
	LastActivity     time.Time    `json:"last_activity"`
}

// Clone returns a copy safe to hand to consumers outside the
// serialization point.
func (r *SessionRecord) Clone() *SessionRecord {
	c := *r
	return &c
}
