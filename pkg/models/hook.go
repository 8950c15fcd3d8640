package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/grovetools/canopy/errors"
)

// HookKind identifies the lifecycle event a hook call describes.
type HookKind string

const (
	HookPreToolUse   HookKind = "pretooluse"
	HookPostToolUse  HookKind = "posttooluse"
	HookStop         HookKind = "stop"
	HookNotification HookKind = "notification"
)

// ParseHookKind maps a URL path segment to a HookKind.
func ParseHookKind(s string) (HookKind, bool) {
	switch HookKind(strings.ToLower(s)) {
	case HookPreToolUse:
		return HookPreToolUse, true
	case HookPostToolUse:
		return HookPostToolUse, true
	case HookStop:
		return HookStop, true
	case HookNotification:
		return HookNotification, true
	}
	return "", false
}

// ToolDetails carries the optional structured fields a tool invocation
// may include in its hook payload.
type ToolDetails struct {
	Command   string `json:"command,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	OldString string `json:"old_string,omitempty"`
	NewString string `json:"new_string,omitempty"`
	Content   string `json:"content,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// HookEvent is a validated hook notification. The listener parses the
// loosely-typed wire payload into this structure at the boundary;
// nothing non-conforming reaches the correlator.
type HookEvent struct {
	Kind           HookKind     `json:"kind"`
	SessionID      string       `json:"session_id"`
	TranscriptPath string       `json:"transcript_path"`
	ToolName       string       `json:"tool_name,omitempty"`
	ToolDetails    *ToolDetails `json:"tool_details,omitempty"`
	ReceivedAt     time.Time    `json:"received_at"`
}

// hookPayload is the wire shape of a hook POST body.
type hookPayload struct {
	SessionID      string       `json:"session_id"`
	TranscriptPath string       `json:"transcript_path"`
	ToolName       string       `json:"tool_name,omitempty"`
	ToolDetails    *ToolDetails `json:"tool_details,omitempty"`
}

// ParseHookEvent validates a raw hook body into a HookEvent.
// Returns a PROTOCOL_ERROR for anything non-conforming.
func ParseHookEvent(kind HookKind, body []byte, receivedAt time.Time) (*HookEvent, error) {
	var p hookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeProtocol, "hook body is not valid JSON")
	}
	if p.SessionID == "" {
		return nil, errors.ProtocolError("session_id is required")
	}
	if p.TranscriptPath == "" {
		return nil, errors.ProtocolError("transcript_path is required")
	}

	return &HookEvent{
		Kind:           kind,
		SessionID:      p.SessionID,
		TranscriptPath: p.TranscriptPath,
		ToolName:       p.ToolName,
		ToolDetails:    p.ToolDetails,
		ReceivedAt:     receivedAt,
	}, nil
}
