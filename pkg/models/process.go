package models

import "time"

// ProcessIdentity is one live candidate process found by a scan.
// It is rebuilt on every scan; equality is by PID. Attributes other
// than PID are best-effort and may be empty when the OS query could
// not resolve them.
type ProcessIdentity struct {
	PID              int       `json:"pid"`
	StartTime        time.Time `json:"start_time"`
	TTY              string    `json:"tty,omitempty"`
	WorkingDirectory string    `json:"working_directory,omitempty"`
	Command          string    `json:"command,omitempty"`
	DiscoveredAt     time.Time `json:"discovered_at"`
}
