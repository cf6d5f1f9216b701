package domain

import "time"

// DaemonStatus is the daemon's most recent published state, shared with the
// CLI through the status file.
type DaemonStatus struct {
	PID                int        `json:"pid"`
	Phase              string     `json:"phase"`
	SecondsAccumulated int        `json:"seconds_accumulated,omitempty"`
	SessionID          string     `json:"session_id,omitempty"`
	SessionStartedAt   *time.Time `json:"session_started_at,omitempty"`
	BufferEndsAt       *time.Time `json:"buffer_ends_at,omitempty"`
	EntityID           string     `json:"entity_id,omitempty"`
	AppID              string     `json:"app_id,omitempty"`
	Domain             string     `json:"domain,omitempty"`
	DomainReason       string     `json:"domain_reason,omitempty"`
	FocusSeconds       int        `json:"focus_seconds"`
	LastError          string     `json:"last_error,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsStale reports whether the status is older than maxAge at now.
func (s DaemonStatus) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.UpdatedAt) > maxAge
}
