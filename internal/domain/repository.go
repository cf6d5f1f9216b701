package domain

import (
	"context"
	"time"
)

// Clock supplies wall-clock time. The orchestrator reads time only through it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ForegroundProvider reports the frontmost application.
// Implementation: osascript against System Events.
type ForegroundProvider interface {
	// CurrentForegroundAppID returns the bundle identifier of the frontmost app.
	// An empty string means no application could be identified.
	CurrentForegroundAppID(ctx context.Context) (string, error)
}

// DomainProvider extracts the active tab's domain for supported browsers.
type DomainProvider interface {
	// CurrentDomain never fails: when no domain can be produced it returns
	// Available=false with an advisory reason.
	CurrentDomain(ctx context.Context, foregroundAppID string) DomainResult
}

// NotificationController toggles system notifications.
// Implementations must skip a request identical to the last applied one.
type NotificationController interface {
	SetNotifications(ctx context.Context, desired NotificationState) error
}

// ProcessManager handles OS process lookups.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// FocusSettingsStore persists the single FocusSettings record.
type FocusSettingsStore interface {
	// Load returns saved settings, or defaults when none were saved.
	Load() (FocusSettings, error)
	Save(settings FocusSettings) error
}

// FocusEntityStore persists focus entities.
type FocusEntityStore interface {
	// List returns enabled and disabled entities.
	List() ([]FocusEntity, error)
	Upsert(entity FocusEntity) error
	Delete(id string) error
}

// FocusEventStore is the append-only event log.
type FocusEventStore interface {
	Append(event FocusEvent) error
}

// FocusEventReader reads back the event log (CLI / diagnostics).
type FocusEventReader interface {
	// RecentEvents returns up to limit events, newest first.
	RecentEvents(limit int) ([]FocusEvent, error)
}

// FocusSessionStore persists session lifecycle.
type FocusSessionStore interface {
	Start(session FocusSession) error
	End(sessionID string, endedAt time.Time, reason EndReason, totalSecondsInFocusMode int) error
}

// FocusSessionReader reads back sessions (CLI / diagnostics).
type FocusSessionReader interface {
	GetSession(id string) (*FocusSession, error)
	// RecentSessions returns up to limit sessions, most recently started first.
	RecentSessions(limit int) ([]FocusSession, error)
}

// KeyProvider abstracts the source of the database encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// LaunchAgentManager handles the macOS LaunchAgent that starts the daemon on login.
type LaunchAgentManager interface {
	// Install creates and loads the LaunchAgent plist.
	Install(execPath string) error

	// Uninstall unloads and removes the LaunchAgent plist.
	Uninstall() error

	// IsInstalled checks if LaunchAgent is installed.
	IsInstalled() bool

	// GetPlistPath returns the plist file path.
	GetPlistPath() string
}
