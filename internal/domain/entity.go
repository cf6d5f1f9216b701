// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"time"
)

// Sentinel errors returned by store implementations.
var (
	ErrEntityNotFound  = errors.New("focus entity not found")
	ErrSessionNotFound = errors.New("focus session not found")
	ErrDuplicateEntity = errors.New("an enabled focus entity with the same type and match value already exists")
	ErrInvalidEntity   = errors.New("invalid focus entity")
)

// ForegroundContext is what the user is currently looking at.
// Empty strings mean "absent": Domain is only set when the foreground app is a
// supported browser and a domain could be extracted.
type ForegroundContext struct {
	AppID  string
	Domain string
}

// Minimum effective values regardless of what is stored.
const (
	MinActivationSeconds = 60
	MinBufferSeconds     = 0
)

// Defaults used when no settings have been saved yet.
const (
	DefaultActivationMinutes = 12
	DefaultBufferSeconds     = 30
)

// FocusSettings is the user-tunable focus policy, loaded fresh every poll.
type FocusSettings struct {
	ActivationMinutes int `json:"activation_minutes"`
	BufferSeconds     int `json:"buffer_seconds"`
}

// DefaultFocusSettings returns the settings used before the user saves any.
func DefaultFocusSettings() FocusSettings {
	return FocusSettings{
		ActivationMinutes: DefaultActivationMinutes,
		BufferSeconds:     DefaultBufferSeconds,
	}
}

// EffectiveActivationSeconds is the dwell threshold, clamped to at least 60s.
func (s FocusSettings) EffectiveActivationSeconds() int {
	return max(MinActivationSeconds, s.ActivationMinutes*60)
}

// EffectiveBufferSeconds is the grace period, clamped to at least 0s.
func (s FocusSettings) EffectiveBufferSeconds() int {
	return max(MinBufferSeconds, s.BufferSeconds)
}

// EntityType distinguishes app entities from domain entities.
type EntityType string

const (
	EntityTypeApp    EntityType = "app"
	EntityTypeDomain EntityType = "domain"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t == EntityTypeApp || t == EntityTypeDomain
}

// FocusEntity is a configured application or web domain that counts as focus.
type FocusEntity struct {
	ID          string
	Type        EntityType
	DisplayName string
	MatchValue  string // bundle id for apps, lowercased host for domains
	IsEnabled   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventKind identifies a FocusEvent.
type EventKind string

const (
	EventForegroundChanged EventKind = "foregroundChanged"
	EventDomainChanged     EventKind = "domainChanged"
	EventEnteredCounting   EventKind = "enteredCounting"
	EventEnteredFocusMode  EventKind = "enteredFocusMode"
	EventEnteredBuffer     EventKind = "enteredBuffer"
	EventExitedFocusMode   EventKind = "exitedFocusMode"
	EventError             EventKind = "error"
)

// FocusEvent is one append-only audit record.
type FocusEvent struct {
	ID            string
	Timestamp     time.Time
	Kind          EventKind
	AppID         string
	Domain        string
	FocusEntityID string
	Details       string
}

// EndReason records why a session ended.
type EndReason string

const (
	EndReasonLeftFocusEntities EndReason = "leftFocusEntities"
	EndReasonBufferTimeout     EndReason = "bufferTimeout"
	EndReasonUserDisabled      EndReason = "userDisabled"
	EndReasonError             EndReason = "error"
)

// FocusSession is one contiguous (possibly buffer-extended) focus interval.
// ActivationMinutes and BufferSeconds are a snapshot taken at session start.
type FocusSession struct {
	ID                      string
	StartedAt               time.Time
	EndedAt                 *time.Time
	ActivationMinutes       int
	BufferSeconds           int
	EndedReason             EndReason // empty while the session is open
	TotalSecondsInFocusMode int
}

// IsOpen reports whether the session has not been finalized yet.
func (s FocusSession) IsOpen() bool {
	return s.EndedAt == nil
}

// DomainUnavailableReason explains why no domain could be produced.
// It is advisory only.
type DomainUnavailableReason string

const (
	DomainPermissionDenied   DomainUnavailableReason = "permissionDenied"
	DomainUnsupportedBrowser DomainUnavailableReason = "unsupportedBrowser"
	DomainNoActiveTab        DomainUnavailableReason = "noActiveTab"
	DomainScriptError        DomainUnavailableReason = "scriptError"
	DomainUnknown            DomainUnavailableReason = "unknown"
)

// DomainResult is the typed outcome of a domain lookup. Unavailability is not an error.
type DomainResult struct {
	Domain    string
	Available bool
	Reason    DomainUnavailableReason
}

// DomainAvailable builds a successful DomainResult.
func DomainAvailable(domain string) DomainResult {
	return DomainResult{Domain: domain, Available: true}
}

// DomainUnavailable builds a DomainResult carrying the reason no domain was produced.
func DomainUnavailable(reason DomainUnavailableReason) DomainResult {
	return DomainResult{Reason: reason}
}

// NotificationState is the desired system notification state.
type NotificationState string

const (
	NotificationsEnabled  NotificationState = "enabled"
	NotificationsDisabled NotificationState = "disabled"
)
