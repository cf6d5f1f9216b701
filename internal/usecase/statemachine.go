// Package usecase contains application business logic.
package usecase

import (
	"time"

	"github.com/google/uuid"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

// IDGenerator produces new session ids.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string {
	return uuid.NewString()
}

// StateMachine is the deterministic focus state machine.
// It performs no I/O and reads no clock: time arrives through the now
// parameter. It has no internal locking and must be owned by one goroutine.
type StateMachine struct {
	state domain.FocusState
	newID IDGenerator
}

// NewStateMachine creates a machine in the Idle phase.
func NewStateMachine() *StateMachine {
	return NewStateMachineWithState(domain.FocusState{Phase: domain.IdlePhase()}, NewUUID)
}

// NewStateMachineWithState creates a machine with a custom initial state and id generator (for testing).
func NewStateMachineWithState(initial domain.FocusState, newID IDGenerator) *StateMachine {
	if newID == nil {
		newID = NewUUID
	}
	return &StateMachine{state: initial, newID: newID}
}

// State returns a copy of the current state.
func (m *StateMachine) State() domain.FocusState {
	return m.state
}

// UpdateContext applies a context change. matchedEntityID is empty when the
// context resolved to no focus entity.
func (m *StateMachine) UpdateContext(
	ctx domain.ForegroundContext,
	matchedEntityID string,
	settings domain.FocusSettings,
	now time.Time,
) domain.Output {
	m.state.CurrentContext = ctx
	m.state.CurrentEntityID = matchedEntityID
	matched := matchedEntityID != ""

	phase := m.state.Phase
	switch phase.Kind {
	case domain.PhaseIdle:
		if matched {
			m.state.Phase = domain.CountingPhase(0)
			return domain.Output{Kind: domain.OutputEnteredCounting}
		}
		return domain.NoOutput

	case domain.PhaseCounting:
		if !matched {
			m.state.Phase = domain.IdlePhase()
		}
		// Counting only advances through Tick.
		return domain.NoOutput

	case domain.PhaseInFocusMode:
		if matched {
			return domain.NoOutput
		}
		buffer := settings.EffectiveBufferSeconds()
		if buffer > 0 {
			until := now.Add(time.Duration(buffer) * time.Second)
			m.state.Phase = domain.BufferingPhase(phase.SessionID, phase.StartedAt, until)
			return domain.Output{Kind: domain.OutputEnteredBuffer, SessionID: phase.SessionID, Until: until}
		}
		m.state.Phase = domain.IdlePhase()
		return domain.Output{
			Kind:      domain.OutputExitedFocusMode,
			SessionID: phase.SessionID,
			EndReason: domain.EndReasonLeftFocusEntities,
		}

	case domain.PhaseBuffering:
		if matched {
			m.state.Phase = domain.InFocusModePhase(phase.SessionID, phase.StartedAt)
			return domain.NoOutput
		}
		return m.expireBuffer(phase, now)
	}

	return domain.NoOutput
}

// Tick advances time-dependent phases by elapsedSeconds. Negative values count as zero.
func (m *StateMachine) Tick(elapsedSeconds int, settings domain.FocusSettings, now time.Time) domain.Output {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}

	phase := m.state.Phase
	switch phase.Kind {
	case domain.PhaseCounting:
		accumulated := phase.SecondsAccumulated + elapsedSeconds
		if accumulated >= settings.EffectiveActivationSeconds() {
			sessionID := m.newID()
			m.state.Phase = domain.InFocusModePhase(sessionID, now)
			return domain.Output{
				Kind:         domain.OutputEnteredFocusMode,
				SessionID:    sessionID,
				DwellSeconds: accumulated,
			}
		}
		m.state.Phase = domain.CountingPhase(accumulated)
		return domain.NoOutput

	case domain.PhaseBuffering:
		return m.expireBuffer(phase, now)
	}

	return domain.NoOutput
}

// expireBuffer ends the session when the buffer deadline has passed.
func (m *StateMachine) expireBuffer(phase domain.Phase, now time.Time) domain.Output {
	if now.Before(phase.BufferEndsAt) {
		return domain.NoOutput
	}
	m.state.Phase = domain.IdlePhase()
	return domain.Output{
		Kind:      domain.OutputExitedFocusMode,
		SessionID: phase.SessionID,
		EndReason: domain.EndReasonBufferTimeout,
	}
}

// ForceIdle ends any active phase without output. Used on daemon shutdown,
// where the caller finalizes the session itself. It returns the phase that was left.
func (m *StateMachine) ForceIdle() domain.Phase {
	left := m.state.Phase
	m.state.Phase = domain.IdlePhase()
	return left
}
