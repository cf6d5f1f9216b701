package domain

import (
	"fmt"
	"time"
)

// PhaseKind enumerates the focus state machine phases.
type PhaseKind int

const (
	PhaseIdle PhaseKind = iota
	PhaseCounting
	PhaseInFocusMode
	PhaseBuffering
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseIdle:
		return "idle"
	case PhaseCounting:
		return "counting"
	case PhaseInFocusMode:
		return "inFocusMode"
	case PhaseBuffering:
		return "buffering"
	default:
		return "unknown"
	}
}

// Phase is a tagged union over PhaseKind. Only the fields relevant to Kind are set:
//   - Counting:    SecondsAccumulated
//   - InFocusMode: SessionID, StartedAt
//   - Buffering:   SessionID, StartedAt, BufferEndsAt
type Phase struct {
	Kind               PhaseKind
	SecondsAccumulated int
	SessionID          string
	StartedAt          time.Time
	BufferEndsAt       time.Time
}

// IdlePhase returns the Idle phase.
func IdlePhase() Phase {
	return Phase{Kind: PhaseIdle}
}

// CountingPhase returns Counting(seconds).
func CountingPhase(seconds int) Phase {
	return Phase{Kind: PhaseCounting, SecondsAccumulated: seconds}
}

// InFocusModePhase returns InFocusMode(sessionID, startedAt).
func InFocusModePhase(sessionID string, startedAt time.Time) Phase {
	return Phase{Kind: PhaseInFocusMode, SessionID: sessionID, StartedAt: startedAt}
}

// BufferingPhase returns Buffering(sessionID, until). startedAt is carried so a
// return to focus keeps the original entry time.
func BufferingPhase(sessionID string, startedAt, until time.Time) Phase {
	return Phase{Kind: PhaseBuffering, SessionID: sessionID, StartedAt: startedAt, BufferEndsAt: until}
}

// HasSession reports whether the phase owns a session id.
func (p Phase) HasSession() bool {
	return p.Kind == PhaseInFocusMode || p.Kind == PhaseBuffering
}

// Equal compares phases, using time.Time.Equal for timestamps.
func (p Phase) Equal(o Phase) bool {
	return p.Kind == o.Kind &&
		p.SecondsAccumulated == o.SecondsAccumulated &&
		p.SessionID == o.SessionID &&
		p.StartedAt.Equal(o.StartedAt) &&
		p.BufferEndsAt.Equal(o.BufferEndsAt)
}

func (p Phase) String() string {
	switch p.Kind {
	case PhaseCounting:
		return fmt.Sprintf("counting(%ds)", p.SecondsAccumulated)
	case PhaseInFocusMode:
		return fmt.Sprintf("inFocusMode(%s)", p.SessionID)
	case PhaseBuffering:
		return fmt.Sprintf("buffering(%s until %s)", p.SessionID, p.BufferEndsAt.Format(time.RFC3339))
	default:
		return p.Kind.String()
	}
}

// FocusState is the in-memory state owned by the orchestrator. Never persisted.
type FocusState struct {
	Phase           Phase
	CurrentEntityID string
	CurrentContext  ForegroundContext
}

// OutputKind enumerates state machine outputs.
type OutputKind int

const (
	OutputNone OutputKind = iota
	OutputEnteredCounting
	OutputEnteredFocusMode
	OutputEnteredBuffer
	OutputExitedFocusMode
)

func (k OutputKind) String() string {
	switch k {
	case OutputNone:
		return "none"
	case OutputEnteredCounting:
		return "enteredCounting"
	case OutputEnteredFocusMode:
		return "enteredFocusMode"
	case OutputEnteredBuffer:
		return "enteredBuffer"
	case OutputExitedFocusMode:
		return "exitedFocusMode"
	default:
		return "unknown"
	}
}

// Output is the single side-effect request produced by one state machine call.
//   - EnteredFocusMode: SessionID, DwellSeconds (accumulated count that triggered it)
//   - EnteredBuffer:    SessionID, Until
//   - ExitedFocusMode:  SessionID, EndReason (bufferTimeout when leaving Buffering)
type Output struct {
	Kind         OutputKind
	SessionID    string
	Until        time.Time
	DwellSeconds int
	EndReason    EndReason
}

// NoOutput is the zero Output.
var NoOutput = Output{Kind: OutputNone}
