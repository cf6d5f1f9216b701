// Package daemon implements the focus orchestrator loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
	"github.com/eliteGoblin/focusd/autofocus/internal/usecase"
)

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("focus orchestrator already running")

// notificationResultBuffer bounds pending notification failures between polls.
const notificationResultBuffer = 16

// OrchestratorConfig holds orchestrator configuration.
type OrchestratorConfig struct {
	PollInterval        time.Duration // How often to poll the foreground context
	MaxTickGap          time.Duration // Longest interval credited to a single tick (sleep/wake)
	NotificationTimeout time.Duration // Deadline for one detached notification request
}

// DefaultOrchestratorConfig returns default orchestrator configuration.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PollInterval:        1 * time.Second,
		MaxTickGap:          5 * time.Second,
		NotificationTimeout: 10 * time.Second,
	}
}

// Stores groups the persistence ports the orchestrator writes through.
type Stores struct {
	Settings domain.FocusSettingsStore
	Entities domain.FocusEntityStore
	Events   domain.FocusEventStore
	Sessions domain.FocusSessionStore
}

// Providers groups the external collaborators the orchestrator polls or drives.
type Providers struct {
	Foreground    domain.ForegroundProvider
	Domain        domain.DomainProvider
	Notifications domain.NotificationController
}

// Snapshot is what the orchestrator publishes after every cycle.
type Snapshot struct {
	State            domain.FocusState
	LastError        string
	LastDomainResult domain.DomainResult
	FocusSeconds     int
	PolledAt         time.Time
}

type notificationResult struct {
	desired domain.NotificationState
	err     error
	at      time.Time
}

// Orchestrator drives the focus state machine from real observations and
// projects its outputs into the event log, session records and notification
// requests. It is the sole owner of the state machine.
type Orchestrator struct {
	config    OrchestratorConfig
	clock     domain.Clock
	machine   *usecase.StateMachine
	stores    Stores
	providers Providers
	logger    *zap.Logger

	// cycleMu serializes poll cycles; everything below it up to results is
	// only touched while it is held.
	cycleMu          sync.Mutex
	polled           bool
	lastPollAt       time.Time
	carry            time.Duration
	lastAppID        string
	lastDomain       string
	lastDomainResult domain.DomainResult
	activeSessionID  string
	focusSeconds     int

	results  chan notificationResult
	inflight sync.WaitGroup

	mu          sync.RWMutex
	snapshot    Snapshot
	subscribers map[int]chan Snapshot
	nextSubID   int
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewOrchestrator creates a new focus orchestrator.
func NewOrchestrator(
	config OrchestratorConfig,
	clock domain.Clock,
	machine *usecase.StateMachine,
	stores Stores,
	providers Providers,
	logger *zap.Logger,
) *Orchestrator {
	if config.PollInterval < time.Second {
		config.PollInterval = time.Second
	}
	if config.NotificationTimeout <= 0 {
		config.NotificationTimeout = DefaultOrchestratorConfig().NotificationTimeout
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if machine == nil {
		machine = usecase.NewStateMachine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	initial := domain.DomainUnavailable(domain.DomainUnknown)
	return &Orchestrator{
		config:           config,
		clock:            clock,
		machine:          machine,
		stores:           stores,
		providers:        providers,
		logger:           logger,
		lastDomainResult: initial,
		results:          make(chan notificationResult, notificationResultBuffer),
		subscribers:      make(map[int]chan Snapshot),
		snapshot: Snapshot{
			State:            machine.State(),
			LastDomainResult: initial,
		},
	}
}

// Run starts the poll loop. It polls once immediately, then on every tick,
// and blocks until ctx is canceled or Stop is called.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.cancel != nil {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.cancel = cancel
	o.done = done
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.cancel = nil
		o.done = nil
		o.mu.Unlock()
		close(done)
	}()

	o.logger.Info("focus orchestrator started",
		zap.Duration("poll_interval", o.config.PollInterval),
		zap.Duration("max_tick_gap", o.config.MaxTickGap))

	o.PollOnce(ctx)

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("focus orchestrator stopping")
			return ctx.Err()

		case <-ticker.C:
			o.PollOnce(ctx)
		}
	}
}

// Stop cancels the poll loop and waits for Run to return. In-flight
// notification requests are not canceled.
func (o *Orchestrator) Stop() {
	o.mu.RLock()
	cancel, done := o.cancel, o.done
	o.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// IsRunning reports whether Run is active.
func (o *Orchestrator) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cancel != nil
}

// PollOnce runs a single poll cycle. It returns false when another cycle is
// still in progress and this one was skipped.
func (o *Orchestrator) PollOnce(ctx context.Context) (ran bool) {
	if !o.cycleMu.TryLock() {
		o.logger.Debug("previous poll cycle still running, skipping")
		return false
	}
	defer o.cycleMu.Unlock()

	now := o.clock.Now()

	var cycleErr error
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("poll cycle panicked", zap.Any("panic", r))
			cycleErr = multierr.Append(cycleErr, fmt.Errorf("poll cycle panicked: %v", r))
		}
		o.publish(now, cycleErr)
	}()

	cycleErr = multierr.Append(o.drainNotificationResults(), o.cycle(ctx, now))
	return true
}

// cycle implements one poll: load, observe, update context on change, tick.
func (o *Orchestrator) cycle(ctx context.Context, now time.Time) error {
	settings, err := o.stores.Settings.Load()
	if err != nil {
		return o.abort(fmt.Errorf("load settings: %w", err))
	}
	all, err := o.stores.Entities.List()
	if err != nil {
		return o.abort(fmt.Errorf("list focus entities: %w", err))
	}
	entities := usecase.EnabledEntities(all)

	appID, err := o.providers.Foreground.CurrentForegroundAppID(ctx)
	if err != nil {
		return o.abort(fmt.Errorf("query foreground app: %w", err))
	}
	domainResult := o.providers.Domain.CurrentDomain(ctx, appID)
	o.lastDomainResult = domainResult

	observed := domain.ForegroundContext{AppID: appID}
	if domainResult.Available {
		observed.Domain = domainResult.Domain
	}

	var errs error
	if observed.AppID != o.lastAppID || observed.Domain != o.lastDomain {
		appChanged := observed.AppID != o.lastAppID
		domainChanged := observed.Domain != o.lastDomain
		o.lastAppID, o.lastDomain = observed.AppID, observed.Domain

		if appChanged {
			errs = multierr.Append(errs, o.appendEvent(o.observationEvent(now, domain.EventForegroundChanged, "")))
		}
		if domainChanged {
			var details string
			if !domainResult.Available {
				details = string(domainResult.Reason)
			}
			errs = multierr.Append(errs, o.appendEvent(o.observationEvent(now, domain.EventDomainChanged, details)))
		}

		matched, _ := usecase.MatchEntity(entities, observed)
		o.logger.Debug("foreground context changed",
			zap.String("app_id", observed.AppID),
			zap.String("domain", observed.Domain),
			zap.String("matched_entity", matched))

		out := o.machine.UpdateContext(observed, matched, settings, now)
		errs = multierr.Append(errs, o.handle(out, now, settings))
	}

	if o.polled {
		elapsed := o.elapsedSeconds(now)
		if o.machine.State().Phase.Kind == domain.PhaseInFocusMode {
			o.focusSeconds += elapsed
		}
		out := o.machine.Tick(elapsed, settings, now)
		errs = multierr.Append(errs, o.handle(out, now, settings))
	}

	o.polled = true
	o.lastPollAt = now
	return errs
}

// abort reports a failure that ends the cycle before any state is mutated.
func (o *Orchestrator) abort(err error) error {
	o.logger.Warn("poll cycle aborted", zap.Error(err))
	return err
}

// elapsedSeconds converts wall time since the previous cycle into whole tick
// seconds, carrying the fractional remainder forward.
func (o *Orchestrator) elapsedSeconds(now time.Time) int {
	delta := now.Sub(o.lastPollAt)
	if delta < 0 {
		o.logger.Warn("clock moved backwards, not advancing", zap.Duration("delta", delta))
		o.carry = 0
		return 0
	}
	if o.config.MaxTickGap > 0 && delta > o.config.MaxTickGap {
		o.logger.Info("poll gap clamped",
			zap.Duration("gap", delta),
			zap.Duration("credited", o.config.MaxTickGap))
		delta = o.config.MaxTickGap
		o.carry = 0
	}
	delta += o.carry
	seconds := int(delta / time.Second)
	o.carry = delta - time.Duration(seconds)*time.Second
	return seconds
}

// handle projects a state machine output into durable writes and side effects.
// Writes always happen before the notification request is dispatched.
func (o *Orchestrator) handle(out domain.Output, now time.Time, settings domain.FocusSettings) error {
	switch out.Kind {
	case domain.OutputEnteredCounting:
		o.logger.Info("counting toward focus mode", zap.String("entity", o.machine.State().CurrentEntityID))
		return o.appendEvent(o.transitionEvent(now, domain.EventEnteredCounting, ""))

	case domain.OutputEnteredFocusMode:
		o.activeSessionID = out.SessionID
		o.focusSeconds = out.DwellSeconds
		o.logger.Info("entered focus mode",
			zap.String("session", out.SessionID),
			zap.Int("dwell_seconds", out.DwellSeconds))

		errs := o.appendEvent(o.transitionEvent(now, domain.EventEnteredFocusMode, "session="+out.SessionID))
		session := domain.FocusSession{
			ID:                out.SessionID,
			StartedAt:         now,
			ActivationMinutes: settings.ActivationMinutes,
			BufferSeconds:     settings.BufferSeconds,
		}
		if err := o.stores.Sessions.Start(session); err != nil {
			errs = multierr.Append(errs, o.writeFailed(now, fmt.Errorf("start session %s: %w", out.SessionID, err)))
		}
		o.dispatchNotifications(domain.NotificationsDisabled)
		return errs

	case domain.OutputEnteredBuffer:
		o.logger.Info("entered buffer",
			zap.String("session", out.SessionID),
			zap.Time("until", out.Until))
		details := "until=" + out.Until.UTC().Format(time.RFC3339)
		return o.appendEvent(o.transitionEvent(now, domain.EventEnteredBuffer, details))

	case domain.OutputExitedFocusMode:
		errs := o.appendEvent(o.transitionEvent(now, domain.EventExitedFocusMode, "reason="+string(out.EndReason)))
		errs = multierr.Append(errs, o.endSession(now, out.SessionID, out.EndReason))
		o.dispatchNotifications(domain.NotificationsEnabled)
		return errs
	}
	return nil
}

// endSession finalizes the active session and resets the focus counter.
func (o *Orchestrator) endSession(now time.Time, sessionID string, reason domain.EndReason) error {
	if sessionID == "" {
		sessionID = o.activeSessionID
	}
	total := o.focusSeconds
	o.activeSessionID = ""
	o.focusSeconds = 0
	if sessionID == "" {
		return nil
	}

	o.logger.Info("exited focus mode",
		zap.String("session", sessionID),
		zap.String("reason", string(reason)),
		zap.Int("focus_seconds", total))

	if err := o.stores.Sessions.End(sessionID, now, reason, total); err != nil {
		return o.writeFailed(now, fmt.Errorf("end session %s: %w", sessionID, err))
	}
	return nil
}

// Shutdown ends an open session with reason userDisabled and requests
// notifications back on. Call it after Run has returned.
func (o *Orchestrator) Shutdown() error {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	now := o.clock.Now()
	left := o.machine.ForceIdle()
	if !left.HasSession() {
		o.publish(now, nil)
		return nil
	}

	errs := o.appendEvent(o.transitionEvent(now, domain.EventExitedFocusMode, "reason="+string(domain.EndReasonUserDisabled)))
	errs = multierr.Append(errs, o.endSession(now, left.SessionID, domain.EndReasonUserDisabled))
	o.dispatchNotifications(domain.NotificationsEnabled)
	o.publish(now, errs)
	return errs
}

// writeFailed reports a failed store write and records it as an error event
// when the event store accepts it.
func (o *Orchestrator) writeFailed(now time.Time, err error) error {
	o.logger.Error("store write failed", zap.Error(err))
	return multierr.Append(err, o.appendEvent(o.transitionEvent(now, domain.EventError, err.Error())))
}

// dispatchNotifications fires a detached request. Only failures travel back,
// through o.results, and are logged as error events by the next cycle.
func (o *Orchestrator) dispatchNotifications(desired domain.NotificationState) {
	if o.providers.Notifications == nil {
		return
	}
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()

		err := o.setNotifications(desired)
		if err == nil {
			o.logger.Info("notifications updated", zap.String("desired", string(desired)))
			return
		}
		o.logger.Warn("failed to update notifications",
			zap.String("desired", string(desired)),
			zap.Error(err))

		select {
		case o.results <- notificationResult{desired: desired, err: err, at: o.clock.Now()}:
		default:
			o.logger.Warn("notification result dropped, queue full")
		}
	}()
}

func (o *Orchestrator) setNotifications(desired domain.NotificationState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification controller panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), o.config.NotificationTimeout)
	defer cancel()
	return o.providers.Notifications.SetNotifications(ctx, desired)
}

// drainNotificationResults returns every failed request reported since the
// previous cycle and appends an error event for each.
func (o *Orchestrator) drainNotificationResults() error {
	var errs error
	for {
		select {
		case r := <-o.results:
			err := fmt.Errorf("set notifications %s: %w", r.desired, r.err)
			errs = multierr.Append(errs, err)
			errs = multierr.Append(errs, o.appendEvent(o.transitionEvent(r.at, domain.EventError, err.Error())))
		default:
			return errs
		}
	}
}

// WaitForNotifications blocks until in-flight notification requests finish or ctx ends.
func (o *Orchestrator) WaitForNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// observationEvent builds a foreground/domain change event; no entity is resolved yet.
func (o *Orchestrator) observationEvent(now time.Time, kind domain.EventKind, details string) domain.FocusEvent {
	return domain.FocusEvent{
		ID:        uuid.NewString(),
		Timestamp: now,
		Kind:      kind,
		AppID:     o.lastAppID,
		Domain:    o.lastDomain,
		Details:   details,
	}
}

// transitionEvent builds an event tagged with the currently matched entity.
func (o *Orchestrator) transitionEvent(now time.Time, kind domain.EventKind, details string) domain.FocusEvent {
	event := o.observationEvent(now, kind, details)
	event.FocusEntityID = o.machine.State().CurrentEntityID
	return event
}

func (o *Orchestrator) appendEvent(event domain.FocusEvent) error {
	if err := o.stores.Events.Append(event); err != nil {
		o.logger.Error("failed to append event",
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
		return fmt.Errorf("append %s event: %w", event.Kind, err)
	}
	return nil
}

// publish stores the snapshot and hands it to subscribers without blocking.
func (o *Orchestrator) publish(now time.Time, cycleErr error) {
	snap := Snapshot{
		State:            o.machine.State(),
		LastDomainResult: o.lastDomainResult,
		FocusSeconds:     o.focusSeconds,
		PolledAt:         now,
	}
	if cycleErr != nil {
		snap.LastError = cycleErr.Error()
	}

	o.mu.Lock()
	o.snapshot = snap
	o.mu.Unlock()

	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.subscribers {
		select {
		case ch <- snap:
		default:
			// Latest wins: drop the stale snapshot the subscriber has not read.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Snapshot returns the most recently published state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// Subscribe returns a channel receiving every published snapshot (latest wins
// when the reader falls behind) and a function that unsubscribes.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSubID
	o.nextSubID++
	ch := make(chan Snapshot, 1)
	o.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subscribers, id)
			o.mu.Unlock()
			close(ch)
		})
	}
}

// Status converts the snapshot into the status shared with the CLI.
func (s Snapshot) Status(pid int) domain.DaemonStatus {
	phase := s.State.Phase
	status := domain.DaemonStatus{
		PID:                pid,
		Phase:              phase.Kind.String(),
		SecondsAccumulated: phase.SecondsAccumulated,
		SessionID:          phase.SessionID,
		EntityID:           s.State.CurrentEntityID,
		AppID:              s.State.CurrentContext.AppID,
		Domain:             s.State.CurrentContext.Domain,
		FocusSeconds:       s.FocusSeconds,
		LastError:          s.LastError,
		UpdatedAt:          s.PolledAt,
	}
	if phase.HasSession() {
		started := phase.StartedAt
		status.SessionStartedAt = &started
	}
	if phase.Kind == domain.PhaseBuffering {
		until := phase.BufferEndsAt
		status.BufferEndsAt = &until
	}
	if !s.LastDomainResult.Available {
		status.DomainReason = string(s.LastDomainResult.Reason)
	}
	return status
}
