package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

var errStore = errors.New("disk I/O error")

// fakeClock is a settable domain.Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore implements every store port in memory, with injectable failures.
type memStore struct {
	mu       sync.Mutex
	settings domain.FocusSettings
	entities []domain.FocusEntity
	events   []domain.FocusEvent
	sessions map[string]*domain.FocusSession

	loadErr   error
	listErr   error
	appendErr error
	startErr  error
	endErr    error
}

func newMemStore(settings domain.FocusSettings, entities ...domain.FocusEntity) *memStore {
	return &memStore{
		settings: settings,
		entities: entities,
		sessions: make(map[string]*domain.FocusSession),
	}
}

func (s *memStore) stores() Stores {
	return Stores{Settings: s, Entities: s, Events: s, Sessions: s}
}

func (s *memStore) Load() (domain.FocusSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return domain.FocusSettings{}, s.loadErr
	}
	return s.settings, nil
}

func (s *memStore) Save(settings domain.FocusSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *memStore) List() ([]domain.FocusEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]domain.FocusEntity(nil), s.entities...), nil
}

func (s *memStore) Upsert(entity domain.FocusEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entities {
		if s.entities[i].ID == entity.ID {
			s.entities[i] = entity
			return nil
		}
	}
	s.entities = append(s.entities, entity)
	return nil
}

func (s *memStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entities {
		if s.entities[i].ID == id {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			return nil
		}
	}
	return domain.ErrEntityNotFound
}

func (s *memStore) Append(event domain.FocusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *memStore) Start(session domain.FocusSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	stored := session
	s.sessions[session.ID] = &stored
	return nil
}

func (s *memStore) End(id string, endedAt time.Time, reason domain.EndReason, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endErr != nil {
		return s.endErr
	}
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.EndedAt = &endedAt
	session.EndedReason = reason
	session.TotalSecondsInFocusMode = total
	return nil
}

func (s *memStore) setFailure(target *error, err error) {
	s.mu.Lock()
	*target = err
	s.mu.Unlock()
}

func (s *memStore) eventKinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]domain.EventKind, len(s.events))
	for i, e := range s.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (s *memStore) eventsOf(kind domain.EventKind) []domain.FocusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []domain.FocusEvent
	for _, e := range s.events {
		if e.Kind == kind {
			found = append(found, e)
		}
	}
	return found
}

func (s *memStore) session(id string) (domain.FocusSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.FocusSession{}, false
	}
	return *session, true
}

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// mockForeground implements domain.ForegroundProvider.
type mockForeground struct {
	mu    sync.Mutex
	appID string
	err   error
	calls int

	// entered/release make a call block, for reentrancy tests.
	entered chan struct{}
	release chan struct{}
}

func (m *mockForeground) set(appID string) {
	m.mu.Lock()
	m.appID = appID
	m.mu.Unlock()
}

func (m *mockForeground) CurrentForegroundAppID(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.calls++
	appID, err := m.appID, m.err
	entered, release := m.entered, m.release
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	return appID, err
}

// mockDomainProvider implements domain.DomainProvider with a fixed result.
type mockDomainProvider struct {
	mu     sync.Mutex
	result domain.DomainResult
	panics bool
}

func (m *mockDomainProvider) set(result domain.DomainResult) {
	m.mu.Lock()
	m.result = result
	m.mu.Unlock()
}

func (m *mockDomainProvider) CurrentDomain(ctx context.Context, appID string) domain.DomainResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics {
		panic("osascript exploded")
	}
	return m.result
}

// mockNotifications implements domain.NotificationController and records requests.
type mockNotifications struct {
	mu    sync.Mutex
	calls []domain.NotificationState
	err   error
}

func (m *mockNotifications) SetNotifications(ctx context.Context, desired domain.NotificationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, desired)
	return m.err
}

func (m *mockNotifications) requests() []domain.NotificationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.NotificationState(nil), m.calls...)
}
