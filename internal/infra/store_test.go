package infra

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

var storeT0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*FocusStore, string, []byte) {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	dbPath := filepath.Join(t.TempDir(), "autofocus.db")

	store, err := NewFocusStore(dbPath, key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := storeT0
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store, dbPath, key
}

func TestFocusStore_Schema(t *testing.T) {
	store, _, _ := newTestStore(t)

	var version int
	require.NoError(t, store.db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, schemaVersion, version)

	// Migrating again is a no-op.
	require.NoError(t, store.migrate())
}

func TestFocusStore_ReopenAndWrongKey(t *testing.T) {
	store, dbPath, key := newTestStore(t)
	require.NoError(t, store.Save(domain.FocusSettings{ActivationMinutes: 20, BufferSeconds: 5}))
	require.NoError(t, store.Close())

	reopened, err := NewFocusStore(dbPath, key)
	require.NoError(t, err)
	settings, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, 20, settings.ActivationMinutes)
	require.NoError(t, reopened.Close())

	otherKey, err := GenerateKey()
	require.NoError(t, err)
	_, err = NewFocusStore(dbPath, otherKey)
	assert.Error(t, err, "a different key must not open the database")
}

func TestFocusStore_Settings(t *testing.T) {
	store, _, _ := newTestStore(t)

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultFocusSettings(), settings)

	require.NoError(t, store.Save(domain.FocusSettings{ActivationMinutes: 1, BufferSeconds: 0}))
	require.NoError(t, store.Save(domain.FocusSettings{ActivationMinutes: 3, BufferSeconds: 45}))

	settings, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.FocusSettings{ActivationMinutes: 3, BufferSeconds: 45}, settings)
}

func TestFocusStore_UpsertEntity(t *testing.T) {
	tests := []struct {
		name      string
		entity    domain.FocusEntity
		wantMatch string
		wantName  string
		wantErr   error
	}{
		{
			name:      "domain is normalized",
			entity:    domain.FocusEntity{Type: domain.EntityTypeDomain, MatchValue: "  GitHub.COM. ", IsEnabled: true},
			wantMatch: "github.com",
			wantName:  "github.com",
		},
		{
			name:      "internationalized domain becomes punycode",
			entity:    domain.FocusEntity{Type: domain.EntityTypeDomain, MatchValue: "bücher.example", IsEnabled: true},
			wantMatch: "xn--bcher-kva.example",
			wantName:  "xn--bcher-kva.example",
		},
		{
			name:      "app keeps its case",
			entity:    domain.FocusEntity{Type: domain.EntityTypeApp, DisplayName: " Xcode ", MatchValue: "com.apple.dt.Xcode", IsEnabled: true},
			wantMatch: "com.apple.dt.Xcode",
			wantName:  "Xcode",
		},
		{
			name:    "unknown type",
			entity:  domain.FocusEntity{Type: "url", MatchValue: "https://github.com"},
			wantErr: domain.ErrInvalidEntity,
		},
		{
			name:    "empty match value",
			entity:  domain.FocusEntity{Type: domain.EntityTypeApp, MatchValue: "   "},
			wantErr: domain.ErrInvalidEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, _ := newTestStore(t)

			err := store.Upsert(tt.entity)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			entities, err := store.List()
			require.NoError(t, err)
			require.Len(t, entities, 1)
			assert.NotEmpty(t, entities[0].ID)
			assert.Equal(t, tt.wantMatch, entities[0].MatchValue)
			assert.Equal(t, tt.wantName, entities[0].DisplayName)
			assert.Equal(t, tt.entity.IsEnabled, entities[0].IsEnabled)
		})
	}
}

func TestFocusStore_UpsertUpdatesInPlace(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.Upsert(domain.FocusEntity{
		ID: "e1", Type: domain.EntityTypeDomain, MatchValue: "github.com", IsEnabled: true,
	}))
	original, err := store.GetEntity("e1")
	require.NoError(t, err)

	updated := *original
	updated.DisplayName = "GitHub"
	updated.IsEnabled = false
	require.NoError(t, store.Upsert(updated))

	got, err := store.GetEntity("e1")
	require.NoError(t, err)
	assert.Equal(t, "GitHub", got.DisplayName)
	assert.False(t, got.IsEnabled)
	assert.True(t, got.CreatedAt.Equal(original.CreatedAt), "creation time is preserved")
	assert.True(t, got.UpdatedAt.After(original.UpdatedAt))
}

func TestFocusStore_DuplicateEntities(t *testing.T) {
	store, _, _ := newTestStore(t)
	first := domain.FocusEntity{ID: "a", Type: domain.EntityTypeDomain, MatchValue: "github.com", IsEnabled: true}
	require.NoError(t, store.Upsert(first))

	err := store.Upsert(domain.FocusEntity{ID: "b", Type: domain.EntityTypeDomain, MatchValue: "GITHUB.com", IsEnabled: true})
	assert.ErrorIs(t, err, domain.ErrDuplicateEntity)

	// Same value as another type is not a duplicate.
	require.NoError(t, store.Upsert(domain.FocusEntity{ID: "c", Type: domain.EntityTypeApp, MatchValue: "github.com", IsEnabled: true}))

	// A disabled duplicate may exist but cannot be enabled.
	disabled := domain.FocusEntity{ID: "d", Type: domain.EntityTypeDomain, MatchValue: "github.com", IsEnabled: false}
	require.NoError(t, store.Upsert(disabled))
	disabled.IsEnabled = true
	assert.ErrorIs(t, store.Upsert(disabled), domain.ErrDuplicateEntity)

	// Re-saving the enabled entity itself is fine.
	require.NoError(t, store.Upsert(first))

	entities, err := store.List()
	require.NoError(t, err)
	assert.Len(t, entities, 3)
}

func TestFocusStore_DeleteEntity(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.Upsert(domain.FocusEntity{ID: "e1", Type: domain.EntityTypeApp, MatchValue: "com.apple.Notes", IsEnabled: true}))

	require.NoError(t, store.Delete("e1"))
	assert.ErrorIs(t, store.Delete("e1"), domain.ErrEntityNotFound)

	_, err := store.GetEntity("e1")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestFocusStore_ListOrdersByCreation(t *testing.T) {
	store, _, _ := newTestStore(t)
	for _, v := range []string{"c.com", "a.com", "b.com"} {
		require.NoError(t, store.Upsert(domain.FocusEntity{Type: domain.EntityTypeDomain, MatchValue: v, IsEnabled: true}))
	}

	entities, err := store.List()
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, "c.com", entities[0].MatchValue)
	assert.Equal(t, "b.com", entities[2].MatchValue)
}

func TestFocusStore_Events(t *testing.T) {
	store, _, _ := newTestStore(t)

	require.NoError(t, store.Append(domain.FocusEvent{
		ID: "ev1", Timestamp: storeT0, Kind: domain.EventForegroundChanged, AppID: "com.google.Chrome",
	}))
	require.NoError(t, store.Append(domain.FocusEvent{
		Timestamp: storeT0.Add(time.Second), Kind: domain.EventDomainChanged,
		AppID: "com.google.Chrome", Details: "noActiveTab",
	}))
	require.NoError(t, store.Append(domain.FocusEvent{
		ID: "ev3", Timestamp: storeT0.Add(2 * time.Second), Kind: domain.EventEnteredCounting,
		AppID: "com.google.Chrome", Domain: "github.com", FocusEntityID: "e1",
	}))

	events, err := store.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev3", events[0].ID)
	assert.Equal(t, domain.EventEnteredCounting, events[0].Kind)
	assert.Equal(t, "github.com", events[0].Domain)
	assert.Equal(t, "e1", events[0].FocusEntityID)
	assert.True(t, events[0].Timestamp.Equal(storeT0.Add(2*time.Second)))

	assert.NotEmpty(t, events[1].ID, "missing ids are generated")
	assert.Empty(t, events[1].Domain)
	assert.Equal(t, "noActiveTab", events[1].Details)
}

func TestFocusStore_Sessions(t *testing.T) {
	store, _, _ := newTestStore(t)

	require.NoError(t, store.Start(domain.FocusSession{
		ID: "s1", StartedAt: storeT0, ActivationMinutes: 1, BufferSeconds: 10,
	}))
	require.NoError(t, store.Start(domain.FocusSession{
		ID: "s2", StartedAt: storeT0.Add(time.Hour), ActivationMinutes: 12, BufferSeconds: 30,
	}))

	open, err := store.GetSession("s1")
	require.NoError(t, err)
	assert.True(t, open.IsOpen())
	assert.Empty(t, open.EndedReason)
	assert.Equal(t, 0, open.TotalSecondsInFocusMode)

	endedAt := storeT0.Add(71 * time.Second)
	require.NoError(t, store.End("s1", endedAt, domain.EndReasonBufferTimeout, 60))

	closed, err := store.GetSession("s1")
	require.NoError(t, err)
	require.NotNil(t, closed.EndedAt)
	assert.True(t, closed.EndedAt.Equal(endedAt))
	assert.Equal(t, domain.EndReasonBufferTimeout, closed.EndedReason)
	assert.Equal(t, 60, closed.TotalSecondsInFocusMode)
	assert.Equal(t, 1, closed.ActivationMinutes)
	assert.Equal(t, 10, closed.BufferSeconds)

	assert.ErrorIs(t, store.End("missing", endedAt, domain.EndReasonError, 0), domain.ErrSessionNotFound)
	_, err = store.GetSession("missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	recent, err := store.RecentSessions(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "s2", recent[0].ID)
	assert.Equal(t, "s1", recent[1].ID)
}

func TestFocusStore_CloseOrphanedSessions(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.Start(domain.FocusSession{ID: "done", StartedAt: storeT0}))
	require.NoError(t, store.End("done", storeT0.Add(time.Minute), domain.EndReasonLeftFocusEntities, 60))
	require.NoError(t, store.Start(domain.FocusSession{ID: "orphan", StartedAt: storeT0.Add(time.Hour)}))

	restart := storeT0.Add(2 * time.Hour)
	n, err := store.CloseOrphanedSessions(restart)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	orphan, err := store.GetSession("orphan")
	require.NoError(t, err)
	assert.Equal(t, domain.EndReasonError, orphan.EndedReason)
	assert.True(t, orphan.EndedAt.Equal(restart))

	done, err := store.GetSession("done")
	require.NoError(t, err)
	assert.Equal(t, domain.EndReasonLeftFocusEntities, done.EndedReason, "closed sessions are untouched")

	n, err = store.CloseOrphanedSessions(restart)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
