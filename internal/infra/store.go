package infra

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS focus_settings (
	id INTEGER PRIMARY KEY CHECK(id = 1),
	activation_minutes INTEGER NOT NULL,
	buffer_seconds INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS focus_entities (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	display_name TEXT NOT NULL,
	match_value TEXT NOT NULL,
	is_enabled INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_focus_entities_type_match_value ON focus_entities(type, match_value);
CREATE INDEX IF NOT EXISTS idx_focus_entities_enabled ON focus_entities(is_enabled);

CREATE TABLE IF NOT EXISTS focus_events (
	id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	kind TEXT NOT NULL,
	app_bundle_id TEXT NULL,
	domain TEXT NULL,
	focus_entity_id TEXT NULL,
	details TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_focus_events_timestamp ON focus_events(timestamp);

CREATE TABLE IF NOT EXISTS focus_sessions (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	ended_at INTEGER NULL,
	activation_minutes INTEGER NOT NULL,
	buffer_seconds INTEGER NOT NULL,
	ended_reason TEXT NULL,
	total_seconds_in_focus_mode INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_focus_sessions_started_at ON focus_sessions(started_at);
`

// FocusStore implements the settings, entity, event and session stores on a
// single SQLCipher encrypted SQLite database. Timestamps are unix milliseconds.
type FocusStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewFocusStore opens (or creates) the encrypted database at dbPath and
// migrates it to the current schema.
func NewFocusStore(dbPath string, key []byte) (*FocusStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_busy_timeout=5000",
		dbPath, KeyHex(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open encrypted database: %w", err)
	}
	// The daemon and CLI share the file; one connection per process keeps
	// SQLite locking simple.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to encrypted database: %w", err)
	}

	s := &FocusStore{db: db, dbPath: dbPath, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *FocusStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *FocusStore) Path() string {
	return s.dbPath
}

func (s *FocusStore) migrate() error {
	var current int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current == schemaVersion:
		return nil
	case current > schemaVersion:
		return fmt.Errorf("unsupported schema version %d (newest known %d)", current, schemaVersion)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema v1: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// --- domain.FocusSettingsStore implementation ---

// Load returns the saved settings, or the defaults when none were saved.
func (s *FocusStore) Load() (domain.FocusSettings, error) {
	var settings domain.FocusSettings
	err := s.db.QueryRow(`SELECT activation_minutes, buffer_seconds FROM focus_settings WHERE id = 1`).
		Scan(&settings.ActivationMinutes, &settings.BufferSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultFocusSettings(), nil
	}
	if err != nil {
		return domain.FocusSettings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// Save replaces the settings record.
func (s *FocusStore) Save(settings domain.FocusSettings) error {
	now := toMillis(s.now())
	_, err := s.db.Exec(`
		INSERT INTO focus_settings (id, activation_minutes, buffer_seconds, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			activation_minutes = excluded.activation_minutes,
			buffer_seconds = excluded.buffer_seconds,
			updated_at = excluded.updated_at`,
		settings.ActivationMinutes, settings.BufferSeconds, now, now)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// --- domain.FocusEntityStore implementation ---

const entityColumns = `id, type, display_name, match_value, is_enabled, created_at, updated_at`

// List returns all entities ordered by creation time.
func (s *FocusStore) List() ([]domain.FocusEntity, error) {
	rows, err := s.db.Query(`SELECT ` + entityColumns + ` FROM focus_entities ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.FocusEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// GetEntity returns the entity with id.
func (s *FocusStore) GetEntity(id string) (*domain.FocusEntity, error) {
	row := s.db.QueryRow(`SELECT `+entityColumns+` FROM focus_entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, domain.ErrEntityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return &e, nil
}

// Upsert validates and stores an entity. Domain match values are normalized.
// An empty ID is assigned a new one; an existing entity keeps its creation time.
// A second enabled entity with the same type and match value is rejected.
func (s *FocusStore) Upsert(entity domain.FocusEntity) error {
	entity, err := NormalizeEntity(entity)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	if entity.IsEnabled {
		var clash string
		err := tx.QueryRow(`
			SELECT id FROM focus_entities
			WHERE type = ? AND match_value = ? AND is_enabled = 1 AND id <> ?
			LIMIT 1`,
			string(entity.Type), entity.MatchValue, entity.ID).Scan(&clash)
		if err == nil {
			return fmt.Errorf("%s %q already tracked by %s: %w",
				entity.Type, entity.MatchValue, clash, domain.ErrDuplicateEntity)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check duplicate entity: %w", err)
		}
	}

	now := s.now()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	_, err = tx.Exec(`
		INSERT INTO focus_entities (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			display_name = excluded.display_name,
			match_value = excluded.match_value,
			is_enabled = excluded.is_enabled,
			updated_at = excluded.updated_at`,
		entity.ID, string(entity.Type), entity.DisplayName, entity.MatchValue,
		boolToInt(entity.IsEnabled), toMillis(entity.CreatedAt), toMillis(entity.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}
	return tx.Commit()
}

// Delete removes the entity with id.
func (s *FocusStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM focus_entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entity %s: %w", id, domain.ErrEntityNotFound)
	}
	return nil
}

// NormalizeEntity validates entity and returns it with a trimmed display
// name, a normalized match value and an ID.
func NormalizeEntity(entity domain.FocusEntity) (domain.FocusEntity, error) {
	if !entity.Type.Valid() {
		return entity, fmt.Errorf("unknown entity type %q: %w", entity.Type, domain.ErrInvalidEntity)
	}

	match := strings.TrimSpace(entity.MatchValue)
	if entity.Type == domain.EntityTypeDomain {
		normalized := NormalizeDomain(match)
		if normalized == "" && match != "" {
			return entity, fmt.Errorf("invalid domain %q: %w", match, domain.ErrInvalidEntity)
		}
		match = normalized
	}
	if match == "" {
		return entity, fmt.Errorf("empty match value: %w", domain.ErrInvalidEntity)
	}
	entity.MatchValue = match

	entity.DisplayName = strings.TrimSpace(entity.DisplayName)
	if entity.DisplayName == "" {
		entity.DisplayName = match
	}
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	return entity, nil
}

// --- domain.FocusEventStore / FocusEventReader implementation ---

// Append writes one event.
func (s *FocusStore) Append(event domain.FocusEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO focus_events (id, timestamp, kind, app_bundle_id, domain, focus_entity_id, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, toMillis(event.Timestamp), string(event.Kind),
		nullString(event.AppID), nullString(event.Domain),
		nullString(event.FocusEntityID), nullString(event.Details))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (s *FocusStore) RecentEvents(limit int) ([]domain.FocusEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, kind, app_bundle_id, domain, focus_entity_id, details
		FROM focus_events
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.FocusEvent
	for rows.Next() {
		var e domain.FocusEvent
		var ts int64
		var kind string
		var appID, dom, entityID, detail sql.NullString
		if err := rows.Scan(&e.ID, &ts, &kind, &appID, &dom, &entityID, &detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = fromMillis(ts)
		e.Kind = domain.EventKind(kind)
		e.AppID = appID.String
		e.Domain = dom.String
		e.FocusEntityID = entityID.String
		e.Details = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- domain.FocusSessionStore / FocusSessionReader implementation ---

// Start records a new open session.
func (s *FocusStore) Start(session domain.FocusSession) error {
	_, err := s.db.Exec(`
		INSERT INTO focus_sessions
			(id, started_at, ended_at, activation_minutes, buffer_seconds, ended_reason, total_seconds_in_focus_mode)
		VALUES (?, ?, NULL, ?, ?, NULL, 0)`,
		session.ID, toMillis(session.StartedAt), session.ActivationMinutes, session.BufferSeconds)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// End closes a session.
func (s *FocusStore) End(sessionID string, endedAt time.Time, reason domain.EndReason, totalSecondsInFocusMode int) error {
	res, err := s.db.Exec(`
		UPDATE focus_sessions
		SET ended_at = ?, ended_reason = ?, total_seconds_in_focus_mode = ?
		WHERE id = ?`,
		toMillis(endedAt), string(reason), totalSecondsInFocusMode, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	return nil
}

// CloseOrphanedSessions ends sessions left open by a daemon that did not
// shut down cleanly. It returns the number of sessions closed.
func (s *FocusStore) CloseOrphanedSessions(endedAt time.Time) (int, error) {
	res, err := s.db.Exec(`
		UPDATE focus_sessions
		SET ended_at = ?, ended_reason = ?
		WHERE ended_at IS NULL`,
		toMillis(endedAt), string(domain.EndReasonError))
	if err != nil {
		return 0, fmt.Errorf("close orphaned sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const sessionColumns = `id, started_at, ended_at, activation_minutes, buffer_seconds, ended_reason, total_seconds_in_focus_mode`

// GetSession returns the session with id.
func (s *FocusStore) GetSession(id string) (*domain.FocusSession, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM focus_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// RecentSessions returns up to limit sessions, most recently started first.
func (s *FocusStore) RecentSessions(limit int) ([]domain.FocusSession, error) {
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM focus_sessions
		ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.FocusSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (domain.FocusEntity, error) {
	var (
		e                domain.FocusEntity
		typ              string
		enabled          int
		created, updated int64
	)
	if err := row.Scan(&e.ID, &typ, &e.DisplayName, &e.MatchValue, &enabled, &created, &updated); err != nil {
		return domain.FocusEntity{}, err
	}
	e.Type = domain.EntityType(typ)
	e.IsEnabled = enabled != 0
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	return e, nil
}

func scanSession(row rowScanner) (domain.FocusSession, error) {
	var (
		s       domain.FocusSession
		started int64
		ended   sql.NullInt64
		reason  sql.NullString
	)
	if err := row.Scan(&s.ID, &started, &ended, &s.ActivationMinutes, &s.BufferSeconds,
		&reason, &s.TotalSecondsInFocusMode); err != nil {
		return domain.FocusSession{}, err
	}
	s.StartedAt = fromMillis(started)
	if ended.Valid {
		t := fromMillis(ended.Int64)
		s.EndedAt = &t
	}
	s.EndedReason = domain.EndReason(reason.String)
	return s, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure FocusStore implements the store ports.
var (
	_ domain.FocusSettingsStore = (*FocusStore)(nil)
	_ domain.FocusEntityStore   = (*FocusStore)(nil)
	_ domain.FocusEventStore    = (*FocusStore)(nil)
	_ domain.FocusEventReader   = (*FocusStore)(nil)
	_ domain.FocusSessionStore  = (*FocusStore)(nil)
	_ domain.FocusSessionReader = (*FocusStore)(nil)
)
