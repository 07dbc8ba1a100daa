package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/logger"
)

// migrations are applied in order; the index is the schema version minus one.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS zones (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		primary_texture TEXT NOT NULL,
		data            TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS zone_confidence_state (
		zone_id    TEXT PRIMARY KEY,
		score      REAL NOT NULL,
		level      TEXT NOT NULL,
		state      TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		data       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS intel_submissions (
		id             TEXT PRIMARY KEY,
		zone_id        TEXT NOT NULL,
		contributor_id TEXT NOT NULL,
		type           TEXT NOT NULL,
		payload        TEXT,
		trust_weight   REAL NOT NULL,
		created_at     INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_intel_zone_created ON intel_submissions(zone_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS confidence_audit (
		seq           INTEGER PRIMARY KEY AUTOINCREMENT,
		id            TEXT NOT NULL UNIQUE,
		zone_id       TEXT NOT NULL,
		at            INTEGER NOT NULL,
		trigger_kind  TEXT NOT NULL,
		submission_id TEXT,
		factors       TEXT NOT NULL,
		level         TEXT NOT NULL,
		state         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_zone_seq ON confidence_audit(zone_id, seq)`,
}

// SQLiteStore is a Store backed by a single sqlite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := newOptions(opts)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(o.maxOpenConns)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger.Get().Named("sqlite")}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Info(ctx, "database ready", logger.String("path", path))
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		err := s.transaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				version, time.Now().UnixNano())
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		s.logger.Debug(ctx, "migration applied", logger.Int("version", version))
	}
	return nil
}

// transaction runs fn in a transaction, committing only if it returns nil.
func (s *SQLiteStore) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetState implements StateStore.
func (s *SQLiteStore) GetState(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error) {
	defer observe("get_state", time.Now())
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM zone_confidence_state WHERE zone_id = ?", zoneID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ZoneConfidenceState{}, ErrNotFound
	}
	if err != nil {
		return model.ZoneConfidenceState{}, fmt.Errorf("get state %s: %w", zoneID, err)
	}
	var st model.ZoneConfidenceState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return model.ZoneConfidenceState{}, fmt.Errorf("decode state %s: %w", zoneID, err)
	}
	return st, nil
}

// PutState implements StateStore.
func (s *SQLiteStore) PutState(ctx context.Context, st model.ZoneConfidenceState) error { //nolint:gocritic // hugeParam: states are values
	defer observe("put_state", time.Now())
	if st.ZoneID == "" {
		return ErrEmptyZoneID
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", st.ZoneID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO zone_confidence_state (zone_id, score, level, state, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(zone_id) DO UPDATE SET
			score = excluded.score,
			level = excluded.level,
			state = excluded.state,
			updated_at = excluded.updated_at,
			data = excluded.data`,
		st.ZoneID, st.Score, string(st.Level), string(st.State), st.LastUpdatedAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("put state %s: %w", st.ZoneID, err)
	}
	return nil
}

// ListStates implements StateStore.
func (s *SQLiteStore) ListStates(ctx context.Context) ([]model.ZoneConfidenceState, error) {
	defer observe("list_states", time.Now())
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM zone_confidence_state ORDER BY zone_id")
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	out := []model.ZoneConfidenceState{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		var st model.ZoneConfidenceState
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CountStates implements StateStore.
func (s *SQLiteStore) CountStates(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM zone_confidence_state").Scan(&n); err != nil {
		s.logger.Error(ctx, "count states failed", logger.Error(err))
		return 0
	}
	return n
}

// AppendIntel implements IntelStore.
func (s *SQLiteStore) AppendIntel(ctx context.Context, sub model.IntelSubmission) error { //nolint:gocritic // hugeParam: submissions are values
	defer observe("append_intel", time.Now())
	if sub.ZoneID == "" {
		return ErrEmptyZoneID
	}
	var payload sql.NullString
	if len(sub.Payload) > 0 {
		b, err := json.Marshal(sub.Payload)
		if err != nil {
			return fmt.Errorf("encode payload %s: %w", sub.ID, err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO intel_submissions
		(id, zone_id, contributor_id, type, payload, trust_weight, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.ZoneID, sub.ContributorID, string(sub.Type), payload, sub.TrustWeight, sub.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("append intel %s: %w", sub.ID, err)
	}
	return nil
}

// RecentIntel implements IntelStore.
func (s *SQLiteStore) RecentIntel(ctx context.Context, zoneID string, since time.Time) ([]model.IntelSubmission, error) {
	defer observe("recent_intel", time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT id, zone_id, contributor_id, type, payload, trust_weight, created_at
		FROM intel_submissions
		WHERE zone_id = ? AND created_at >= ?
		ORDER BY created_at, rowid`, zoneID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("recent intel %s: %w", zoneID, err)
	}
	defer rows.Close()

	out := []model.IntelSubmission{}
	for rows.Next() {
		var (
			sub     model.IntelSubmission
			typ     string
			payload sql.NullString
			created int64
		)
		if err := rows.Scan(&sub.ID, &sub.ZoneID, &sub.ContributorID, &typ, &payload, &sub.TrustWeight, &created); err != nil {
			return nil, fmt.Errorf("scan intel: %w", err)
		}
		sub.Type = model.IntelType(typ)
		sub.CreatedAt = time.Unix(0, created).UTC()
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &sub.Payload); err != nil {
				return nil, fmt.Errorf("decode payload %s: %w", sub.ID, err)
			}
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// PruneIntel implements IntelStore.
func (s *SQLiteStore) PruneIntel(ctx context.Context, before time.Time) (int, error) {
	defer observe("prune_intel", time.Now())
	res, err := s.db.ExecContext(ctx, "DELETE FROM intel_submissions WHERE created_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune intel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune intel: %w", err)
	}
	return int(n), nil
}

// AppendAudit implements AuditLog.
func (s *SQLiteStore) AppendAudit(ctx context.Context, e model.AuditEntry) error { //nolint:gocritic // hugeParam: entries are values
	defer observe("append_audit", time.Now())
	if e.ZoneID == "" {
		return ErrEmptyZoneID
	}
	factors, err := json.Marshal(e.Factors)
	if err != nil {
		return fmt.Errorf("encode factors %s: %w", e.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO confidence_audit
		(id, zone_id, at, trigger_kind, submission_id, factors, level, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ZoneID, e.At.UnixNano(), string(e.Trigger), e.SubmissionID, string(factors), string(e.Level), string(e.State))
	if err != nil {
		return fmt.Errorf("append audit %s: %w", e.ID, err)
	}
	return nil
}

// ListAudit implements AuditLog.
func (s *SQLiteStore) ListAudit(ctx context.Context, zoneID string, limit int) ([]model.AuditEntry, error) {
	defer observe("list_audit", time.Now())
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, zone_id, at, trigger_kind, submission_id, factors, level, state
		FROM confidence_audit
		WHERE zone_id = ?
		ORDER BY seq DESC
		LIMIT ?`, zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit %s: %w", zoneID, err)
	}
	defer rows.Close()

	out := []model.AuditEntry{}
	for rows.Next() {
		var (
			e                     model.AuditEntry
			at                    int64
			trigger, level, state string
			submission            sql.NullString
			factors               string
		)
		if err := rows.Scan(&e.ID, &e.ZoneID, &at, &trigger, &submission, &factors, &level, &state); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		if err := json.Unmarshal([]byte(factors), &e.Factors); err != nil {
			return nil, fmt.Errorf("decode factors %s: %w", e.ID, err)
		}
		e.At = time.Unix(0, at).UTC()
		e.Trigger = model.Trigger(trigger)
		e.SubmissionID = submission.String
		e.Level = model.ConfidenceLevel(level)
		e.State = model.OperationalState(state)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PutZones implements Catalog.
func (s *SQLiteStore) PutZones(ctx context.Context, zones []model.Zone) error {
	defer observe("put_zones", time.Now())
	for i := range zones {
		if zones[i].ID == "" {
			return ErrEmptyZoneID
		}
	}
	return s.transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO zones (id, name, primary_texture, data)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				primary_texture = excluded.primary_texture,
				data = excluded.data`)
		if err != nil {
			return fmt.Errorf("prepare zone upsert: %w", err)
		}
		defer stmt.Close()

		for i := range zones {
			data, err := json.Marshal(zones[i])
			if err != nil {
				return fmt.Errorf("encode zone %s: %w", zones[i].ID, err)
			}
			if _, err := stmt.ExecContext(ctx, zones[i].ID, zones[i].Name, string(zones[i].PrimaryTexture), string(data)); err != nil {
				return fmt.Errorf("upsert zone %s: %w", zones[i].ID, err)
			}
		}
		return nil
	})
}

// Zones implements Catalog.
func (s *SQLiteStore) Zones(ctx context.Context) ([]model.Zone, error) {
	defer observe("zones", time.Now())
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM zones ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	out := []model.Zone{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		var z model.Zone
		if err := json.Unmarshal([]byte(data), &z); err != nil {
			return nil, fmt.Errorf("decode zone: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// Zone implements Catalog.
func (s *SQLiteStore) Zone(ctx context.Context, id string) (model.Zone, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM zones WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Zone{}, ErrNotFound
	}
	if err != nil {
		return model.Zone{}, fmt.Errorf("get zone %s: %w", id, err)
	}
	var z model.Zone
	if err := json.Unmarshal([]byte(data), &z); err != nil {
		return model.Zone{}, fmt.Errorf("decode zone %s: %w", id, err)
	}
	return z, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
