// Package store persists missions and world-map snapshots in SQLite.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/worldmap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ worldmap.SnapshotStore = (*Store)(nil)

// Mission is one run of the rover.
type Mission struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Config    string    `json:"config"`
}

// Store wraps a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: log.With("component", "store")}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Closing m would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version returns the applied schema version and dirty flag. A fresh
// database reports 0.
func (s *Store) Version() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{logger: s.logger}
	return m, nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf("[migrate] "+format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// CreateMission records a new mission. An empty id gets a fresh UUID.
func (s *Store) CreateMission(id, config string) (*Mission, error) {
	if id == "" {
		id = uuid.NewString()
	}
	m := &Mission{ID: id, StartedAt: time.Now().UTC(), Config: config}
	_, err := s.db.Exec(
		`INSERT INTO missions (id, started_at, config) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		m.ID, m.StartedAt.UnixNano(), m.Config,
	)
	if err != nil {
		return nil, fmt.Errorf("insert mission: %w", err)
	}
	return s.Mission(id)
}

// Mission returns the mission with id, or nil if it does not exist.
func (s *Store) Mission(id string) (*Mission, error) {
	var (
		m       Mission
		started int64
	)
	err := s.db.QueryRow(
		`SELECT id, started_at, config FROM missions WHERE id = ?`, id,
	).Scan(&m.ID, &started, &m.Config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query mission: %w", err)
	}
	m.StartedAt = time.Unix(0, started).UTC()
	return &m, nil
}

// InsertMapSnapshot stores rec. An empty ID gets a fresh UUID.
func (s *Store) InsertMapSnapshot(rec *worldmap.SnapshotRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.TakenAt.IsZero() {
		rec.TakenAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO map_snapshots (id, mission_id, taken_at, size, reason, mapped, blob)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.MissionID, rec.TakenAt.UnixNano(), rec.Size, rec.Reason, rec.Mapped, rec.Blob,
	)
	return err
}

// LatestMapSnapshot returns the newest snapshot for missionID including its
// blob, or nil if there is none.
func (s *Store) LatestMapSnapshot(missionID string) (*worldmap.SnapshotRecord, error) {
	var (
		rec   worldmap.SnapshotRecord
		taken int64
	)
	err := s.db.QueryRow(
		`SELECT id, mission_id, taken_at, size, reason, mapped, blob
		 FROM map_snapshots WHERE mission_id = ?
		 ORDER BY taken_at DESC, rowid DESC LIMIT 1`, missionID,
	).Scan(&rec.ID, &rec.MissionID, &taken, &rec.Size, &rec.Reason, &rec.Mapped, &rec.Blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.TakenAt = time.Unix(0, taken).UTC()
	return &rec, nil
}

// ListMapSnapshots returns up to limit snapshots for missionID, newest
// first, without blobs.
func (s *Store) ListMapSnapshots(missionID string, limit int) ([]worldmap.SnapshotRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, mission_id, taken_at, size, reason, mapped
		 FROM map_snapshots WHERE mission_id = ?
		 ORDER BY taken_at DESC, rowid DESC LIMIT ?`, missionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []worldmap.SnapshotRecord
	for rows.Next() {
		var (
			rec   worldmap.SnapshotRecord
			taken int64
		)
		if err := rows.Scan(&rec.ID, &rec.MissionID, &taken, &rec.Size, &rec.Reason, &rec.Mapped); err != nil {
			return nil, err
		}
		rec.TakenAt = time.Unix(0, taken).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
