// Package sqlite mirrors rooms into an embedded SQLite file for single-node
// deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/diceraja/internal/game/session"
	"github.com/cory-johannsen/diceraja/internal/mirror"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRoomNotFound is returned when a mirrored room lookup yields no results.
var ErrRoomNotFound = errors.New("mirrored room not found")

// Store persists room records in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Open opens the SQLite file at path and applies the embedded migrations.
//
// Precondition: path must be non-empty; ":memory:" is not supported because
// every pooled connection would see a different database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating sqlite db: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write upserts rec and records final results. An older record never
// overwrites a newer one.
func (s *Store) Write(ctx context.Context, rec mirror.Record) error {
	participants, err := json.Marshal(rec.Participants)
	if err != nil {
		return fmt.Errorf("encoding participants: %w", err)
	}
	var state sql.NullString
	if rec.State != nil {
		b, err := json.Marshal(rec.State)
		if err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		state = sql.NullString{String: string(b), Valid: true}
	}
	var winner sql.NullInt64
	if rec.Winner != nil {
		winner = sql.NullInt64{Int64: int64(*rec.Winner), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rooms (code, game_kind, participants, state, active, winner, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET
		   participants = excluded.participants,
		   state        = excluded.state,
		   active       = excluded.active,
		   winner       = excluded.winner,
		   updated_at   = excluded.updated_at
		 WHERE rooms.updated_at <= excluded.updated_at`,
		rec.Code, string(rec.GameKind), string(participants), state, rec.Active, winner,
		toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting room %s: %w", rec.Code, err)
	}
	for _, res := range rec.Results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO game_results (code, seat, display_name, user_id, result)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (code, seat) DO NOTHING`,
			rec.Code, res.Seat, res.DisplayName, res.UserID, string(res.Result),
		)
		if err != nil {
			return fmt.Errorf("recording result for %s seat %d: %w", rec.Code, res.Seat, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing room %s: %w", rec.Code, err)
	}
	return nil
}

// Get returns the mirrored record for code.
//
// Postcondition: Returns the record or ErrRoomNotFound.
func (s *Store) Get(ctx context.Context, code string) (mirror.Record, error) {
	var (
		rec                mirror.Record
		kind, participants string
		state              sql.NullString
		winner             sql.NullInt64
		created, updated   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT code, game_kind, participants, state, active, winner, created_at, updated_at
		 FROM rooms WHERE code = ?`,
		code,
	).Scan(&rec.Code, &kind, &participants, &state, &rec.Active, &winner, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return mirror.Record{}, ErrRoomNotFound
	}
	if err != nil {
		return mirror.Record{}, fmt.Errorf("querying room %s: %w", code, err)
	}
	rec.GameKind = session.Kind(kind)
	rec.CreatedAt = fromMillis(created)
	rec.UpdatedAt = fromMillis(updated)
	if winner.Valid {
		w := int(winner.Int64)
		rec.Winner = &w
	}
	if err := json.Unmarshal([]byte(participants), &rec.Participants); err != nil {
		return mirror.Record{}, fmt.Errorf("decoding participants of %s: %w", code, err)
	}
	if state.Valid {
		rec.State = &session.State{}
		if err := json.Unmarshal([]byte(state.String), rec.State); err != nil {
			return mirror.Record{}, fmt.Errorf("decoding state of %s: %w", code, err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seat, display_name, user_id, result FROM game_results WHERE code = ? ORDER BY seat`,
		code,
	)
	if err != nil {
		return mirror.Record{}, fmt.Errorf("querying results of %s: %w", code, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			sr     mirror.SeatResult
			result string
		)
		if err := rows.Scan(&sr.Seat, &sr.DisplayName, &sr.UserID, &result); err != nil {
			return mirror.Record{}, fmt.Errorf("scanning results of %s: %w", code, err)
		}
		sr.Result = mirror.Result(result)
		rec.Results = append(rec.Results, sr)
	}
	return rec, rows.Err()
}

var _ mirror.Sink = (*Store)(nil)
