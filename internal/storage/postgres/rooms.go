package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cory-johannsen/diceraja/internal/game/session"
	"github.com/cory-johannsen/diceraja/internal/mirror"
)

// ErrRoomNotFound is returned when a mirrored room lookup yields no results.
var ErrRoomNotFound = errors.New("mirrored room not found")

// RoomRepository mirrors room records and final results.
type RoomRepository struct {
	pool *Pool
}

// NewRoomRepository creates a RoomRepository backed by the given pool.
//
// Precondition: pool must be a valid, open connection pool.
func NewRoomRepository(pool *Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

// Write upserts rec and, when the game is over, records each seat's result.
// An older record never overwrites a newer one.
//
// Postcondition: both statements commit together or not at all.
func (r *RoomRepository) Write(ctx context.Context, rec mirror.Record) error {
	participants, err := json.Marshal(rec.Participants)
	if err != nil {
		return fmt.Errorf("encoding participants: %w", err)
	}
	var state *string
	if rec.State != nil {
		b, err := json.Marshal(rec.State)
		if err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		s := string(b)
		state = &s
	}

	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO rooms (code, game_kind, participants, state, active, winner, created_at, updated_at)
			 VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6, $7, $8)
			 ON CONFLICT (code) DO UPDATE SET
			   participants = EXCLUDED.participants,
			   state        = EXCLUDED.state,
			   active       = EXCLUDED.active,
			   winner       = EXCLUDED.winner,
			   updated_at   = EXCLUDED.updated_at
			 WHERE rooms.updated_at <= EXCLUDED.updated_at`,
			rec.Code, string(rec.GameKind), string(participants), state, rec.Active, rec.Winner,
			rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting room %s: %w", rec.Code, err)
		}

		for _, res := range rec.Results {
			var userID *string
			if res.UserID != "" {
				userID = &res.UserID
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO game_results (code, seat, display_name, user_id, result)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (code, seat) DO NOTHING`,
				rec.Code, res.Seat, res.DisplayName, userID, string(res.Result),
			)
			if err != nil {
				return fmt.Errorf("recording result for %s seat %d: %w", rec.Code, res.Seat, err)
			}
		}
		return nil
	})
}

// Get returns the mirrored record for code, including results.
//
// Postcondition: Returns the record or ErrRoomNotFound.
func (r *RoomRepository) Get(ctx context.Context, code string) (mirror.Record, error) {
	var (
		rec          mirror.Record
		kind         string
		participants []byte
		state        []byte
		winner       *int
	)
	err := r.pool.DB().QueryRow(ctx,
		`SELECT code, game_kind, participants, state, active, winner, created_at, updated_at
		 FROM rooms WHERE code = $1`,
		code,
	).Scan(&rec.Code, &kind, &participants, &state, &rec.Active, &winner, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mirror.Record{}, ErrRoomNotFound
		}
		return mirror.Record{}, fmt.Errorf("querying room %s: %w", code, err)
	}
	rec.GameKind = session.Kind(kind)
	rec.Winner = winner

	if err := json.Unmarshal(participants, &rec.Participants); err != nil {
		return mirror.Record{}, fmt.Errorf("decoding participants of %s: %w", code, err)
	}
	if state != nil {
		rec.State = &session.State{}
		if err := json.Unmarshal(state, rec.State); err != nil {
			return mirror.Record{}, fmt.Errorf("decoding state of %s: %w", code, err)
		}
	}

	rows, err := r.pool.DB().Query(ctx,
		`SELECT seat, display_name, COALESCE(user_id, ''), result
		 FROM game_results WHERE code = $1 ORDER BY seat`,
		code,
	)
	if err != nil {
		return mirror.Record{}, fmt.Errorf("querying results of %s: %w", code, err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (mirror.SeatResult, error) {
		var (
			sr     mirror.SeatResult
			result string
		)
		err := row.Scan(&sr.Seat, &sr.DisplayName, &sr.UserID, &result)
		sr.Result = mirror.Result(result)
		return sr, err
	})
	if err != nil {
		return mirror.Record{}, fmt.Errorf("scanning results of %s: %w", code, err)
	}
	if len(results) > 0 {
		rec.Results = results
	}
	return rec, nil
}

// Standings counts wins, losses and draws recorded for userID.
func (r *RoomRepository) Standings(ctx context.Context, userID string) (map[mirror.Result]int, error) {
	rows, err := r.pool.DB().Query(ctx,
		`SELECT result, COUNT(*) FROM game_results WHERE user_id = $1 GROUP BY result`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying standings: %w", err)
	}
	defer rows.Close()

	out := make(map[mirror.Result]int)
	for rows.Next() {
		var (
			result string
			n      int
		)
		if err := rows.Scan(&result, &n); err != nil {
			return nil, fmt.Errorf("scanning standings: %w", err)
		}
		out[mirror.Result(result)] = n
	}
	return out, rows.Err()
}

var _ mirror.Sink = (*RoomRepository)(nil)
