// Package redis keeps a shared snapshot of live rooms in Redis so other
// processes (dashboards, lobby listings) can see them without asking the
// coordinator.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/diceraja/internal/config"
	"github.com/cory-johannsen/diceraja/internal/mirror"
)

// ErrRoomNotFound is returned when no snapshot exists for a code.
var ErrRoomNotFound = errors.New("room snapshot not found")

// NewClient connects to Redis and verifies the connection.
//
// Postcondition: Returns a pinged client or a non-nil error.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// SnapshotStore writes room records as JSON strings and tracks the set of
// active codes.
type SnapshotStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSnapshotStore creates a store. A zero ttl keeps snapshots forever.
//
// Precondition: client must be non-nil.
func NewSnapshotStore(client redis.UniversalClient, prefix string, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *SnapshotStore) roomKey(code string) string {
	return s.prefix + code
}

func (s *SnapshotStore) activeKey() string {
	return s.prefix + "active"
}

// Write stores rec and moves its code in or out of the active set in one
// transaction.
func (s *SnapshotStore) Write(ctx context.Context, rec mirror.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding room %s: %w", rec.Code, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.roomKey(rec.Code), data, s.ttl)
		if rec.Active {
			pipe.SAdd(ctx, s.activeKey(), rec.Code)
		} else {
			pipe.SRem(ctx, s.activeKey(), rec.Code)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing room %s: %w", rec.Code, err)
	}
	return nil
}

// Get returns the snapshot for code.
//
// Postcondition: Returns the record or ErrRoomNotFound.
func (s *SnapshotStore) Get(ctx context.Context, code string) (mirror.Record, error) {
	data, err := s.client.Get(ctx, s.roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return mirror.Record{}, ErrRoomNotFound
	}
	if err != nil {
		return mirror.Record{}, fmt.Errorf("reading room %s: %w", code, err)
	}
	var rec mirror.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return mirror.Record{}, fmt.Errorf("decoding room %s: %w", code, err)
	}
	return rec, nil
}

// ActiveCodes lists the codes of rooms last seen active.
func (s *SnapshotStore) ActiveCodes(ctx context.Context) ([]string, error) {
	codes, err := s.client.SMembers(ctx, s.activeKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing active rooms: %w", err)
	}
	return codes, nil
}

var _ mirror.Sink = (*SnapshotStore)(nil)
