// Package main provides a CLI tool for inspecting mirrored rooms and player
// standings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cory-johannsen/diceraja/internal/config"
	"github.com/cory-johannsen/diceraja/internal/mirror"
	"github.com/cory-johannsen/diceraja/internal/storage/postgres"
	redisstore "github.com/cory-johannsen/diceraja/internal/storage/redis"
	"github.com/cory-johannsen/diceraja/internal/storage/sqlite"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (empty = defaults and environment)")
	show := flag.String("show", "", "room code to print")
	source := flag.String("source", config.BackendPostgres, "store read by -show: postgres, redis or sqlite")
	standings := flag.String("standings", "", "user id whose wins, losses and draws are printed")
	active := flag.Bool("active", false, "list rooms the redis snapshot store last saw active")
	flag.Parse()

	if *show == "" && *standings == "" && !*active {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *show != "" {
		rec, err := lookup(ctx, cfg, *source, *show)
		if err != nil {
			log.Fatalf("looking up room %s: %v", *show, err)
		}
		fmt.Fprintln(os.Stdout, summary(rec))
	}

	if *standings != "" {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("connecting to database: %v", err)
		}
		counts, err := postgres.NewRoomRepository(pool).Standings(ctx, *standings)
		pool.Close()
		if err != nil {
			log.Fatalf("reading standings: %v", err)
		}
		fmt.Fprintf(os.Stdout, "%s: %d wins, %d losses, %d draws\n", *standings,
			counts[mirror.Win], counts[mirror.Loss], counts[mirror.Draw])
	}

	if *active {
		client, err := redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("connecting to redis: %v", err)
		}
		defer client.Close()
		store := redisstore.NewSnapshotStore(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
		codes, err := store.ActiveCodes(ctx)
		if err != nil {
			log.Fatalf("listing active rooms: %v", err)
		}
		sort.Strings(codes)
		for _, code := range codes {
			rec, err := store.Get(ctx, code)
			if err != nil {
				fmt.Fprintf(os.Stdout, "%s: %v\n", code, err)
				continue
			}
			fmt.Fprintln(os.Stdout, summary(rec))
		}
		fmt.Fprintf(os.Stdout, "%d active rooms\n", len(codes))
	}

	fmt.Fprintf(os.Stdout, "[%s]\n", time.Since(start))
}

// lookup reads one room from the named store.
func lookup(ctx context.Context, cfg config.Config, source, code string) (mirror.Record, error) {
	switch source {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return mirror.Record{}, fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		return postgres.NewRoomRepository(pool).Get(ctx, code)
	case config.BackendRedis:
		client, err := redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			return mirror.Record{}, fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		return redisstore.NewSnapshotStore(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL).Get(ctx, code)
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return mirror.Record{}, fmt.Errorf("opening sqlite store: %w", err)
		}
		defer store.Close()
		return store.Get(ctx, code)
	}
	return mirror.Record{}, fmt.Errorf("unknown source %q: must be postgres, redis or sqlite", source)
}

func summary(rec mirror.Record) string {
	names := make([]string, len(rec.Participants))
	for i, p := range rec.Participants {
		names[i] = p.DisplayName
		if p.UserID != "" {
			names[i] += " <" + p.UserID + ">"
		}
	}
	status := "waiting"
	switch {
	case rec.Over():
		results := make([]string, len(rec.Results))
		for i, r := range rec.Results {
			results[i] = fmt.Sprintf("%s %s", r.DisplayName, r.Result)
		}
		status = "over: " + strings.Join(results, ", ")
	case !rec.Active:
		status = "closed"
	case rec.State != nil:
		status = fmt.Sprintf("seat %d to move", rec.State.CurrentTurn)
	}
	return fmt.Sprintf("%s %-4s [%s] %s (updated %s)",
		rec.Code, rec.GameKind, strings.Join(names, " vs "), status, rec.UpdatedAt.Format(time.RFC3339))
}
