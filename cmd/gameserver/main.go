// Package main provides the game-room coordinator binary. It serves the room
// protocol over WebSocket and Telnet and mirrors rooms to the configured
// stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/diceraja/internal/auth"
	"github.com/cory-johannsen/diceraja/internal/config"
	"github.com/cory-johannsen/diceraja/internal/frontend/telnet"
	"github.com/cory-johannsen/diceraja/internal/frontend/websocket"
	"github.com/cory-johannsen/diceraja/internal/game/dice"
	"github.com/cory-johannsen/diceraja/internal/game/room"
	"github.com/cory-johannsen/diceraja/internal/gameserver"
	"github.com/cory-johannsen/diceraja/internal/mirror"
	"github.com/cory-johannsen/diceraja/internal/observability"
	"github.com/cory-johannsen/diceraja/internal/server"
	"github.com/cory-johannsen/diceraja/internal/storage/postgres"
	redisstore "github.com/cory-johannsen/diceraja/internal/storage/redis"
	"github.com/cory-johannsen/diceraja/internal/storage/sqlite"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (empty = defaults and environment)")
	migrateDB := flag.Bool("migrate", false, "apply PostgreSQL migrations before serving")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	lifecycle := server.NewLifecycle(logger)
	lifecycle.SetStopTimeout(cfg.Server.ShutdownTimeout)

	sinks, err := mirrorSinks(ctx, cfg, *migrateDB, lifecycle, logger)
	if err != nil {
		logger.Fatal("building mirror", zap.Error(err))
	}

	var recorder gameserver.Recorder
	if len(sinks) > 0 {
		async := mirror.NewAsync(sinks, cfg.Mirror.QueueSize, cfg.Mirror.WriteTimeout, logger)
		lifecycle.Add("mirror", server.NewContextService(async.Run))
		recorder = async
	}

	var src dice.Source
	if cfg.Rooms.DiceSeed != 0 {
		src = dice.NewSeededSource(cfg.Rooms.DiceSeed)
		logger.Warn("using seeded dice", zap.Uint64("seed", cfg.Rooms.DiceSeed))
	} else {
		src = dice.NewCryptoSource()
	}
	registry := room.NewRegistry(src, dice.NewLoggedRoller(src, logger),
		room.WithCodeAttempts(cfg.Rooms.CodeAttempts))

	hub := gameserver.NewHub(cfg.WebSocket.OutboxSize, logger)
	dispatcher := gameserver.NewDispatcher(registry, hub, recorder, logger, cfg.Rooms.QueueSize)
	lifecycle.Add("dispatcher", server.NewContextService(dispatcher.Run))

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   []byte(cfg.Auth.Secret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Required: cfg.Auth.Required,
	})
	if err != nil {
		logger.Fatal("creating token verifier", zap.Error(err))
	}

	if cfg.WebSocket.Enabled {
		ws := websocket.NewServer(cfg.WebSocket, hub, dispatcher, verifier, logger)
		lifecycle.Add("websocket", &server.FuncService{
			StartFn: ws.ListenAndServe,
			StopFn:  ws.Stop,
		})
	}
	if cfg.Telnet.Enabled {
		acc := telnet.NewAcceptor(cfg.Telnet, telnet.NewGameHandler(hub, dispatcher, verifier, logger), logger)
		lifecycle.Add("telnet", &server.FuncService{
			StartFn: acc.ListenAndServe,
			StopFn:  acc.Stop,
		})
	}
	if cfg.Health.Enabled {
		health := server.NewHealthService(cfg.Health, logger)
		lifecycle.Add("health", health)
		lifecycle.OnReady(func() { health.SetServing(true) })
		lifecycle.OnShutdown(func() { health.SetServing(false) })
	}

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Strings("mirror_backends", cfg.Mirror.Backends),
		zap.Bool("auth", verifier.Enabled()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// mirrorSinks opens every configured backend and registers a service that
// closes it. Services stop in reverse order, so the stores outlive the mirror
// worker that flushes into them.
func mirrorSinks(ctx context.Context, cfg config.Config, migrateDB bool, lc *server.Lifecycle, logger *zap.Logger) (mirror.Fanout, error) {
	var sinks mirror.Fanout

	if cfg.Mirror.Uses(config.BackendPostgres) {
		dbStart := time.Now()
		if migrateDB {
			if err := postgres.MigrateUp(cfg.Database.DSN()); err != nil {
				return nil, fmt.Errorf("migrating database: %w", err)
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		sinks = append(sinks, mirror.Named{Name: config.BackendPostgres, Sink: postgres.NewRoomRepository(pool)})
		lc.Add("postgres", server.NewContextService(func(ctx context.Context) error {
			defer pool.Close()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		}))
	}

	if cfg.Mirror.Uses(config.BackendRedis) {
		client, err := redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		sinks = append(sinks, mirror.Named{
			Name: config.BackendRedis,
			Sink: redisstore.NewSnapshotStore(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL),
		})
		lc.Add("redis", closer(func() error { return client.Close() }))
	}

	if cfg.Mirror.Uses(config.BackendSQLite) {
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite opened", zap.String("path", cfg.SQLite.Path))
		sinks = append(sinks, mirror.Named{Name: config.BackendSQLite, Sink: store})
		lc.Add("sqlite", closer(store.Close))
	}

	return sinks, nil
}

// closer is a service that idles until shutdown and then releases a store.
func closer(closeFn func() error) server.Service {
	return server.NewContextService(func(ctx context.Context) error {
		<-ctx.Done()
		return closeFn()
	})
}
