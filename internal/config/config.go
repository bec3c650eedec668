// Package config provides Viper-based configuration loading for the game-room
// coordinator.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mirror backend names accepted in mirror.backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// Name identifies this instance in logs.
	Name string `mapstructure:"name"`
	// ShutdownTimeout bounds how long services get to stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RoomsConfig holds registry and dispatcher settings.
type RoomsConfig struct {
	// CodeAttempts bounds room code retries on collision.
	CodeAttempts int `mapstructure:"code_attempts"`
	// QueueSize is the dispatcher's inbound action buffer.
	QueueSize int `mapstructure:"queue_size"`
	// DiceSeed, when non-zero, makes codes and rolls deterministic.
	DiceSeed uint64 `mapstructure:"dice_seed"`
}

// WebSocketConfig holds the WebSocket transport settings.
type WebSocketConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Path         string        `mapstructure:"path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// OutboxSize is the per-connection notification buffer.
	OutboxSize int `mapstructure:"outbox_size"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (w WebSocketConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// TelnetConfig holds Telnet acceptor settings.
type TelnetConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Host is the bind address for the Telnet listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the Telnet listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read timeout for Telnet connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for Telnet connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// HealthConfig holds the gRPC health endpoint settings.
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the "host:port" gRPC address.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds the live-room snapshot store settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	// TTL expires snapshots of rooms that stopped changing.
	TTL time.Duration `mapstructure:"ttl"`
}

// SQLiteConfig holds the embedded mirror store settings.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// MirrorConfig selects and tunes the persistence mirror.
type MirrorConfig struct {
	// Backends lists the sinks every record is written to. Empty disables mirroring.
	Backends     []string      `mapstructure:"backends"`
	QueueSize    int           `mapstructure:"queue_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Uses reports whether backend is enabled.
func (m MirrorConfig) Uses(backend string) bool {
	return slices.Contains(m.Backends, backend)
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
	// Required refuses anonymous play: WebSocket upgrades need a valid token
	// and Telnet clients must log in before playing.
	Required bool `mapstructure:"required"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Rooms     RoomsConfig     `mapstructure:"rooms"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Telnet    TelnetConfig    `mapstructure:"telnet"`
	Health    HealthConfig    `mapstructure:"health"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	add(validateServer(c.Server))
	add(validateRooms(c.Rooms))
	add(validateWebSocket(c.WebSocket))
	add(validateTelnet(c.Telnet))
	add(validateHealth(c.Health))
	add(validateMirror(c.Mirror))
	if c.Mirror.Uses(BackendPostgres) {
		add(validateDatabase(c.Database))
	}
	if c.Mirror.Uses(BackendRedis) {
		add(validateRedis(c.Redis))
	}
	if c.Mirror.Uses(BackendSQLite) && c.SQLite.Path == "" {
		errs = append(errs, "sqlite.path must not be empty")
	}
	add(validateAuth(c.Auth))
	add(validateLogging(c.Logging))

	if !c.WebSocket.Enabled && !c.Telnet.Enabled {
		errs = append(errs, "at least one of websocket.enabled or telnet.enabled must be true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joined(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "server.name must not be empty")
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	return joined(errs)
}

func validateRooms(r RoomsConfig) error {
	var errs []string
	if r.CodeAttempts < 1 {
		errs = append(errs, fmt.Sprintf("rooms.code_attempts must be >= 1, got %d", r.CodeAttempts))
	}
	if r.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("rooms.queue_size must be >= 1, got %d", r.QueueSize))
	}
	return joined(errs)
}

func validateWebSocket(w WebSocketConfig) error {
	if !w.Enabled {
		return nil
	}
	var errs []string
	if !validPort(w.Port) {
		errs = append(errs, fmt.Sprintf("websocket.port must be 1-65535, got %d", w.Port))
	}
	if !strings.HasPrefix(w.Path, "/") {
		errs = append(errs, fmt.Sprintf("websocket.path must start with /, got %q", w.Path))
	}
	if w.ReadLimit < 1 {
		errs = append(errs, "websocket.read_limit must be >= 1")
	}
	if w.PongWait <= 0 || w.PingInterval <= 0 || w.PingInterval >= w.PongWait {
		errs = append(errs, "websocket.ping_interval must be positive and shorter than websocket.pong_wait")
	}
	if w.WriteTimeout <= 0 {
		errs = append(errs, "websocket.write_timeout must be positive")
	}
	if w.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("websocket.outbox_size must be >= 1, got %d", w.OutboxSize))
	}
	return joined(errs)
}

func validateTelnet(t TelnetConfig) error {
	if !t.Enabled {
		return nil
	}
	var errs []string
	if !validPort(t.Port) {
		errs = append(errs, fmt.Sprintf("telnet.port must be 1-65535, got %d", t.Port))
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "telnet.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "telnet.write_timeout must not be negative")
	}
	return joined(errs)
}

func validateHealth(h HealthConfig) error {
	if h.Enabled && !validPort(h.Port) {
		return fmt.Errorf("health.port must be 1-65535, got %d", h.Port)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joined(errs)
}

func validateRedis(r RedisConfig) error {
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty")
	}
	if r.DB < 0 {
		errs = append(errs, fmt.Sprintf("redis.db must be >= 0, got %d", r.DB))
	}
	if r.TTL < 0 {
		errs = append(errs, "redis.ttl must not be negative")
	}
	return joined(errs)
}

func validateMirror(m MirrorConfig) error {
	var errs []string
	seen := make(map[string]bool)
	for _, b := range m.Backends {
		switch b {
		case BackendPostgres, BackendRedis, BackendSQLite:
		default:
			errs = append(errs, fmt.Sprintf("mirror.backends entries must be one of [postgres, redis, sqlite], got %q", b))
		}
		if seen[b] {
			errs = append(errs, fmt.Sprintf("mirror.backends lists %q twice", b))
		}
		seen[b] = true
	}
	if m.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("mirror.queue_size must be >= 1, got %d", m.QueueSize))
	}
	if m.WriteTimeout < 0 {
		errs = append(errs, "mirror.write_timeout must not be negative")
	}
	return joined(errs)
}

func validateAuth(a AuthConfig) error {
	if a.Required && a.Secret == "" {
		return fmt.Errorf("auth.secret must be set when auth.required is true")
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with DICERAJA_ prefix
	v.SetEnvPrefix("DICERAJA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "diceraja")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("rooms.code_attempts", 64)
	v.SetDefault("rooms.queue_size", 256)
	v.SetDefault("rooms.dice_seed", 0)

	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.host", "0.0.0.0")
	v.SetDefault("websocket.port", 8080)
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_limit", 4096)
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_interval", "54s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.outbox_size", 64)

	v.SetDefault("telnet.enabled", false)
	v.SetDefault("telnet.host", "0.0.0.0")
	v.SetDefault("telnet.port", 4000)
	v.SetDefault("telnet.read_timeout", "5m")
	v.SetDefault("telnet.write_timeout", "30s")

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.host", "0.0.0.0")
	v.SetDefault("health.port", 50051)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "diceraja")
	v.SetDefault("database.password", "diceraja")
	v.SetDefault("database.name", "diceraja")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "diceraja:room:")
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("sqlite.path", "diceraja.db")

	v.SetDefault("mirror.backends", []string{})
	v.SetDefault("mirror.queue_size", 1024)
	v.SetDefault("mirror.write_timeout", "5s")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "diceraja")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.required", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
