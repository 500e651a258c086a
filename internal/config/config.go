// Package config provides Viper-based configuration loading for the
// game server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds TCP listener settings.
type ServerConfig struct {
	// Host is the bind address for the game listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the game listener.
	Port int `mapstructure:"port"`
	// ExpectedPlayers is the number of bound players required before
	// the round loop starts.
	ExpectedPlayers int `mapstructure:"expected_players"`
	// WriteTimeout is the per-write deadline on client connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
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

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameConfig holds round-loop, timeout, and liveness policy settings.
type GameConfig struct {
	// MaxRounds is the round-count ceiling before the game ends.
	MaxRounds int `mapstructure:"max_rounds"`
	// ArenaMaxSubRounds caps sub-rounds inside one arena resolution.
	ArenaMaxSubRounds int `mapstructure:"arena_max_subrounds"`
	// HeartbeatInterval is how often the server pings bound clients.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// InputTimeout is how long a prompted read waits before the
	// timeout warning is sent.
	InputTimeout time.Duration `mapstructure:"input_timeout"`
	// GraceTimeout is the additional wait after the warning before
	// the hard timeout fires.
	GraceTimeout time.Duration `mapstructure:"grace_timeout"`
	// HardTimeoutEnabled controls whether the hard timeout fires at
	// all. When false the warning is still sent but prompted reads
	// wait indefinitely.
	HardTimeoutEnabled bool `mapstructure:"hard_timeout_enabled"`
	// LivenessUnauthenticated is the inactivity window for
	// connections that have not authenticated yet.
	LivenessUnauthenticated time.Duration `mapstructure:"liveness_unauthenticated"`
	// LivenessAuthenticated is the inactivity window for
	// authenticated connections not yet bound to a character.
	LivenessAuthenticated time.Duration `mapstructure:"liveness_authenticated"`
	// LivenessBound is the inactivity window for connections bound to
	// a character and inside the round loop.
	LivenessBound time.Duration `mapstructure:"liveness_bound"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ExpectedPlayers < 1 {
		errs = append(errs, fmt.Sprintf("server.expected_players must be >= 1, got %d", s.ExpectedPlayers))
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
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
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
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

func validateGame(g GameConfig) error {
	var errs []string
	if g.MaxRounds < 1 {
		errs = append(errs, fmt.Sprintf("game.max_rounds must be >= 1, got %d", g.MaxRounds))
	}
	if g.ArenaMaxSubRounds < 1 {
		errs = append(errs, fmt.Sprintf("game.arena_max_subrounds must be >= 1, got %d", g.ArenaMaxSubRounds))
	}
	if g.HeartbeatInterval <= 0 {
		errs = append(errs, "game.heartbeat_interval must be positive")
	}
	if g.InputTimeout <= 0 {
		errs = append(errs, "game.input_timeout must be positive")
	}
	if g.GraceTimeout < 0 {
		errs = append(errs, "game.grace_timeout must not be negative")
	}
	if g.LivenessUnauthenticated <= 0 {
		errs = append(errs, "game.liveness_unauthenticated must be positive")
	}
	if g.LivenessAuthenticated <= 0 {
		errs = append(errs, "game.liveness_authenticated must be positive")
	}
	if g.LivenessBound <= 0 {
		errs = append(errs, "game.liveness_bound must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with WUXIA_ prefix
	v.SetEnvPrefix("WUXIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
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
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8888)
	v.SetDefault("server.expected_players", 2)
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "wuxia")
	v.SetDefault("database.password", "wuxia")
	v.SetDefault("database.name", "wuxia")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.max_rounds", 100)
	v.SetDefault("game.arena_max_subrounds", 50)
	v.SetDefault("game.heartbeat_interval", "20s")
	v.SetDefault("game.input_timeout", "60s")
	v.SetDefault("game.grace_timeout", "10s")
	v.SetDefault("game.hard_timeout_enabled", true)
	v.SetDefault("game.liveness_unauthenticated", "60s")
	v.SetDefault("game.liveness_authenticated", "120s")
	v.SetDefault("game.liveness_bound", "180s")
}
