// Package config loads server settings from defaults, an optional TOML file
// and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Duration is a time.Duration written as "15m" in TOML.
type Duration time.Duration

// UnmarshalText parses values accepted by time.ParseDuration.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Listen holds listener addresses. An empty GRPC address disables the health listener.
type Listen struct {
	HTTP string `toml:"http"`
	GRPC string `toml:"grpc"`
	Dev  bool   `toml:"dev"`
}

// Storage selects the persistence backend.
type Storage struct {
	Driver     string `toml:"driver"`
	DSN        string `toml:"dsn"`
	SQLitePath string `toml:"sqlite_path"`
}

// Session configures profile session tokens.
type Session struct {
	SigningKey string   `toml:"signing_key"`
	TTL        Duration `toml:"ttl"`
}

// NATS configures event publishing. An empty URL disables it.
type NATS struct {
	URL           string   `toml:"url"`
	MaxReconnects int      `toml:"max_reconnects"`
	ReconnectWait Duration `toml:"reconnect_wait"`
}

// TMDB configures the catalog lookup. An empty API key disables it.
type TMDB struct {
	APIKey   string   `toml:"api_key"`
	BaseURL  string   `toml:"base_url"`
	Language string   `toml:"language"`
	CacheTTL Duration `toml:"cache_ttl"`
}

// Log configures the logger.
type Log struct {
	Level string `toml:"level"`
}

// CORS configures the HTTP API's cross-origin policy.
type CORS struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Config is the complete server configuration.
type Config struct {
	Listen  Listen  `toml:"listen"`
	Storage Storage `toml:"storage"`
	Session Session `toml:"session"`
	NATS    NATS    `toml:"nats"`
	TMDB    TMDB    `toml:"tmdb"`
	Log     Log     `toml:"log"`
	CORS    CORS    `toml:"cors"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:  Listen{HTTP: ":8080", GRPC: ":8081"},
		Storage: Storage{Driver: DriverSQLite, SQLitePath: "stremur.db"},
		Session: Session{TTL: Duration(15 * time.Minute)},
		NATS:    NATS{MaxReconnects: 10, ReconnectWait: Duration(2 * time.Second)},
		TMDB: TMDB{
			BaseURL:  "https://api.themoviedb.org/3",
			Language: "en-US",
			CacheTTL: Duration(time.Hour),
		},
		Log:  Log{Level: "info"},
		CORS: CORS{AllowedOrigins: []string{"*"}},
	}
}

// Decode reads TOML from r on top of the values already in c.
func (c *Config) Decode(r io.Reader) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Load returns defaults overlaid with the file at path. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := cfg.Decode(f); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse builds the configuration from command-line args. Flags that are set
// explicitly win over the config file.
func Parse(name string, args []string) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", "", "path to TOML config file")

	ov := Default()
	ttl := time.Duration(ov.Session.TTL)
	fs.StringVar(&ov.Listen.HTTP, "http-addr", ov.Listen.HTTP, "HTTP API listen address")
	fs.StringVar(&ov.Listen.GRPC, "grpc-addr", ov.Listen.GRPC, "gRPC health listen address (empty disables)")
	fs.BoolVar(&ov.Listen.Dev, "dev", ov.Listen.Dev, "enable gRPC reflection (dev only)")
	fs.StringVar(&ov.Storage.Driver, "driver", ov.Storage.Driver, "storage driver: postgres or sqlite")
	fs.StringVar(&ov.Storage.DSN, "dsn", ov.Storage.DSN, "PostgreSQL DSN")
	fs.StringVar(&ov.Storage.SQLitePath, "sqlite-path", ov.Storage.SQLitePath, "SQLite database file")
	fs.StringVar(&ov.Session.SigningKey, "jwt-key", ov.Session.SigningKey, "HS256 signing key for profile sessions")
	fs.DurationVar(&ttl, "session-ttl", ttl, "profile session token TTL")
	fs.StringVar(&ov.NATS.URL, "nats-url", ov.NATS.URL, "NATS server URL (empty disables events)")
	fs.StringVar(&ov.TMDB.APIKey, "tmdb-key", ov.TMDB.APIKey, "TMDB API key (empty disables catalog lookups)")
	fs.StringVar(&ov.Log.Level, "log-level", ov.Log.Level, "log level")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg, err := Load(*path)
	if err != nil {
		return Config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.Listen.HTTP = ov.Listen.HTTP
		case "grpc-addr":
			cfg.Listen.GRPC = ov.Listen.GRPC
		case "dev":
			cfg.Listen.Dev = ov.Listen.Dev
		case "driver":
			cfg.Storage.Driver = ov.Storage.Driver
		case "dsn":
			cfg.Storage.DSN = ov.Storage.DSN
		case "sqlite-path":
			cfg.Storage.SQLitePath = ov.Storage.SQLitePath
		case "jwt-key":
			cfg.Session.SigningKey = ov.Session.SigningKey
		case "session-ttl":
			cfg.Session.TTL = Duration(ttl)
		case "nats-url":
			cfg.NATS.URL = ov.NATS.URL
		case "tmdb-key":
			cfg.TMDB.APIKey = ov.TMDB.APIKey
		case "log-level":
			cfg.Log.Level = ov.Log.Level
		}
	})
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration can start a server.
func (c Config) Validate() error {
	var problems []error
	switch c.Storage.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			problems = append(problems, errors.New("storage.dsn is required for postgres"))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			problems = append(problems, errors.New("storage.sqlite_path is required for sqlite"))
		}
	default:
		problems = append(problems, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if c.Session.SigningKey == "" {
		problems = append(problems, errors.New("session.signing_key is required"))
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, errors.New("session.ttl must be positive"))
	}
	if c.Listen.HTTP == "" {
		problems = append(problems, errors.New("listen.http is required"))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(problems...))
	}
	return nil
}
