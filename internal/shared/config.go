package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Refresher   RefresherConfig   `toml:"refresher"`
	Limits      LimitsConfig      `toml:"limits"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"SPOTIFY_CALLBACK"`
}

// Map returns the credentials in the form accepted by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host     string `toml:"host" env:"IP"`
	Port     int    `toml:"port" env:"PORT"`
	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`
	// Production marks session cookies Secure.
	Production bool `toml:"production" env:"PRODUCTION"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SessionConfig contains the signing secret and lifetime of browser sessions.
type SessionConfig struct {
	Secret string   `toml:"secret" env:"SESSION_SECRET"`
	MaxAge Duration `toml:"max_age"`
}

// RefresherConfig tunes the background token probe/refresh worker pool.
type RefresherConfig struct {
	Workers   int      `toml:"workers"`
	QueueSize int      `toml:"queue_size"`
	RateLimit float64  `toml:"rate_limit"`
	Timeout   Duration `toml:"timeout"`
}

// LimitsConfig holds per-endpoint request limits.
type LimitsConfig struct {
	Credentials Limit `toml:"credentials"`
	Keys        Limit `toml:"keys"`
}

// Limit allows Max requests per Window for a single client.
type Limit struct {
	Max    int      `toml:"max"`
	Window Duration `toml:"window"`
}

// Duration is a [time.Duration] that decodes from TOML strings like "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overrides config values with any environment variables that are set.
//
// Unset variables leave the file or default values untouched.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ResolveConfig loads the config file at path when it exists (defaults otherwise) and applies environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the settings required to serve the web application.
func (c *Config) Validate() error {
	spotify := c.Credentials.Spotify
	if spotify.ClientID == "" || spotify.ClientSecret == "" || spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify client_id, client_secret and redirect_uri are required", ErrMissingCredentials)
	}
	if len(c.Session.Secret) < 16 {
		return fmt.Errorf("%w: session secret must be at least 16 characters", ErrInvalidConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("%w: server port must be positive", ErrInvalidConfig)
	}
	return nil
}

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
