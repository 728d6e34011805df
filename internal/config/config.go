// ABOUTME: Configuration loading and parsing for the storyteller server
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by the loader.
const (
	EnvConfigPath = "STORYTELLER_CONFIG"
	EnvDBPath     = "STORYTELLER_DB_PATH"
)

// Config represents the complete storyteller configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Auth       AuthConfig       `yaml:"auth" toml:"auth"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit" toml:"ratelimit"`
	Media      MediaConfig      `yaml:"media" toml:"media"`
	Generation GenerationConfig `yaml:"generation" toml:"generation"`
	App        AppConfig        `yaml:"app" toml:"app"`
	Catalog    CatalogConfig    `yaml:"catalog" toml:"catalog"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr"`
	ReadTimeout     time.Duration `yaml:"-" toml:"-"`
	WriteTimeout    time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReadTimeoutRaw     string `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeoutRaw    string `yaml:"write_timeout" toml:"write_timeout"`
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret" toml:"jwt_secret"`
	MinPasswordLength int           `yaml:"min_password_length" toml:"min_password_length"`
	BcryptCost        int           `yaml:"bcrypt_cost" toml:"bcrypt_cost"`
	SecureCookies     bool          `yaml:"secure_cookies" toml:"secure_cookies"`
	TokenTTL          time.Duration `yaml:"-" toml:"-"`
	SessionTTL        time.Duration `yaml:"-" toml:"-"`

	TokenTTLRaw   string `yaml:"token_ttl" toml:"token_ttl"`
	SessionTTLRaw string `yaml:"session_ttl" toml:"session_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// RateLimitConfig limits login and registration attempts per client IP
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" toml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int  `yaml:"burst" toml:"burst"`
}

// MediaConfig holds the directory for narration audio and uploads
type MediaConfig struct {
	Dir            string `yaml:"dir" toml:"dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
}

// GenerationConfig selects the AI provider for drafting, narration and images
type GenerationConfig struct {
	Provider        string        `yaml:"provider" toml:"provider"`
	APIKey          string        `yaml:"api_key" toml:"api_key"`
	BaseURL         string        `yaml:"base_url" toml:"base_url"`
	ChatModel       string        `yaml:"chat_model" toml:"chat_model"`
	ImageModel      string        `yaml:"image_model" toml:"image_model"`
	SpeechModel     string        `yaml:"speech_model" toml:"speech_model"`
	MaxTokens       int           `yaml:"max_tokens" toml:"max_tokens"`
	Temperature     float32       `yaml:"temperature" toml:"temperature"`
	FallbackOnError bool          `yaml:"fallback_on_error" toml:"fallback_on_error"`
	Timeout         time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// AppConfig holds product limits and background intervals
type AppConfig struct {
	Name                string        `yaml:"name" toml:"name"`
	MaxStoryLength      int           `yaml:"max_story_length" toml:"max_story_length"`
	MaxRoomParticipants int           `yaml:"max_room_participants" toml:"max_room_participants"`
	DefaultLanguage     string        `yaml:"default_language" toml:"default_language"`
	ViewDedupeWindow    time.Duration `yaml:"-" toml:"-"`
	SessionSweep        time.Duration `yaml:"-" toml:"-"`

	ViewDedupeWindowRaw string `yaml:"view_dedupe_window" toml:"view_dedupe_window"`
	SessionSweepRaw     string `yaml:"session_sweep_interval" toml:"session_sweep_interval"`
}

// CatalogConfig holds the selectable values offered by forms and filters
type CatalogConfig struct {
	Regions    []string `yaml:"regions" toml:"regions"`
	Languages  []string `yaml:"languages" toml:"languages"`
	Categories []string `yaml:"categories" toml:"categories"`
	Durations  []string `yaml:"durations" toml:"durations"`
	StoryTypes []string `yaml:"story_types" toml:"story_types"`
	Lengths    []string `yaml:"lengths" toml:"lengths"`
	Styles     []string `yaml:"styles" toml:"styles"`
}

// Default returns a configuration that runs locally without a config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:           "127.0.0.1:8080",
			ReadTimeoutRaw:     "15s",
			WriteTimeoutRaw:    "60s",
			ShutdownTimeoutRaw: "10s",
		},
		Database: DatabaseConfig{Path: "./data/storyteller.db"},
		Auth: AuthConfig{
			MinPasswordLength: 6,
			BcryptCost:        12,
			TokenTTLRaw:       "24h",
			SessionTTLRaw:     "168h",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 10,
			Burst:             5,
		},
		Media: MediaConfig{Dir: "./data/media", MaxUploadBytes: 100 << 20},
		Generation: GenerationConfig{
			Provider:    "stub",
			MaxTokens:   4000,
			Temperature: 0.8,
			TimeoutRaw:  "60s",
		},
		App: AppConfig{
			Name:                "Cultural Storyteller",
			MaxStoryLength:      50000,
			MaxRoomParticipants: 50,
			DefaultLanguage:     "English",
			ViewDedupeWindowRaw: "30m",
			SessionSweepRaw:     "10m",
		},
		Catalog: CatalogConfig{
			Regions: []string{
				"North India", "South India", "East India", "West India",
				"Central India", "Northeast India", "Pan-Indian",
			},
			Languages: []string{
				"Hindi", "English", "Tamil", "Bengali", "Telugu", "Marathi",
				"Gujarati", "Malayalam", "Kannada", "Punjabi", "Odia", "Assamese",
			},
			Categories: []string{
				"Historical", "Mythological", "Folk Tales", "Wisdom Tales", "Heroic Adventures",
				"Romance", "Family Heritage", "Regional Legends", "Religious Stories", "Moral Tales",
			},
			Durations: []string{
				"Less than 5 minutes", "5-10 minutes", "10-15 minutes", "15-20 minutes", "20+ minutes",
			},
			StoryTypes: []string{
				"Historical Fiction", "Mythology Retelling", "Folk Tale",
				"Wisdom Story", "Heroic Adventure", "Family Saga",
			},
			Lengths: []string{
				"Short (500 words)", "Medium (1000 words)", "Long (2000 words)", "Epic (3000+ words)",
			},
			Styles: []string{
				"Traditional Storytelling", "Modern Narrative", "Poetic",
				"Conversational", "Dramatic", "Humorous",
			},
		},
	}
}

// DefaultPath returns the config file location: $STORYTELLER_CONFIG, else
// $XDG_CONFIG_HOME/storyteller/config.yaml, else ~/.config/storyteller/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "storyteller", "config.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Values absent from the file keep their defaults. Files ending in .toml are
// decoded as TOML, everything else as YAML. Environment variables in the format
// ${VAR_NAME} are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if isTOML(path) {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

func (c *Config) finish() error {
	c.applyEnvOverrides()
	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if p := os.Getenv(EnvDBPath); p != "" {
		c.Database.Path = p
	}
}

// Write serialises cfg to path in the format implied by its extension.
func Write(path string, cfg *Config) error {
	var buf bytes.Buffer
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	// 0600: the file may hold the JWT secret and API key.
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.MinPasswordLength < 1 {
		return fmt.Errorf("auth.min_password_length must be positive")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit.requests_per_minute and ratelimit.burst must be positive")
	}
	if c.Media.Dir == "" {
		return fmt.Errorf("media.dir is required")
	}

	switch c.Generation.Provider {
	case "", "stub", "openai":
	default:
		return fmt.Errorf("generation.provider %q is not one of stub, openai", c.Generation.Provider)
	}

	if c.App.MaxStoryLength <= 0 {
		return fmt.Errorf("app.max_story_length must be positive")
	}
	if c.App.MaxRoomParticipants <= 0 {
		return fmt.Errorf("app.max_room_participants must be positive")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_timeout", cfg.Server.ReadTimeoutRaw, &cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeoutRaw, &cfg.Server.WriteTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"auth.session_ttl", cfg.Auth.SessionTTLRaw, &cfg.Auth.SessionTTL},
		{"generation.timeout", cfg.Generation.TimeoutRaw, &cfg.Generation.Timeout},
		{"app.view_dedupe_window", cfg.App.ViewDedupeWindowRaw, &cfg.App.ViewDedupeWindow},
		{"app.session_sweep_interval", cfg.App.SessionSweepRaw, &cfg.App.SessionSweep},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}
	return nil
}
