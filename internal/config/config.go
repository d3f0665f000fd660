package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tagmatch/internal/metadata"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// ProviderNames lists every provider identifier in registration order.
var ProviderNames = []string{"musicbrainz", "youtube", "spotify", "itunes", "deezer"}

// Config contains the program configuration
type Config struct {
	Providers       []string          `yaml:"providers"`
	Mode            string            `yaml:"mode"`
	Recursive       bool              `yaml:"recursive"`
	Concurrent      bool              `yaml:"concurrent"`
	RequestTimeout  time.Duration     `yaml:"request_timeout"`
	ProviderTimeout time.Duration     `yaml:"provider_timeout"`
	Verbose         bool              `yaml:"verbose"`
	LogFile         string            `yaml:"log_file"`
	Apply           bool              `yaml:"apply"`
	Artwork         bool              `yaml:"artwork"`
	UserAgent       string            `yaml:"user_agent"`
	MusicBrainz     MusicBrainzConfig `yaml:"musicbrainz"`
	YouTube         YouTubeConfig     `yaml:"youtube"`
	Spotify         SpotifyConfig     `yaml:"spotify"`
}

// MusicBrainzConfig holds the rate limit and retry settings MusicBrainz needs.
type MusicBrainzConfig struct {
	RateLimit   float64       `yaml:"rate_limit"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

type YouTubeConfig struct {
	Language string `yaml:"language"`
}

type SpotifyConfig struct {
	Market string `yaml:"market"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Providers:       append([]string(nil), ProviderNames...),
		Mode:            string(metadata.ModeAlbum),
		Concurrent:      true,
		Artwork:         true,
		RequestTimeout:  5 * time.Second,
		ProviderTimeout: 30 * time.Second,
		UserAgent:       "tagmatch/1.0 (https://github.com/tagmatch/tagmatch)",
		MusicBrainz: MusicBrainzConfig{
			RateLimit:   1,
			MaxAttempts: 3,
			Backoff:     time.Second,
		},
		YouTube: YouTubeConfig{Language: "en"},
		Spotify: SpotifyConfig{Market: "US"},
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.LogFile = ExpandHome(cfg.LogFile)

	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(xdg.Home, path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	locations := []string{
		"./tagmatch.yaml",
		"./tagmatch.yml",
		GetDefaultConfigPath(),
		filepath.Join(xdg.Home, ".tagmatch.yaml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "tagmatch", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(xdg.DataHome, "tagmatch", "logs")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if !IsKnownProvider(p) {
			return fmt.Errorf("unknown provider %q, valid providers: %s", p, strings.Join(ProviderNames, ", "))
		}
		if seen[p] {
			return fmt.Errorf("provider %q listed twice", p)
		}
		seen[p] = true
	}

	if _, ok := metadata.ParseMode(c.Mode); !ok {
		return fmt.Errorf("unsupported mode '%s', valid modes: album, track", c.Mode)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("provider_timeout cannot be negative, got %s", c.ProviderTimeout)
	}

	if c.hasProvider("musicbrainz") {
		if strings.TrimSpace(c.UserAgent) == "" {
			return fmt.Errorf("user_agent is required when musicbrainz is enabled")
		}
		if c.MusicBrainz.RateLimit <= 0 {
			return fmt.Errorf("musicbrainz.rate_limit must be positive, got %v", c.MusicBrainz.RateLimit)
		}
		if c.MusicBrainz.MaxAttempts < 1 {
			return fmt.Errorf("musicbrainz.max_attempts must be at least 1, got %d", c.MusicBrainz.MaxAttempts)
		}
		if c.MusicBrainz.Backoff < 0 {
			return fmt.Errorf("musicbrainz.backoff cannot be negative, got %s", c.MusicBrainz.Backoff)
		}
	}

	return nil
}

// SearchMode returns the configured mode, defaulting to album mode.
func (c *Config) SearchMode() metadata.Mode {
	if m, ok := metadata.ParseMode(c.Mode); ok {
		return m
	}
	return metadata.ModeAlbum
}

// IsKnownProvider reports whether name identifies a provider.
func IsKnownProvider(name string) bool {
	for _, p := range ProviderNames {
		if p == name {
			return true
		}
	}
	return false
}

// EnabledProviders returns the providers that will be queried, in
// registration order. An empty providers list enables every provider.
func (c *Config) EnabledProviders() []string {
	if len(c.Providers) == 0 {
		return append([]string(nil), ProviderNames...)
	}
	var names []string
	for _, p := range ProviderNames {
		if c.hasProvider(p) {
			names = append(names, p)
		}
	}
	return names
}

func (c *Config) hasProvider(name string) bool {
	if len(c.Providers) == 0 {
		return IsKnownProvider(name)
	}
	for _, p := range c.Providers {
		if p == name {
			return true
		}
	}
	return false
}
