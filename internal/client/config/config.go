package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the GophVault CLI.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
	// SessionFile stores the current assertion between invocations.
	SessionFile string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 30 * time.Second
	c.SessionFile = DefaultSessionFile()
}

// DefaultSessionFile is session.json under the user's config directory, or
// in the working directory when that cannot be determined.
func DefaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".gophvault-session.json"
	}
	return filepath.Join(dir, "gophvault", "session.json")
}

// LoadConfig applies defaults and then overlays the JSON file at path, if
// path is non-empty.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}
