// Package config loads memberctl settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// an optional .env file, then the process environment. Later layers win.
// An environment variable that is unset or empty leaves the earlier value.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the membership core reads.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path" env:"MEMBERSHIP_DB_PATH"`
	// SeedDir holds the seed JSON files. Empty uses embedded defaults only.
	SeedDir string `yaml:"seed_dir" env:"MEMBERSHIP_SEED_DIR"`
	// ForceMemory selects the in-memory backend unconditionally.
	ForceMemory bool `yaml:"force_memory" env:"MEMBERSHIP_FORCE_MEMORY"`
	// LogMode is "production" for JSON logs, anything else for console.
	LogMode string `yaml:"log_mode" env:"MEMBERSHIP_LOG_MODE"`
	// SeedAllowlist is a JSON allowlist file. Empty uses the embedded list.
	SeedAllowlist string `yaml:"seed_allowlist" env:"MEMBERSHIP_SEED_ALLOWLIST"`

	// AllowlistWallets and AllowlistEmails are operator overrides in
	// "identifier|tier|note" form, separated by newlines or commas.
	AllowlistWallets string `yaml:"allowlist_wallets" env:"ALLOWLIST_WALLETS"`
	AllowlistEmails  string `yaml:"allowlist_emails" env:"ALLOWLIST_EMAILS"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:  "data/membership.db",
		SeedDir: "data/seed",
		LogMode: "development",
	}
}

// Option adjusts Load.
type Option func(*loader)

type loader struct {
	envFile string
}

// WithEnvFile names the .env file to read. The default is ".env" in the
// working directory. A missing file is not an error. An empty name skips
// the layer.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// Load builds a Config. path names an optional YAML file; an empty path
// skips that layer, but a named file that does not exist is an error.
func Load(path string, opts ...Option) (Config, error) {
	l := loader{envFile: ".env"}
	for _, opt := range opts {
		opt(&l)
	}

	cfg := Default()
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if l.envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", l.envFile, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}
