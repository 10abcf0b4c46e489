package indexedcoll

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Tables names the four tables the DB uses. Table names must be distinct.
type Tables struct {
	Items      string `yaml:"items" validate:"required"`
	Membership string `yaml:"membership" validate:"required"`
	Index      string `yaml:"index" validate:"required"`
	Ledger     string `yaml:"ledger" validate:"required"`
}

func DefaultTables() Tables {
	return Tables{
		Items:      "Item",
		Membership: "Collection",
		Index:      "Collection_Index",
		Ledger:     "Item_Index_Entries",
	}
}

func (t Tables) Validate() error {
	if err := configValidate.Struct(t); err != nil {
		return fmt.Errorf("tables: %w", err)
	}
	seen := make(map[string]string, 4)
	for _, pair := range [][2]string{{"items", t.Items}, {"membership", t.Membership}, {"index", t.Index}, {"ledger", t.Ledger}} {
		if other, ok := seen[pair[1]]; ok {
			return fmt.Errorf("tables: %s and %s both use table %q", other, pair[0], pair[1])
		}
		seen[pair[1]] = pair[0]
	}
	return nil
}

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendBadger = "badger"
)

type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory bolt badger"`

	// Path is the Bolt file or the Badger directory.
	Path string `yaml:"path"`

	// InMemory runs Badger without touching disk.
	InMemory   bool          `yaml:"in_memory"`
	SyncWrites bool          `yaml:"sync_writes"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
}

type Config struct {
	Store  StoreConfig `yaml:"store"`
	Tables Tables      `yaml:"tables"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	Verbose  bool   `yaml:"verbose"`

	DefaultLimit  int `yaml:"default_limit" validate:"gte=0"`
	FetchAllLimit int `yaml:"fetch_all_limit" validate:"gte=0"`
}

var configValidate = validator.New()

func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Backend:    BackendBolt,
			Path:       "indexedcoll.db",
			SyncWrites: true,
			Timeout:    10 * time.Second,
		},
		Tables:        DefaultTables(),
		LogLevel:      "info",
		DefaultLimit:  DefaultLimit,
		FetchAllLimit: FetchAllLimit,
	}
}

// LoadConfig reads a YAML file over DefaultConfig, applies INDEXEDCOLL_*
// environment overrides and validates the result. An empty path skips the
// file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	loadConfigFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ParseConfig is LoadConfig for YAML already in memory, without environment
// overrides.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadConfigFromEnv(cfg *Config) {
	if v := os.Getenv("INDEXEDCOLL_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("INDEXEDCOLL_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("INDEXEDCOLL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
}

func (cfg *Config) Validate() error {
	if err := configValidate.Struct(cfg); err != nil {
		return err
	}
	if err := cfg.Tables.Validate(); err != nil {
		return err
	}
	switch cfg.Store.Backend {
	case BackendBolt:
		if cfg.Store.Path == "" {
			return errors.New("store.path is required for the bolt backend")
		}
	case BackendBadger:
		if cfg.Store.Path == "" && !cfg.Store.InMemory {
			return errors.New("store.path is required unless store.in_memory is set")
		}
	}
	return nil
}

func (cfg *Config) SlogLevel() slog.Level {
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenStore opens the configured backend.
func (cfg *Config) OpenStore(logger *slog.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case BackendMemory:
		return NewMemStore(), nil
	case BackendBolt:
		s, err := OpenBolt(cfg.Store.Path, BoltOptions{
			IsTesting: !cfg.Store.SyncWrites,
			Timeout:   cfg.Store.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBadger:
		s, err := OpenBadger(BadgerConfig{
			Path:       cfg.Store.Path,
			InMemory:   cfg.Store.InMemory,
			SyncWrites: cfg.Store.SyncWrites,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Options returns DB options for this config.
func (cfg *Config) Options(logger *slog.Logger) Options {
	return Options{
		Tables:        cfg.Tables,
		Logger:        logger,
		Verbose:       cfg.Verbose,
		DefaultLimit:  cfg.DefaultLimit,
		FetchAllLimit: cfg.FetchAllLimit,
	}
}
