package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "TASKGROUPS"

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	Document DocumentConfig `mapstructure:"document" yaml:"document"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type DocumentConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Path is the document file, or the database file for sqlite.
	Path string `mapstructure:"path" yaml:"path"`
	// Name selects the note inside a sqlite database.
	Name      string `mapstructure:"name" yaml:"name"`
	Revisions int    `mapstructure:"revisions" yaml:"revisions"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Dir is the directory holding the default config, document and logs.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".taskgroups"
	}
	return filepath.Join(home, ".taskgroups")
}

// DefaultPath returns the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func Default() Config {
	dir := Dir()
	return Config{
		Document: DocumentConfig{
			Backend:   BackendFile,
			Path:      filepath.Join(dir, "tasks.json"),
			Name:      "default",
			Revisions: 20,
		},
		Log: LogConfig{
			Level:      "warn",
			File:       filepath.Join(dir, "logs", "taskgroups.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// Load reads path (DefaultPath when empty) over Default and applies
// TASKGROUPS_* environment overrides. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil || explicit {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var ErrInvalid = errors.New("invalid config")

func (c Config) Validate() error {
	switch c.Document.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: document.backend must be %q or %q, got %q", ErrInvalid, BackendFile, BackendSQLite, c.Document.Backend)
	}
	if strings.TrimSpace(c.Document.Path) == "" {
		return fmt.Errorf("%w: document.path is required", ErrInvalid)
	}
	if c.Document.Backend == BackendSQLite && strings.TrimSpace(c.Document.Name) == "" {
		return fmt.Errorf("%w: document.name is required for sqlite", ErrInvalid)
	}
	if c.Document.Revisions < 0 {
		return fmt.Errorf("%w: document.revisions must not be negative", ErrInvalid)
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("document.backend", cfg.Document.Backend)
	v.SetDefault("document.path", cfg.Document.Path)
	v.SetDefault("document.name", cfg.Document.Name)
	v.SetDefault("document.revisions", cfg.Document.Revisions)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)
	v.SetDefault("log.max_age_days", cfg.Log.MaxAgeDays)
}
