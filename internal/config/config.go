// Package config loads the YAML configuration file.
//
// The file is decoded with yaml.v3 and then unified with the embedded CUE
// schema, which supplies defaults and rejects unknown fields or out-of-range
// values. A missing section takes its defaults entirely.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/GamePad64/lvsqlite3/internal/sqlite"
)

//go:embed schema.cue
var schemaCUE string

// Config is the validated configuration.
type Config struct {
	Database Database `json:"database"`
	Backup   *Backup  `json:"backup,omitempty"`
	Log      Log      `json:"log"`
}

// Database holds connection settings.
type Database struct {
	Path          string `json:"path"`
	BusyTimeoutMs int    `json:"busy_timeout_ms"`
	JournalMode   string `json:"journal_mode"`
	Synchronous   string `json:"synchronous"`
	ForeignKeys   bool   `json:"foreign_keys"`
	NFCCollation  bool   `json:"nfc_collation"`
}

// Backup holds the S3 destination for snapshots.
type Backup struct {
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint"`
}

// Log holds logging settings.
type Log struct {
	Level string `json:"level"`
}

// Default returns the configuration an empty file produces.
func Default() *Config {
	cfg, err := Decode(nil)
	if err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}
	return cfg
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode validates YAML configuration data against the schema.
func Decode(data []byte) (*Config, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("building schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// ConnOptions converts the database section into connection options.
func (c *Config) ConnOptions(logger *slog.Logger) sqlite.Options {
	return sqlite.Options{
		BusyTimeout:  time.Duration(c.Database.BusyTimeoutMs) * time.Millisecond,
		JournalMode:  c.Database.JournalMode,
		Synchronous:  c.Database.Synchronous,
		ForeignKeys:  c.Database.ForeignKeys,
		NFCCollation: c.Database.NFCCollation,
		Logger:       logger,
	}
}

// LogLevel maps the configured level name onto slog.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
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
