package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/regionvision/internal/model"
)

// DefaultPath is read when EnvPath is unset.
const (
	DefaultPath = "config/regionvision.yaml"
	EnvPath     = "REGIONVISION_CONFIG"
)

// Storage backends.
const (
	BackendYAML     = "yaml"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the regionvision process.
type Config struct {
	LogLevel string `yaml:"log_level"`
	TickRate int    `yaml:"tick_rate"` // ticks per second

	Visualizer Visualizer `yaml:"visualizer"`
	Permanent  Permanent  `yaml:"permanent"`
	Colors     Colors     `yaml:"colors"`
	Storage    Storage    `yaml:"storage"`

	// Optional region definitions for the built-in region authority.
	RegionsFile string `yaml:"regions_file"`
}

// Visualizer configures per-player visualizations.
type Visualizer struct {
	ParticleDensity float64 `yaml:"particle-density"` // blocks between particles
	Duration        int     `yaml:"duration"`         // seconds
	MaxNearRadius   int     `yaml:"max-near-radius"`
	NearRadius      int     `yaml:"near-radius"`     // used when no radius is given
	RenderPeriod    uint64  `yaml:"render-period"`   // ticks
	SelectionDelay  uint64  `yaml:"selection-delay"` // ticks after a wand click
}

// DurationTicks converts Duration to ticks at rate.
func (v Visualizer) DurationTicks(rate int) uint64 {
	return uint64(v.Duration) * uint64(rate)
}

// Permanent configures the global renderer.
type Permanent struct {
	RenderDelay  uint64 `yaml:"render-delay"`  // ticks
	RenderPeriod uint64 `yaml:"render-period"` // ticks
}

// Colors are the visualization colors.
type Colors struct {
	Allowed   model.Color `yaml:"allowed"`
	Denied    model.Color `yaml:"denied"`
	Selection model.Color `yaml:"selection"`
}

// Storage selects where permanent region settings are kept.
type Storage struct {
	Backend  string         `yaml:"backend"`
	Path     string         `yaml:"path"` // yaml file or sqlite database
	Database DatabaseConfig `yaml:"database"`
}

// ResolvedPath returns Path or the backend's default file name.
func (s Storage) ResolvedPath() string {
	if s.Path != "" {
		return s.Path
	}
	if s.Backend == BackendSQLite {
		return "regionvision.db"
	}
	return "permanent_regions.yaml"
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Default returns Config with sensible defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		TickRate: 20,
		Visualizer: Visualizer{
			ParticleDensity: 0.25,
			Duration:        15,
			MaxNearRadius:   100,
			NearRadius:      30,
			RenderPeriod:    10,
			SelectionDelay:  2,
		},
		Permanent: Permanent{
			RenderDelay:  20,
			RenderPeriod: 10,
		},
		Colors: Colors{
			Allowed:   model.Color{G: 255},
			Denied:    model.Color{R: 255},
			Selection: model.Color{R: 255, G: 215},
		},
		Storage: Storage{
			Backend: BackendYAML,
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "regionvision",
				Password: "regionvision",
				DBName:   "regionvision",
				SSLMode:  "disable",
			},
		},
	}
}

// Path returns the config path, honoring the EnvPath override.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load loads config from a YAML file and validates it.
// If the file doesn't exist, returns defaults. Unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every invalid option.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{model.ErrInvalidParameter}, args...)...))
		}
	}

	check(c.TickRate > 0, "tick_rate %d must be > 0", c.TickRate)
	check(c.Visualizer.ParticleDensity > 0 && !math.IsInf(c.Visualizer.ParticleDensity, 1),
		"visualizer.particle-density %v must be finite and > 0", c.Visualizer.ParticleDensity)
	check(c.Visualizer.Duration > 0, "visualizer.duration %d must be > 0", c.Visualizer.Duration)
	check(c.Visualizer.MaxNearRadius > 0, "visualizer.max-near-radius %d must be > 0", c.Visualizer.MaxNearRadius)
	check(c.Visualizer.NearRadius > 0 && c.Visualizer.NearRadius <= c.Visualizer.MaxNearRadius,
		"visualizer.near-radius %d must be in 1..%d", c.Visualizer.NearRadius, c.Visualizer.MaxNearRadius)
	check(c.Visualizer.RenderPeriod > 0, "visualizer.render-period must be > 0")
	check(c.Permanent.RenderPeriod > 0, "permanent.render-period must be > 0")

	switch c.Storage.Backend {
	case BackendYAML, BackendSQLite, BackendPostgres:
	default:
		check(false, "storage.backend %q (want yaml, sqlite or postgres)", c.Storage.Backend)
	}

	return errors.Join(errs...)
}

// ParseLogLevel maps a level name to slog.Level. Unknown names mean info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
