package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Selection SelectionConfig `yaml:"selection" mapstructure:"selection"`
	Units     UnitsConfig     `yaml:"units" mapstructure:"units"`
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Input     InputConfig     `yaml:"input" mapstructure:"input"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SelectionConfig holds the adaptive buffer thresholds, in meters.
type SelectionConfig struct {
	Mode              string   `yaml:"mode" mapstructure:"mode"`
	BaseBuffer        float64  `yaml:"base_buffer" mapstructure:"base_buffer"`
	MaxBuffer         float64  `yaml:"max_buffer" mapstructure:"max_buffer"`
	IndicatorDistance float64  `yaml:"indicator_distance" mapstructure:"indicator_distance"`
	GrowthThreshold   float64  `yaml:"growth_threshold" mapstructure:"growth_threshold"`
	P90Threshold      float64  `yaml:"p90_threshold" mapstructure:"p90_threshold"`
	ForcedUnits       []string `yaml:"forced_units" mapstructure:"forced_units"`
}

// LevelConfig names the boundary attributes for one admin level.
type LevelConfig struct {
	Field    string `yaml:"field" mapstructure:"field"`
	Fallback string `yaml:"fallback" mapstructure:"fallback"`
}

// UnitsConfig selects the admin level units are built from.
type UnitsConfig struct {
	Level       string                 `yaml:"level" mapstructure:"level"`
	Levels      map[string]LevelConfig `yaml:"levels" mapstructure:"levels"`
	Placeholder string                 `yaml:"placeholder" mapstructure:"placeholder"`
}

// DeriveConfig configures index derivation from shade time series.
type DeriveConfig struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	Date      string   `yaml:"date" mapstructure:"date"`
	Times     []string `yaml:"times" mapstructure:"times"`
	KeyTimes  []string `yaml:"key_times" mapstructure:"key_times"`
	Threshold float64  `yaml:"threshold" mapstructure:"threshold"`
}

// IndexConfig names the quality index being aggregated.
type IndexConfig struct {
	Field  string       `yaml:"field" mapstructure:"field"`
	Derive DeriveConfig `yaml:"derive" mapstructure:"derive"`
}

// AggregateConfig configures per-unit statistics.
type AggregateConfig struct {
	Edges   []float64 `yaml:"edges" mapstructure:"edges"`
	Workers int       `yaml:"workers" mapstructure:"workers"`
}

// InputConfig points at the source files.
type InputConfig struct {
	Features   string `yaml:"features" mapstructure:"features"`
	Boundaries string `yaml:"boundaries" mapstructure:"boundaries"`
	Reference  string `yaml:"reference" mapstructure:"reference"`
}

// OutputConfig configures written artifacts. Empty file names disable the
// matching output.
type OutputConfig struct {
	Dir           string   `yaml:"dir" mapstructure:"dir"`
	UnitsFile     string   `yaml:"units_file" mapstructure:"units_file"`
	DetailDir     string   `yaml:"detail_dir" mapstructure:"detail_dir"`
	DetailPattern string   `yaml:"detail_pattern" mapstructure:"detail_pattern"`
	DetailFields  []string `yaml:"detail_fields" mapstructure:"detail_fields"`
	LinesFile     string   `yaml:"lines_file" mapstructure:"lines_file"`
	LineFields    []string `yaml:"line_fields" mapstructure:"line_fields"`
	Report        string   `yaml:"report" mapstructure:"report"`
	Manifest      string   `yaml:"manifest" mapstructure:"manifest"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Resolve returns the configured admin level preset.
func (c UnitsConfig) Resolve() (LevelConfig, error) {
	lvl, ok := c.Levels[strings.ToLower(c.Level)]
	if !ok || lvl.Field == "" {
		return LevelConfig{}, eris.Errorf("config: unknown admin level %q", c.Level)
	}
	return lvl, nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SHADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("selection.mode", "adaptive")
	v.SetDefault("selection.base_buffer", 15.0)
	v.SetDefault("selection.max_buffer", 22.5)
	v.SetDefault("selection.indicator_distance", 35.0)
	v.SetDefault("selection.growth_threshold", 0.15)
	v.SetDefault("selection.p90_threshold", 21.5)
	v.SetDefault("selection.forced_units", []string{})
	v.SetDefault("units.level", "gebied")
	v.SetDefault("units.levels", map[string]any{
		"gebied":    map[string]any{"field": "Gebied", "fallback": "Stadsdeel"},
		"stadsdeel": map[string]any{"field": "Stadsdeel"},
	})
	v.SetDefault("units.placeholder", "Unknown")
	v.SetDefault("index.field", "shade_availability_index_30")
	v.SetDefault("index.derive.enabled", false)
	v.SetDefault("index.derive.date", "20240215")
	v.SetDefault("index.derive.times", []string{"0800", "0900", "1000", "1100", "1200", "1300", "1400", "1500", "1600"})
	v.SetDefault("index.derive.key_times", []string{"1000", "1300", "1530", "1800"})
	v.SetDefault("index.derive.threshold", 50.0)
	v.SetDefault("aggregate.edges", []float64{0.5, 0.7, 0.9})
	v.SetDefault("aggregate.workers", 8)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.units_file", "units.geojson")
	v.SetDefault("output.detail_dir", "details")
	v.SetDefault("output.detail_pattern", "unit_{id}.geojson")
	v.SetDefault("output.lines_file", "lines.geojson")
	v.SetDefault("output.report", "report.xlsx")
	v.SetDefault("output.manifest", "manifest.yaml")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "shade-units.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string
	add := func(msg string) { errs = append(errs, msg) }

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			add("store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required")
		}
	}

	switch mode {
	case "run", "units":
		if c.Input.Boundaries == "" {
			add("input.boundaries is required")
		}
		if _, err := c.Units.Resolve(); err != nil {
			add("units.level must name a configured level")
		}
		if mode == "units" {
			break
		}
		if c.Input.Features == "" {
			add("input.features is required")
		}
		if c.Input.Reference == "" {
			add("input.reference is required")
		}
		c.validateSelection(add)
		if c.Index.Field == "" {
			add("index.field is required")
		}
		if len(c.Aggregate.Edges) != 3 {
			add("aggregate.edges must have exactly 3 values")
		}
		if c.Aggregate.Workers < 0 {
			add("aggregate.workers must be >= 0")
		}
	case "runs":
		checkStore()
	case "serve":
		checkStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateSelection(add func(string)) {
	s := c.Selection
	if s.Mode != "adaptive" && s.Mode != "fixed" {
		add("selection.mode must be adaptive or fixed")
	}
	if s.BaseBuffer <= 0 {
		add("selection.base_buffer must be > 0")
	}
	if s.MaxBuffer < s.BaseBuffer {
		add("selection.max_buffer must be >= selection.base_buffer")
	}
	if s.IndicatorDistance < s.MaxBuffer {
		add("selection.indicator_distance must be >= selection.max_buffer")
	}
	if s.GrowthThreshold < 0 {
		add("selection.growth_threshold must be >= 0")
	}
	if s.P90Threshold < 0 {
		add("selection.p90_threshold must be >= 0")
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
