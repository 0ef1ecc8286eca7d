package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/aggregate"
	"github.com/sells-group/shade-units/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "adaptive", cfg.Selection.Mode)
	assert.InDelta(t, 15.0, cfg.Selection.BaseBuffer, 0.001)
	assert.InDelta(t, 22.5, cfg.Selection.MaxBuffer, 0.001)
	assert.InDelta(t, 35.0, cfg.Selection.IndicatorDistance, 0.001)
	assert.InDelta(t, 0.15, cfg.Selection.GrowthThreshold, 0.001)
	assert.InDelta(t, 21.5, cfg.Selection.P90Threshold, 0.001)
	assert.Empty(t, cfg.Selection.ForcedUnits)
	assert.Equal(t, "gebied", cfg.Units.Level)
	assert.Equal(t, LevelConfig{Field: "Gebied", Fallback: "Stadsdeel"}, cfg.Units.Levels["gebied"])
	assert.Equal(t, LevelConfig{Field: "Stadsdeel"}, cfg.Units.Levels["stadsdeel"])
	assert.Equal(t, "Unknown", cfg.Units.Placeholder)
	assert.Equal(t, "shade_availability_index_30", cfg.Index.Field)
	assert.False(t, cfg.Index.Derive.Enabled)
	assert.Equal(t, "20240215", cfg.Index.Derive.Date)
	assert.Len(t, cfg.Index.Derive.Times, 9)
	assert.Equal(t, []float64{0.5, 0.7, 0.9}, cfg.Aggregate.Edges)
	assert.Equal(t, 8, cfg.Aggregate.Workers)
	assert.Equal(t, "unit_{id}.geojson", cfg.Output.DetailPattern)
	assert.Equal(t, "lines.geojson", cfg.Output.LinesFile)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
selection:
  mode: fixed
  base_buffer: 10
  forced_units: [Oost, Noord]
units:
  level: stadsdeel
input:
  features: points.geojson
  boundaries: areas.shp
  reference: green.geojson
store:
  driver: postgres
  database_url: postgres://localhost/shade
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fixed", cfg.Selection.Mode)
	assert.InDelta(t, 10.0, cfg.Selection.BaseBuffer, 0.001)
	assert.Equal(t, []string{"Oost", "Noord"}, cfg.Selection.ForcedUnits)
	assert.Equal(t, "stadsdeel", cfg.Units.Level)
	assert.Equal(t, "areas.shp", cfg.Input.Boundaries)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Unset keys keep defaults.
	assert.InDelta(t, 22.5, cfg.Selection.MaxBuffer, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SHADE_STORE_DRIVER", "postgres")
	t.Setenv("SHADE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SHADE_SERVER_PORT", "3000")
	t.Setenv("SHADE_SELECTION_BASE_BUFFER", "12.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 12.5, cfg.Selection.BaseBuffer, 0.001)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("selection: [\n"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Selection: SelectionConfig{
			Mode:              "adaptive",
			BaseBuffer:        15,
			MaxBuffer:         22.5,
			IndicatorDistance: 35,
			GrowthThreshold:   0.15,
			P90Threshold:      21.5,
		},
		Units: UnitsConfig{
			Level: "gebied",
			Levels: map[string]LevelConfig{
				"gebied":    {Field: "Gebied", Fallback: "Stadsdeel"},
				"stadsdeel": {Field: "Stadsdeel"},
			},
			Placeholder: "Unknown",
		},
		Index:     IndexConfig{Field: "shade_availability_index_30"},
		Aggregate: AggregateConfig{Edges: []float64{0.5, 0.7, 0.9}, Workers: 4},
		Input: InputConfig{
			Features:   "features.geojson",
			Boundaries: "boundaries.geojson",
			Reference:  "reference.geojson",
		},
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "runs.db"},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidateRun_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateRun_MissingInputs(t *testing.T) {
	cfg := validDefaults()
	cfg.Input = InputConfig{}

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.features is required")
	assert.Contains(t, err.Error(), "input.boundaries is required")
	assert.Contains(t, err.Error(), "input.reference is required")
}

func TestValidateRun_Selection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SelectionConfig)
		want   string
	}{
		{"mode", func(s *SelectionConfig) { s.Mode = "wide" }, "selection.mode must be adaptive or fixed"},
		{"base", func(s *SelectionConfig) { s.BaseBuffer = 0 }, "selection.base_buffer must be > 0"},
		{"max below base", func(s *SelectionConfig) { s.MaxBuffer = 10 }, "selection.max_buffer must be >= selection.base_buffer"},
		{"indicator below max", func(s *SelectionConfig) { s.IndicatorDistance = 20 }, "selection.indicator_distance must be >= selection.max_buffer"},
		{"growth", func(s *SelectionConfig) { s.GrowthThreshold = -1 }, "selection.growth_threshold must be >= 0"},
		{"p90", func(s *SelectionConfig) { s.P90Threshold = -1 }, "selection.p90_threshold must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(&cfg.Selection)
			err := cfg.Validate("run")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateUnits_SkipsRunChecks(t *testing.T) {
	cfg := validDefaults()
	cfg.Input.Features = ""
	cfg.Index.Field = ""
	assert.NoError(t, cfg.Validate("units"))

	cfg.Units.Level = "buurt"
	err := cfg.Validate("units")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "units.level must name a configured level")
}

func TestValidateRuns_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store = StoreConfig{Driver: "mysql"}

	err := cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestPipelineOptions(t *testing.T) {
	cfg := validDefaults()
	cfg.Selection.ForcedUnits = []string{"Oost"}

	opts, err := cfg.PipelineOptions()
	require.NoError(t, err)

	assert.Equal(t, model.SelectionAdaptive, opts.Mode)
	assert.InDelta(t, 15.0, opts.Selection.Base, 0.001)
	assert.InDelta(t, 22.5, opts.Selection.Max, 0.001)
	assert.InDelta(t, 35.0, opts.Selection.Indicator, 0.001)
	assert.Equal(t, []string{"Oost"}, opts.Selection.Forced)
	assert.Equal(t, "Gebied", opts.Units.NameField)
	assert.Equal(t, "Stadsdeel", opts.Units.FallbackField)
	assert.Equal(t, "Gebied", opts.Units.AdminLevel)
	assert.Equal(t, aggregate.Edges{0.5, 0.7, 0.9}, opts.Edges)
	assert.Equal(t, 4, opts.Workers)
	assert.Nil(t, opts.Derive)
}

func TestPipelineOptions_Derive(t *testing.T) {
	cfg := validDefaults()
	cfg.Index.Derive = DeriveConfig{Enabled: true, Date: "20240215", Threshold: 50}

	opts, err := cfg.PipelineOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Derive)
	assert.Equal(t, "shade_availability_index_30", opts.Derive.Field)
	assert.Equal(t, "20240215", opts.Derive.Date)
	require.NotNil(t, opts.Derive.Threshold)
	assert.Equal(t, 50.0, *opts.Derive.Threshold)

	cfg.Index.Derive.Threshold = 0
	opts, err = cfg.PipelineOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Derive.Threshold)
	assert.Zero(t, *opts.Derive.Threshold)
}

func TestPipelineOptions_Errors(t *testing.T) {
	cfg := validDefaults()
	cfg.Units.Level = "buurt"
	_, err := cfg.PipelineOptions()
	assert.Error(t, err)

	cfg = validDefaults()
	cfg.Aggregate.Edges = []float64{0.5}
	_, err = cfg.PipelineOptions()
	assert.Error(t, err)

	cfg = validDefaults()
	cfg.Aggregate.Edges = []float64{0.9, 0.7, 0.5}
	_, err = cfg.PipelineOptions()
	assert.Error(t, err)
}
