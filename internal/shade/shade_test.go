package shade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/shade-units/internal/model"
)

func TestCombined(t *testing.T) {
	r := model.Record{Properties: map[string]any{
		BuildingColumn("d", "1000"): 40.0,
		TreeColumn("d", "1000"):     70.0,
		BuildingColumn("d", "1100"): "55",
		TreeColumn("d", "1200"):     20.0,
		BuildingColumn("d", "1300"): nil,
	}}

	tests := []struct {
		time string
		want float64
		ok   bool
	}{
		{"1000", 70, true},
		{"1100", 55, true},
		{"1200", 20, true},
		{"1300", 0, false},
		{"1400", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.time, func(t *testing.T) {
			got, ok := Combined(r, "d", tt.time)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestIndex(t *testing.T) {
	opts := Options{Date: "d", Times: []string{"0800", "0900", "1000", "1100"}}
	r := model.Record{Properties: map[string]any{
		BuildingColumn("d", "0800"): 50.0,
		TreeColumn("d", "0900"):     49.9,
		BuildingColumn("d", "1000"): 10.0,
		TreeColumn("d", "1000"):     80.0,
	}}

	v, ok := Index(r, opts)
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, v, 1e-9)

	_, ok = Index(model.Record{Properties: map[string]any{}}, opts)
	assert.False(t, ok)
}

func TestIndex_Threshold(t *testing.T) {
	r := model.Record{Properties: map[string]any{
		BuildingColumn("d", "0800"): 0.0,
		TreeColumn("d", "0900"):     30.0,
		BuildingColumn("d", "1000"): 75.0,
	}}
	times := []string{"0800", "0900", "1000"}

	tests := []struct {
		name      string
		threshold *float64
		want      float64
	}{
		{"default", nil, 1.0 / 3.0},
		{"zero", model.Float(0), 1},
		{"thirty", model.Float(30), 2.0 / 3.0},
		{"above all", model.Float(80), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Index(r, Options{Date: "d", Times: times, Threshold: tt.threshold})
			require.True(t, ok)
			assert.InDelta(t, tt.want, v, 1e-9)
		})
	}
}

func TestDerive(t *testing.T) {
	features := []model.Feature{
		{Properties: map[string]any{
			BuildingColumn(DefaultDate, "1000"): 60.0,
			TreeColumn(DefaultDate, "1300"):     10.0,
		}},
		{},
	}

	stats, err := Derive(features, Options{Field: "idx"})
	require.NoError(t, err)
	assert.Equal(t, Stats{Derived: 1, Undefined: 1}, stats)

	assert.InDelta(t, 0.5, features[0].Properties["idx"], 1e-9)
	assert.Equal(t, 60.0, features[0].Properties["shade_percent_at_1000"])
	assert.Equal(t, 10.0, features[0].Properties["shade_percent_at_1300"])
	assert.NotContains(t, features[0].Properties, "shade_percent_at_1530")

	require.Contains(t, features[1].Properties, "idx")
	assert.Nil(t, features[1].Properties["idx"])
}

func TestDerive_RequiresField(t *testing.T) {
	_, err := Derive(nil, Options{})
	assert.Error(t, err)
}
