//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/shade-units/internal/store"
)

// seededRouter records one run in a temp SQLite store and returns a router
// over it with the stored run id.
func seededRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	c := testConfig(t)
	ctx := context.Background()

	st, err := initStore(ctx, c.Store)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	out, err := executeRun(ctx, c, st, time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	return buildRouter(st, []string{"https://maps.example.org"}), out.RunID
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	h := buildRouter(nil, nil)

	rr := serve(t, h, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_ListRuns(t *testing.T) {
	h, id := seededRouter(t)

	rr := serve(t, h, "/runs")
	require.Equal(t, http.StatusOK, rr.Code)

	var runs []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0]["id"])
	assert.Equal(t, "adaptive", runs[0]["selection_mode"])

	rr = serve(t, h, "/runs?mode=fixed")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestBuildRouter_ListRunsBadLimit(t *testing.T) {
	h := buildRouter(nil, nil)

	rr := serve(t, h, "/runs?limit=ten")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "limit must be a non-negative integer")
}

func TestBuildRouter_GetRun(t *testing.T) {
	h, id := seededRouter(t)

	rr := serve(t, h, "/runs/"+id)
	require.Equal(t, http.StatusOK, rr.Code)

	var run map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, id, run["id"])
	assert.Equal(t, float64(2), run["units_total"])
	assert.Equal(t, float64(4), run["features_selected"])
}

func TestBuildRouter_RunNotFound(t *testing.T) {
	h, _ := seededRouter(t)

	for _, path := range []string{"/runs/nope", "/runs/nope/units", "/runs/nope/decisions"} {
		rr := serve(t, h, path)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Contains(t, rr.Body.String(), "run not found", path)
	}
}

func TestBuildRouter_Units(t *testing.T) {
	h, id := seededRouter(t)

	rr := serve(t, h, "/runs/"+id+"/units")
	require.Equal(t, http.StatusOK, rr.Code)

	var units []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &units))
	require.Len(t, units, 2)
	assert.Equal(t, "centrum_west", units[0]["unit_id"])
	assert.Equal(t, "oost", units[1]["unit_id"])
}

func TestBuildRouter_Decisions(t *testing.T) {
	h, id := seededRouter(t)

	rr := serve(t, h, "/runs/"+id+"/decisions")
	require.Equal(t, http.StatusOK, rr.Code)

	var decisions []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decisions))
	// Oost has no feature within the indicator distance.
	require.Len(t, decisions, 1)
	assert.Equal(t, "Centrum-West", decisions[0]["unit_name"])
	assert.Equal(t, float64(4), decisions[0]["count_base"])
	assert.Equal(t, false, decisions[0]["expanded"])
}

func TestBuildRouter_CORS(t *testing.T) {
	h := buildRouter(nil, []string{"https://maps.example.org"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maps.example.org")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://maps.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunHandler_StoreError(t *testing.T) {
	c := testConfig(t)
	st, err := store.NewSQLite(c.Store.DatabaseURL)
	require.NoError(t, err)
	// Closed before migration, so every query fails.
	require.NoError(t, st.Close())

	rr := serve(t, buildRouter(st, nil), "/runs")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal error")
}
