package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/leapstack-labs/leapopt/internal/testutil"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/solver"
)

const toyModel = "var x >= 0\nvar y >= 0\nmaximize: 3*x + 2*y\nsubject to:\n  c1: x + y <= 4\n"

func newTestServer(t *testing.T, store state.Store) *httptest.Server {
	t.Helper()
	srv := New(Config{Store: store, Logger: testutil.NewTestLogger(t)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func post(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	resp, err := http.Post(ts.URL+path, "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := get(t, ts, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody[map[string]string](t, resp))
}

func TestCompile(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts, "/v1/compile", modelRequest{Source: toyModel, Name: "toy"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[compileResponse](t, resp)
	assert.True(t, body.Valid)
	assert.Contains(t, body.Program, "lp.problem")
	require.NotNil(t, body.Summary)
	assert.Equal(t, "LP", body.Summary.Class)
	assert.Len(t, body.Summary.Variables, 2)
	assert.Nil(t, body.Result)
	assert.Empty(t, body.RecordID)

	resp = post(t, ts, "/v1/compile", modelRequest{Source: "maximize: ("})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body = decodeBody[compileResponse](t, resp)
	assert.False(t, body.Valid)
	assert.NotEmpty(t, body.Errors)
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{name: "invalid json", path: "/v1/compile", body: "{", want: "invalid request body"},
		{name: "missing source", path: "/v1/solve", body: modelRequest{}, want: "source is required"},
		{name: "unknown option", path: "/v1/solve", body: modelRequest{Source: toyModel, Options: map[string]any{"bogus": 1}}, want: "invalid solve options"},
		{name: "negative time limit", path: "/v1/solve", body: modelRequest{Source: toyModel, Options: map[string]any{"time_limit": "-1s"}}, want: "negative time_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, decodeBody[errorResponse](t, resp).Error, tt.want)
		})
	}
}

func TestSolve(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts, "/v1/solve", modelRequest{
		Source:  toyModel,
		Options: map[string]any{"backend": "simplex", "time_limit": "10s"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[compileResponse](t, resp)
	require.NotNil(t, body.Result)
	assert.Equal(t, solver.StatusOptimal, body.Result.Status)
	require.NotNil(t, body.Result.Objective)
	assert.InDelta(t, 12.0, *body.Result.Objective, 1e-6)
	assert.InDelta(t, 4.0, body.Result.Variables["x"], 1e-6)
}

func TestSolve_Tables(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts, "/v1/solve", modelRequest{
		Source: "param cap\nvar x >= 0\nmaximize: x\nsubject to:\n  x <= cap\n",
		Tables: map[string]any{"cap": 7},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[compileResponse](t, resp)
	require.NotNil(t, body.Result)
	assert.InDelta(t, 7.0, *body.Result.Objective, 1e-6)
}

func TestLint(t *testing.T) {
	ts := newTestServer(t, nil)

	type diagnostic struct {
		Rule     string `json:"rule"`
		Severity string `json:"severity"`
	}
	type response struct {
		Diagnostics []diagnostic `json:"diagnostics"`
		HasErrors   bool         `json:"has_errors"`
	}

	resp := post(t, ts, "/v1/lint", modelRequest{Source: "var x >= 0\nvar y >= 0\nmaximize: x\n"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[response](t, resp)
	assert.False(t, body.HasErrors)
	assert.Contains(t, body.Diagnostics, diagnostic{Rule: "VR01", Severity: "warning"})

	resp = post(t, ts, "/v1/lint", modelRequest{Source: "maximize: (x"})
	body = decodeBody[response](t, resp)
	assert.True(t, body.HasErrors)
}

func TestHistory(t *testing.T) {
	store := newStore(t)
	ts := newTestServer(t, store)

	resp := post(t, ts, "/v1/solve", modelRequest{Source: toyModel, Name: "toy"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := decodeBody[compileResponse](t, resp).RecordID
	require.NotEmpty(t, id)

	post(t, ts, "/v1/compile", modelRequest{Source: "maximize: ("})

	resp = get(t, ts, "/v1/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]state.Record](t, resp), 2)

	resp = get(t, ts, "/v1/history?class=LP&limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records := decodeBody[[]state.Record](t, resp)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)

	resp = get(t, ts, "/v1/history/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decodeBody[state.Record](t, resp)
	assert.Equal(t, "toy", rec.Name)
	assert.Equal(t, "Optimal", rec.Status)

	assert.Equal(t, http.StatusNotFound, get(t, ts, "/v1/history/missing").StatusCode)
	assert.Equal(t, http.StatusBadRequest, get(t, ts, "/v1/history?limit=x").StatusCode)
}

func TestHistory_Disabled(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, get(t, ts, "/v1/history").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, ts, "/v1/history/x").StatusCode)
}

func TestSolveOptions(t *testing.T) {
	srv := New(Config{Solve: compiler.SolveOptions{Backend: "simplex", MaxNodes: 100}})

	tests := []struct {
		name string
		raw  map[string]any
		want compiler.SolveOptions
		err  bool
	}{
		{name: "defaults", raw: nil, want: compiler.SolveOptions{Backend: "simplex", MaxNodes: 100}},
		{name: "duration string", raw: map[string]any{"time_limit": "30s"}, want: compiler.SolveOptions{Backend: "simplex", MaxNodes: 100, TimeLimit: 30 * time.Second}},
		{name: "seconds", raw: map[string]any{"time_limit": 2.5}, want: compiler.SolveOptions{Backend: "simplex", MaxNodes: 100, TimeLimit: 2500 * time.Millisecond}},
		{name: "override", raw: map[string]any{"max_nodes": "7", "backend": "other"}, want: compiler.SolveOptions{Backend: "other", MaxNodes: 7}},
		{name: "unknown key", raw: map[string]any{"gap": 0.1}, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := srv.solveOptions(tt.raw)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	srv := New(Config{})
	assert.Equal(t, DefaultAddr, srv.Addr())
}
