package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/graph"
	"github.com/matzehuels/mtxlayout/pkg/metrics"
	"github.com/matzehuels/mtxlayout/pkg/pipeline"
)

func newSimulation(t *testing.T, simplify bool) *pipeline.Simulation {
	t.Helper()
	pairs := func(yield func([2]int) bool) {
		for i := range 4 {
			for j := i + 1; j < 4; j++ {
				if !yield([2]int{i, j}) {
					return
				}
			}
		}
	}
	g, _, err := graph.Build(4, pairs)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Simplify = simplify
	return pipeline.NewSimulation(g, cfg)
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	s := New(nil, nil)
	rr := do(t, s.Handler(), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Attached)
	assert.NotEmpty(t, resp.Build.Version)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestStatusBeforeAttach(t *testing.T) {
	s := New(nil, nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/status"},
		{http.MethodPost, "/pause"},
		{http.MethodPost, "/resume"},
		{http.MethodPost, "/unsimplify"},
	} {
		rr := do(t, s.Handler(), tc.method, tc.path)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, tc.path)
	}
}

func TestStatus(t *testing.T) {
	s := New(nil, nil)
	sim := newSimulation(t, false)
	s.Attach(sim)
	sim.Tick(context.Background())

	rr := do(t, s.Handler(), http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "solving", got["phase"])
	assert.EqualValues(t, 1, got["steps"])
	graphStats, ok := got["graph"].(map[string]any)
	require.True(t, ok, "graph stats missing: %s", rr.Body.String())
	assert.EqualValues(t, 4, graphStats["nodes"])
	assert.EqualValues(t, 6, graphStats["edges"])
}

func TestControls(t *testing.T) {
	s := New(nil, nil)
	sim := newSimulation(t, false)
	s.Attach(sim)
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/pause?clear=true")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, sim.Paused())

	rr = do(t, h, http.MethodPost, "/pause?clear=maybe")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/resume")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, sim.Paused())

	rr = do(t, h, http.MethodPost, "/unsimplify")
	assert.Equal(t, http.StatusConflict, rr.Code, "nothing is aggregated")

	rr = do(t, h, http.MethodGet, "/pause")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestUnsimplify(t *testing.T) {
	s := New(nil, nil)
	sim := newSimulation(t, true)
	s.Attach(sim)
	ctx := context.Background()
	for sim.Status().Phase == pipeline.PhaseSimplifying {
		sim.Tick(ctx)
	}

	rr := do(t, s.Handler(), http.MethodPost, "/unsimplify")
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), `"phase":"unsimplifying"`)
}

func TestMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.OnStep(context.Background(), 0.25, 1)
	s := New(reg.Handler(), nil)

	rr := do(t, s.Handler(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "mtxlayout_time_step 0.25")

	rr = do(t, New(nil, nil).Handler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(nil, nil)
	s.Attach(newSimulation(t, false))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/status")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `"phase"`))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
