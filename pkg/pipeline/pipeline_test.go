package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/errors"
	"github.com/matzehuels/mtxlayout/pkg/graph"
	"github.com/matzehuels/mtxlayout/pkg/mtx"
	"github.com/matzehuels/mtxlayout/pkg/observability"
	"github.com/matzehuels/mtxlayout/pkg/store"
)

// =============================================================================
// Options
// =============================================================================

func TestKindOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Kind
		wantErr bool
	}{
		{"can_229.mtx", KindMatrix, false},
		{"dir/can_229.MTX", KindMatrix, false},
		{"can_229.mtxs", KindCheckpoint, false},
		{"can_229.json", "", true},
		{"can_229", "", true},
	}
	for _, tt := range tests {
		got, err := KindOf(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("KindOf(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("KindOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLayoutName(t *testing.T) {
	tests := map[string]string{
		"can_229.mtx":         "can_229",
		"/data/bcsstk01.mtxs": "bcsstk01",
		"plain":               "plain",
	}
	for in, want := range tests {
		if got := LayoutName(in); got != want {
			t.Errorf("LayoutName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	opts := Options{Input: "data/can_229.mtx"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Name != "can_229" {
		t.Errorf("Name = %q, want can_229", opts.Name)
	}
	if opts.Config != config.Default() {
		t.Error("zero Config should become config.Default()")
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}

	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"missing input", Options{}, errors.ErrCodeInvalidInput},
		{"unknown extension", Options{Input: "a.txt"}, errors.ErrCodeUnsupported},
		{"bad name", Options{Input: "a.mtx", Name: "../up"}, errors.ErrCodeInvalidName},
		{"bad config", Options{Input: "a.mtx", Config: func() config.Simulation {
			c := config.Default()
			c.TimeStepFloor = 2
			return c
		}()}, errors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

// =============================================================================
// Simulation
// =============================================================================

func single(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	if _, err := g.AddNode(0, r3.Vec{}); err != nil {
		t.Fatal(err)
	}
	return g
}

func clique(t *testing.T) *graph.Graph {
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
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// tickUntil ticks until cond holds or the tick allowance runs out.
func tickUntil(t *testing.T, sim *Simulation, cond func(Status) bool) Status {
	t.Helper()
	ctx := context.Background()
	status := sim.Status()
	for range 100000 {
		if cond(status) {
			return status
		}
		status = sim.Tick(ctx)
	}
	t.Fatalf("condition never held; last status %+v", status)
	return status
}

type decisionHooks struct {
	observability.NoopSimulationHooks
	decisions []string
	steps     int
}

func (h *decisionHooks) OnStep(context.Context, float64, float64) { h.steps++ }

func (h *decisionHooks) OnDecision(_ context.Context, decision string, _, _ float64) {
	h.decisions = append(h.decisions, decision)
}

func TestSimulationSettlesStaticGraph(t *testing.T) {
	hooks := &decisionHooks{}
	observability.SetSimulationHooks(hooks)
	defer observability.Reset()

	cfg := config.Default()
	cfg.Simplify = false
	sim := NewSimulation(single(t), cfg)

	status := tickUntil(t, sim, func(s Status) bool { return s.Phase.Done() })
	if status.Phase != PhaseSettled {
		t.Fatalf("Phase = %s, want settled", status.Phase)
	}
	if status.LastDecision != "stop" {
		t.Errorf("LastDecision = %q, want stop", status.LastDecision)
	}
	if status.TimeStep >= cfg.TimeStepFloor {
		t.Errorf("TimeStep = %v, want below %v", status.TimeStep, cfg.TimeStepFloor)
	}
	if status.Steps > 1000 {
		t.Errorf("Steps = %d, a static graph should settle quickly", status.Steps)
	}
	if hooks.steps != status.Steps {
		t.Errorf("OnStep calls = %d, want %d", hooks.steps, status.Steps)
	}
	want := []string{"anneal", "anneal", "anneal", "anneal", "anneal", "anneal", "anneal", "stop"}
	if len(hooks.decisions) != len(want) {
		t.Fatalf("decisions = %v, want %v", hooks.decisions, want)
	}
	for i := range want {
		if hooks.decisions[i] != want[i] {
			t.Errorf("decisions = %v, want %v", hooks.decisions, want)
			break
		}
	}

	steps := status.Steps
	if got := sim.Tick(context.Background()); got.Steps != steps {
		t.Errorf("Tick after settling advanced to step %d", got.Steps)
	}
	if !sim.Done() {
		t.Error("Done() = false after settling")
	}
}

func TestSimulationSimplifiesAndUnsimplifies(t *testing.T) {
	cfg := config.Default()
	cfg.SimplifyQuantum = 1
	sim := NewSimulation(clique(t), cfg)

	if got := sim.Status().Phase; got != PhaseSimplifying {
		t.Fatalf("initial Phase = %s, want simplifying", got)
	}
	status := tickUntil(t, sim, func(s Status) bool { return s.Phase != PhaseSimplifying })
	if status.Simplify.Aggregates != 1 || status.Simplify.Absorbed != 4 {
		t.Errorf("Simplify = %+v, want 1 aggregate absorbing 4 nodes", status.Simplify)
	}
	if status.Graph.ActiveAggregates != 1 || status.Graph.ActiveNodes != 0 {
		t.Errorf("Graph = %+v, want only the aggregate active", status.Graph)
	}
	if status.SimplifyProgress != 1 {
		t.Errorf("SimplifyProgress = %v, want 1", status.SimplifyProgress)
	}

	if !sim.RequestUnsimplify() {
		t.Fatal("RequestUnsimplify() = false on a simplified graph")
	}
	if sim.RequestUnsimplify() {
		t.Error("second RequestUnsimplify() should report false")
	}
	status = tickUntil(t, sim, func(s Status) bool { return s.Phase == PhaseSolving })
	if status.Simplify.Dissolved != 1 {
		t.Errorf("Dissolved = %d, want 1", status.Simplify.Dissolved)
	}
	if status.Graph.ActiveNodes != 4 || status.Graph.ActiveAggregates != 0 {
		t.Errorf("Graph = %+v, want 4 active nodes", status.Graph)
	}
	if status.Graph.SyntheticEdges != 0 {
		t.Errorf("SyntheticEdges = %d, want pruned", status.Graph.SyntheticEdges)
	}
	if sim.RequestUnsimplify() {
		t.Error("RequestUnsimplify() should report false once nothing is aggregated")
	}
}

func TestSimulationExhaustedDissolvesAggregates(t *testing.T) {
	cfg := config.Default()
	cfg.MaxSteps = 3
	sim := NewSimulation(clique(t), cfg)

	status := tickUntil(t, sim, func(s Status) bool { return s.Phase.Done() })
	if status.Phase != PhaseExhausted {
		t.Fatalf("Phase = %s, want exhausted", status.Phase)
	}
	if status.Steps != 3 {
		t.Errorf("Steps = %d, want 3", status.Steps)
	}
	if status.Graph.ActiveAggregates != 0 || status.Graph.ActiveNodes != 4 {
		t.Errorf("Graph = %+v, want aggregates dissolved before persisting", status.Graph)
	}
	if sim.Graph().Simplified() {
		t.Error("graph still simplified after exhaustion")
	}
}

func TestSimulationPause(t *testing.T) {
	cfg := config.Default()
	cfg.Simplify = false
	g := graph.New()
	a, _ := g.AddNode(0, r3.Vec{})
	b, _ := g.AddNode(1, r3.Vec{X: 0.5})
	g.Connect(a, b)
	sim := NewSimulation(g, cfg)
	ctx := context.Background()

	sim.Tick(ctx)
	sim.Pause(true)
	if !sim.Paused() {
		t.Fatal("Paused() = false after Pause")
	}
	for _, n := range g.Nodes() {
		if n.Body().Velocity != (r3.Vec{}) {
			t.Errorf("node %d velocity = %v, want cleared", n.ID, n.Body().Velocity)
		}
	}
	steps := sim.Status().Steps
	if got := sim.Tick(ctx).Steps; got != steps {
		t.Errorf("paused Tick advanced from %d to %d", steps, got)
	}

	sim.Resume()
	if got := sim.Tick(ctx).Steps; got != steps+1 {
		t.Errorf("Steps after Resume = %d, want %d", got, steps+1)
	}
	if !sim.TogglePause() || sim.TogglePause() {
		t.Error("TogglePause should alternate paused and running")
	}
}

// =============================================================================
// Runner
// =============================================================================

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunnerLoadMatrix(t *testing.T) {
	path := writeFile(t, t.TempDir(), "path.mtx", "% path graph\n3\n1 2\n2 3\n3 3\n2 1\n")
	r := NewRunner(nil, nil)

	g, info, err := r.Load(context.Background(), path, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if info.Kind != KindMatrix || info.Dimension != 3 {
		t.Errorf("info = %+v", info)
	}
	if info.SelfLoops != 1 || info.Duplicates != 1 {
		t.Errorf("SelfLoops = %d, Duplicates = %d; want 1, 1", info.SelfLoops, info.Duplicates)
	}
	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Errorf("graph has %d nodes and %d edges, want 3 and 2", g.NodeCount(), g.EdgeCount())
	}
	if c := g.Center(); r3.Norm(c) > 1e-9 {
		t.Errorf("matrix arrangement center = %v, want origin", c)
	}
}

func TestRunnerLoadCheckpoint(t *testing.T) {
	dir := t.TempDir()
	g, _, err := graph.Build(3, func(yield func([2]int) bool) {
		_ = yield([2]int{0, 1}) && yield([2]int{1, 2})
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "path.mtxs")
	if written, err := mtx.ExportSolved(path, g); err != nil || !written {
		t.Fatalf("ExportSolved() = %v, %v", written, err)
	}

	loaded, info, err := NewRunner(nil, nil).Load(context.Background(), path, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if info.Kind != KindCheckpoint || info.Nodes != 3 || info.Edges != 2 {
		t.Errorf("info = %+v", info)
	}
	if loaded.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", loaded.NodeCount())
	}
}

func TestRunnerLoadErrors(t *testing.T) {
	r := NewRunner(nil, nil)
	ctx := context.Background()

	_, _, err := r.Load(ctx, filepath.Join(t.TempDir(), "missing.mtx"), config.Default())
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file error = %v, want FILE_NOT_FOUND", err)
	}

	path := writeFile(t, t.TempDir(), "bad.mtx", "% only comments\n")
	_, _, err = r.Load(ctx, path, config.Default())
	if !errors.Is(err, errors.ErrCodeUnparsableHeader) {
		t.Errorf("headerless file error = %v, want UNPARSABLE_HEADER", err)
	}
}

func TestRunnerExecute(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "path.mtx", "3\n1 2\n2 3\n")
	st, err := store.NewFileStore(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(st, nil)
	defer r.Close()
	ctx := context.Background()

	cfg := config.Default()
	cfg.MaxSteps = 2000
	var started *Simulation
	res, err := r.Execute(ctx, Options{
		Input:   input,
		Config:  cfg,
		OnStart: func(sim *Simulation) { started = sim },
	})
	if err != nil {
		t.Fatal(err)
	}
	if started == nil {
		t.Error("OnStart was not called")
	}
	if res.Name != "path" || res.Restored || !res.Written || res.RunID == "" {
		t.Errorf("result = %+v", res)
	}
	if !res.Status.Phase.Done() {
		t.Errorf("Status.Phase = %s, want a finished phase", res.Status.Phase)
	}
	if res.Status.Simplify.Aggregates != 1 {
		t.Errorf("Simplify = %+v, want the two path ends aggregated", res.Status.Simplify)
	}

	data, err := st.Load(ctx, "path")
	if err != nil {
		t.Fatal(err)
	}
	cp, err := mtx.ReadSolved(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(cp.Nodes) != 3 || len(cp.Edges) != 2 {
		t.Errorf("stored checkpoint has %d nodes and %d edges, want 3 and 2", len(cp.Nodes), len(cp.Edges))
	}

	again, err := r.Execute(ctx, Options{Input: input, Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	if !again.Restored || again.Written {
		t.Errorf("second Execute restored=%v written=%v, want restored", again.Restored, again.Written)
	}
	if again.Graph.NodeCount() != 3 || again.Graph.EdgeCount() != 2 {
		t.Errorf("restored graph has %d nodes and %d edges", again.Graph.NodeCount(), again.Graph.EdgeCount())
	}

	refreshed, err := r.Execute(ctx, Options{Input: input, Config: cfg, Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.Restored || refreshed.Written {
		t.Errorf("refresh restored=%v written=%v, want a solve that keeps the stored checkpoint",
			refreshed.Restored, refreshed.Written)
	}
}

func TestRunnerSolveCancelled(t *testing.T) {
	cfg := config.Default()
	cfg.Simplify = false
	sim := NewSimulation(single(t), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	status, err := NewRunner(nil, nil).Solve(ctx, sim)
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Solve() error = %v, want context.Canceled", err)
	}
	if status.Phase.Done() {
		t.Errorf("Phase = %s, cancelled run should not finish", status.Phase)
	}
}

func TestRunnerSolveWaitsWhilePaused(t *testing.T) {
	old := pausePoll
	pausePoll = time.Millisecond
	defer func() { pausePoll = old }()

	cfg := config.Default()
	cfg.Simplify = false
	sim := NewSimulation(single(t), cfg)
	sim.Pause(false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	status, err := NewRunner(nil, nil).Solve(ctx, sim)
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Solve() error = %v, want deadline exceeded", err)
	}
	if status.Steps != 0 {
		t.Errorf("paused run advanced to step %d", status.Steps)
	}
}
