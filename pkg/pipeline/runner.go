package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/errors"
	"github.com/matzehuels/mtxlayout/pkg/graph"
	"github.com/matzehuels/mtxlayout/pkg/mtx"
	"github.com/matzehuels/mtxlayout/pkg/observability"
	"github.com/matzehuels/mtxlayout/pkg/store"
)

// pausePoll is how often Solve looks at a paused simulation.
var pausePoll = 50 * time.Millisecond

// Runner executes layout runs against a checkpoint store.
//
// The Runner holds no per-run state, so one Runner can serve several runs
// from different goroutines.
type Runner struct {
	Store  store.Store
	Logger *log.Logger
}

// NewRunner creates a runner. A nil store disables persistence and a nil
// logger discards output.
func NewRunner(s store.Store, logger *log.Logger) *Runner {
	if s == nil {
		s = store.NewNullStore()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{Store: s, Logger: logger}
}

// Execute loads, simplifies, solves and persists opts.Input. When the store
// already holds a checkpoint under the layout name and opts.Refresh is not
// set, the stored layout is returned instead.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := r.Logger

	result := &Result{Name: opts.Name}

	if !opts.Refresh {
		g, err := r.Restore(ctx, opts.Name)
		switch {
		case err == nil:
			result.Graph = g
			result.Restored = true
			result.Load = LoadInfo{Kind: KindCheckpoint, Nodes: g.NodeCount(), Edges: g.EdgeCount()}
			logger.Info("restored checkpoint", "name", opts.Name, "nodes", g.NodeCount(), "edges", g.EdgeCount())
			return result, nil
		case !stderrors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("restore %s: %w", opts.Name, err)
		}
	}

	// Stage 1: Load
	loadStart := time.Now()
	g, info, err := r.Load(ctx, opts.Input, opts.Config)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Load = info
	result.Stats.LoadTime = time.Since(loadStart)

	// Stages 2 and 3: Simplify and solve
	sim := NewSimulation(g, opts.Config)
	if opts.OnStart != nil {
		opts.OnStart(sim)
	}
	solveStart := time.Now()
	status, err := r.Solve(ctx, sim)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	result.Graph = g
	result.Status = status
	result.Stats.SolveTime = time.Since(solveStart)

	// Stage 4: Persist
	result.RunID = uuid.NewString()
	persistStart := time.Now()
	written, err := r.Persist(store.WithRunID(ctx, result.RunID), opts.Name, g)
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	result.Written = written
	result.Stats.PersistTime = time.Since(persistStart)

	return result, nil
}

// Load reads a matrix or checkpoint file into a graph. Matrices are placed
// with cfg.Arrangement; checkpoints keep their stored positions.
func (r *Runner) Load(ctx context.Context, path string, cfg config.Simulation) (*graph.Graph, LoadInfo, error) {
	start := time.Now()
	g, info, err := r.load(path, cfg)
	nodes, edges := 0, 0
	if g != nil {
		nodes, edges = g.NodeCount(), g.EdgeCount()
	}
	observability.Simulation().OnLoad(ctx, nodes, edges, time.Since(start), err)
	if err != nil {
		return nil, info, err
	}

	switch info.Kind {
	case KindMatrix:
		r.Logger.Info("loaded matrix",
			"path", path,
			"dimension", info.Dimension,
			"nodes", info.Nodes,
			"edges", info.Edges,
			"self_loops", info.SelfLoops,
			"duplicates", info.Duplicates,
			"malformed", info.Malformed,
			"duration", time.Since(start))
	case KindCheckpoint:
		r.Logger.Info("loaded checkpoint",
			"path", path,
			"nodes", info.Nodes,
			"edges", info.Edges,
			"duration", time.Since(start))
	}
	return g, info, nil
}

func (r *Runner) load(path string, cfg config.Simulation) (*graph.Graph, LoadInfo, error) {
	kind, err := KindOf(path)
	if err != nil {
		return nil, LoadInfo{}, err
	}
	info := LoadInfo{Kind: kind}

	if kind == KindCheckpoint {
		cp, err := mtx.ImportSolved(path)
		if err != nil {
			return nil, info, err
		}
		g, err := cp.Graph()
		if err != nil {
			return nil, info, err
		}
		info.Dimension = len(cp.Nodes)
		info.Pairs = len(cp.Edges)
		info.Nodes, info.Edges = g.NodeCount(), g.EdgeCount()
		return g, info, nil
	}

	adj, err := mtx.ImportAdjacency(path)
	if err != nil {
		return nil, info, err
	}
	info.Dimension = adj.N
	info.Pairs = len(adj.Entries)
	info.Malformed = adj.Malformed

	g, stats, err := graph.Build(adj.N, adj.Pairs())
	if err != nil {
		return nil, info, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s", path)
	}
	info.SelfLoops = adj.SelfLoops + stats.SelfLoops
	info.Duplicates = stats.Duplicates
	info.Nodes, info.Edges = g.NodeCount(), g.EdgeCount()

	arrangement, err := graph.ParseArrangement(cfg.Arrangement)
	if err != nil {
		return nil, info, errors.Wrap(errors.ErrCodeInvalidConfig, err, "arrangement")
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, ^cfg.Seed))
	if err := graph.Arrange(g, arrangement, rng); err != nil {
		return nil, info, err
	}
	return g, info, nil
}

// Solve ticks sim until it settles, hits the step bound or ctx is done.
// The goroutine yields between quanta so other work interleaves.
func (r *Runner) Solve(ctx context.Context, sim *Simulation) (Status, error) {
	start := time.Now()
	status := sim.Status()
	r.Logger.Debug("solving",
		"phase", status.Phase,
		"nodes", status.Graph.Nodes,
		"edges", status.Graph.Edges)

	lastDecision := status.LastDecision
	var err error
	for !status.Phase.Done() {
		if err = ctx.Err(); err != nil {
			break
		}
		if status.Paused {
			select {
			case <-ctx.Done():
			case <-time.After(pausePoll):
			}
			status = sim.Status()
			continue
		}

		status = sim.Tick(ctx)
		if status.LastDecision != lastDecision {
			r.logDecision(status)
			lastDecision = status.LastDecision
		}
		runtime.Gosched()
	}

	observability.Simulation().OnSolveComplete(ctx, status.Steps, time.Since(start), err)
	if err != nil {
		return status, err
	}
	r.Logger.Info("solved layout",
		"phase", status.Phase,
		"steps", status.Steps,
		"time_step", status.TimeStep,
		"mean_edge_length", status.MeanEdgeLength,
		"duration", time.Since(start))
	return status, nil
}

func (r *Runner) logDecision(s Status) {
	switch s.Phase {
	case PhaseExhausted:
		r.Logger.Warn("step bound reached before the layout settled", "steps", s.Steps)
	default:
		r.Logger.Debug(s.LastDecision,
			"step", s.Steps,
			"time_step", s.TimeStep,
			"displacement", s.Displacement,
			"active_aggregates", s.Graph.ActiveAggregates)
	}
}

// Persist writes g as a solved checkpoint under name. An existing
// checkpoint is kept and Persist reports false.
func (r *Runner) Persist(ctx context.Context, name string, g *graph.Graph) (bool, error) {
	var buf bytes.Buffer
	if err := mtx.WriteSolved(&buf, g); err != nil {
		return false, err
	}
	written, err := r.Store.Save(ctx, name, buf.Bytes())
	if err != nil {
		return false, err
	}
	if written {
		r.Logger.Info("stored checkpoint", "name", name, "bytes", buf.Len(), "run_id", store.RunID(ctx))
	} else {
		r.Logger.Info("checkpoint already stored, keeping it", "name", name)
	}
	return written, nil
}

// Restore loads the checkpoint stored under name.
func (r *Runner) Restore(ctx context.Context, name string) (*graph.Graph, error) {
	data, err := r.Store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	cp, err := mtx.ReadSolved(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return cp.Graph()
}

// Close releases the store.
func (r *Runner) Close() error {
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}
