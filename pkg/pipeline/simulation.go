package pipeline

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/converge"
	"github.com/matzehuels/mtxlayout/pkg/force"
	"github.com/matzehuels/mtxlayout/pkg/graph"
	"github.com/matzehuels/mtxlayout/pkg/observability"
	"github.com/matzehuels/mtxlayout/pkg/simplify"
)

// Phase is the stage a [Simulation] is in.
type Phase string

const (
	PhaseSimplifying   Phase = "simplifying"
	PhaseSolving       Phase = "solving"
	PhaseUnsimplifying Phase = "unsimplifying"
	PhaseSettled       Phase = "settled"
	PhaseExhausted     Phase = "exhausted"
)

// Done reports whether no more work will be done in this phase.
func (p Phase) Done() bool { return p == PhaseSettled || p == PhaseExhausted }

// Status is a point-in-time view of a simulation.
type Status struct {
	Phase            Phase       `json:"phase"`
	Paused           bool        `json:"paused"`
	Steps            int         `json:"steps"`
	Checks           int         `json:"checks"`
	TimeStep         float64     `json:"time_step"`
	Displacement     float64     `json:"displacement"`
	MeanEdgeLength   float64     `json:"mean_edge_length"`
	SimplifyProgress float64     `json:"simplify_progress"`
	LastDecision     string      `json:"last_decision,omitempty"`
	Simplify         Simplified  `json:"simplify"`
	Graph            graph.Stats `json:"graph"`
	Elapsed          Duration    `json:"elapsed"`
}

// Simplified reports what simplification did.
type Simplified struct {
	Aggregates int `json:"aggregates"`
	Absorbed   int `json:"absorbed"`
	Dissolved  int `json:"dissolved"`
}

// Duration marshals as a Go duration string.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).Round(time.Millisecond).String()), nil
}

// Simulation hosts one layout run and performs it a work quantum at a time.
//
// [Simulation.Tick] must be called from a single goroutine. The control
// methods and [Simulation.Status] are safe to call from any goroutine.
// The graph must not be read while another goroutine is ticking.
type Simulation struct {
	mu sync.Mutex

	g       *graph.Graph
	cfg     config.Simulation
	solver  *force.Solver
	monitor *converge.Monitor

	simplifier   *simplify.Simplifier
	unsimplifier *simplify.Unsimplifier
	batchDue     bool // an un-simplify batch may run at the next step boundary

	phase    Phase
	paused   bool
	decision converge.Decision
	meanEdge float64
	summary  Simplified
	stats    graph.Stats
	dirty    bool

	started       time.Time
	simplifyStart time.Time
	elapsed       time.Duration

	status atomic.Pointer[Status]
}

// NewSimulation prepares a run over g. When cfg.Simplify is set and g has
// no aggregates yet, the first ticks simplify the graph.
func NewSimulation(g *graph.Graph, cfg config.Simulation) *Simulation {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	s := &Simulation{
		g:       g,
		cfg:     cfg,
		solver:  force.NewSolver(cfg, rng),
		monitor: converge.NewMonitor(cfg),
		phase:   PhaseSolving,
		dirty:   true,
	}
	if cfg.Simplify && g.AggregateCount() == 0 {
		s.simplifier = simplify.New(g, cfg)
		s.phase = PhaseSimplifying
	} else {
		s.monitor.Start(g)
	}
	s.publish()
	return s
}

// Graph returns the simulated graph.
func (s *Simulation) Graph() *graph.Graph { return s.g }

// Config returns the simulation config.
func (s *Simulation) Config() config.Simulation { return s.cfg }

// Tick performs one quantum of work: a slice of simplification, one
// un-simplify batch at a step boundary, or a slice of a solver step.
// It does nothing while paused or once done.
func (s *Simulation) Tick(ctx context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || s.phase.Done() {
		return *s.publish()
	}
	if s.started.IsZero() {
		s.started = time.Now()
	}

	switch {
	case s.simplifier != nil:
		s.tickSimplify(ctx)
	case s.unsimplifier != nil && s.batchDue && s.solver.AtStepStart():
		s.tickUnsimplify()
	default:
		s.tickSolve(ctx)
	}

	s.elapsed = time.Since(s.started)
	return *s.publish()
}

func (s *Simulation) tickSimplify(ctx context.Context) {
	if s.simplifyStart.IsZero() {
		s.simplifyStart = time.Now()
	}
	if !s.simplifier.Advance(s.cfg.SimplifyQuantum) {
		return
	}
	res := s.simplifier.Result()
	s.summary.Aggregates = res.Aggregates
	s.summary.Absorbed = res.Absorbed
	observability.Simulation().OnSimplify(ctx, res.Aggregates, res.Absorbed, time.Since(s.simplifyStart))

	s.simplifier = nil
	s.phase = PhaseSolving
	s.monitor.Start(s.g)
	s.dirty = true
}

func (s *Simulation) tickUnsimplify() {
	done := s.unsimplifier.Advance()
	s.summary.Dissolved = s.unsimplifier.Dissolved()
	s.batchDue = false
	s.dirty = true
	if done {
		s.unsimplifier = nil
		s.phase = PhaseSolving
	}
}

func (s *Simulation) tickSolve(ctx context.Context) {
	dt := s.monitor.TimeStep()
	prog, complete := s.solver.Advance(s.g, dt, s.cfg.Quantum)
	if !complete {
		return
	}
	s.meanEdge = prog.MeanEdgeLength
	s.dirty = true
	hooks := observability.Simulation()
	hooks.OnStep(ctx, dt, s.meanEdge)

	d := s.monitor.Observe(s.g, s.unsimplifier == nil && s.g.Simplified())
	s.batchDue = s.unsimplifier != nil
	switch d {
	case converge.Continue:
		return
	case converge.Unsimplify:
		s.startUnsimplify()
	case converge.Stop, converge.Exhausted:
		s.finish(d)
	}
	s.decision = d
	hooks.OnDecision(ctx, d.String(), s.monitor.TimeStep(), s.monitor.State().LastDisplacement)
}

func (s *Simulation) startUnsimplify() {
	s.unsimplifier = simplify.NewUnsimplifier(s.g, s.cfg.UnsimplifyBatch)
	s.batchDue = true
	s.phase = PhaseUnsimplifying
}

// finish dissolves what is still aggregated so only original nodes are
// persisted.
func (s *Simulation) finish(d converge.Decision) {
	if s.g.Simplified() {
		s.summary.Dissolved += simplify.Unsimplify(s.g)
	}
	s.unsimplifier = nil
	if d == converge.Stop {
		s.phase = PhaseSettled
	} else {
		s.phase = PhaseExhausted
	}
}

// Pause suspends ticking. With clearVelocity set every entity is also
// brought to rest; otherwise the run resumes where it left off.
func (s *Simulation) Pause(clearVelocity bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	if clearVelocity {
		s.g.ClearVelocities()
	}
	s.publish()
}

// Resume continues a paused run.
func (s *Simulation) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.publish()
}

// TogglePause pauses a running simulation or resumes a paused one and
// reports whether it is now paused.
func (s *Simulation) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	s.publish()
	return s.paused
}

// RequestUnsimplify starts dissolving aggregates before the convergence
// monitor would. It reports false when there is nothing to dissolve or
// dissolving is already under way.
func (s *Simulation) RequestUnsimplify() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Done() || s.simplifier != nil || s.unsimplifier != nil || !s.g.Simplified() {
		return false
	}
	s.startUnsimplify()
	s.publish()
	return true
}

// Done reports whether the run has settled or hit the step bound.
func (s *Simulation) Done() bool {
	return s.Status().Phase.Done()
}

// Paused reports whether ticking is suspended.
func (s *Simulation) Paused() bool {
	return s.Status().Paused
}

// Decision returns the last policy decision other than continue.
func (s *Simulation) Decision() converge.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decision
}

// Status returns the latest published status.
func (s *Simulation) Status() Status {
	return *s.status.Load()
}

func (s *Simulation) publish() *Status {
	if s.dirty {
		s.stats = s.g.Stats()
		s.dirty = false
	}
	st := s.monitor.State()
	status := &Status{
		Phase:          s.phase,
		Paused:         s.paused,
		Steps:          st.Steps,
		Checks:         st.Checks,
		TimeStep:       st.TimeStep,
		Displacement:   st.LastDisplacement,
		MeanEdgeLength: s.meanEdge,
		Simplify:       s.summary,
		Graph:          s.stats,
		Elapsed:        Duration(s.elapsed),
	}
	if s.decision != converge.Continue {
		status.LastDecision = s.decision.String()
	}
	switch {
	case s.simplifier != nil:
		status.SimplifyProgress = s.simplifier.Fraction()
	case s.cfg.Simplify:
		status.SimplifyProgress = 1
	}
	s.status.Store(status)
	return status
}
