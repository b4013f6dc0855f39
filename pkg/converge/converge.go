// Package converge decides, from sampled position history, when a layout
// run should anneal its time step, un-simplify, or stop.
//
// A [Monitor] is observed once per completed solver step. Every few steps
// it measures how far the active entities moved since the previous sample
// and compares the mean against ConvergenceFactor * dt:
//
//   - still moving: keep going and check again after FramesPerCheck steps
//   - settled with dt below the floor: stop and persist
//   - settled while simplified: dissolve the aggregates
//   - settled otherwise: halve dt
//
// The last two also shorten the check interval, bounded below by
// MinCheckInterval. An optional step bound ends runs that never settle.
package converge

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/graph"
)

// Decision is what the host loop should do after a step.
type Decision int

const (
	Continue   Decision = iota // keep stepping
	Anneal                     // dt was halved
	Unsimplify                 // start dissolving aggregates
	Stop                       // settled at the smallest dt, persist
	Exhausted                  // step bound reached before settling
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Anneal:
		return "anneal"
	case Unsimplify:
		return "unsimplify"
	case Stop:
		return "stop"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Terminal reports whether the run is over.
func (d Decision) Terminal() bool { return d == Stop || d == Exhausted }

// State is the mutable policy state. Only the [Monitor] changes it.
type State struct {
	TimeStep         float64 // current dt
	FramesUntilCheck int     // steps left before the next sample
	FramesPerCheck   int     // countdown restored after an unsettled sample
	Steps            int     // completed steps
	Checks           int     // samples taken
	LastDisplacement float64 // mean displacement at the last sample
}

// Monitor drives the anneal / un-simplify / stop policy.
type Monitor struct {
	cfg   config.Simulation
	state State
	final Decision
}

// NewMonitor creates a monitor with dt and the check interval taken from cfg.
func NewMonitor(cfg config.Simulation) *Monitor {
	m := &Monitor{cfg: cfg}
	m.reset()
	return m
}

func (m *Monitor) reset() {
	m.state = State{
		TimeStep:         m.cfg.TimeStep,
		FramesUntilCheck: m.cfg.CheckInterval,
		FramesPerCheck:   m.cfg.CheckInterval,
	}
	m.final = Continue
}

// Start resets the policy and records the history position of every entity
// so the first sample measures movement from here.
func (m *Monitor) Start(g *graph.Graph) {
	m.reset()
	for _, e := range g.ActiveEntities() {
		e.Body().RecordHistory()
	}
}

// State returns a copy of the current state.
func (m *Monitor) State() State { return m.state }

// TimeStep returns the current dt.
func (m *Monitor) TimeStep() float64 { return m.state.TimeStep }

// Observe accounts for one completed step of g and returns the decision.
// Once a terminal decision has been returned it is returned again.
func (m *Monitor) Observe(g *graph.Graph, simplified bool) Decision {
	if m.final.Terminal() {
		return m.final
	}

	m.state.Steps++
	if m.cfg.MaxSteps > 0 && m.state.Steps >= m.cfg.MaxSteps {
		m.final = Exhausted
		return m.final
	}

	m.state.FramesUntilCheck--
	if m.state.FramesUntilCheck >= 0 {
		return Continue
	}

	d := Sample(g)
	m.state.Checks++
	m.state.LastDisplacement = d
	if d >= m.cfg.Threshold(m.state.TimeStep) {
		m.state.FramesUntilCheck = m.state.FramesPerCheck
		return Continue
	}

	switch {
	case m.state.TimeStep < m.cfg.TimeStepFloor:
		m.final = Stop
		return Stop
	case simplified:
		m.state.FramesUntilCheck = m.cfg.UnsimplifyDelay
		m.shorten()
		return Unsimplify
	default:
		m.state.TimeStep *= 0.5
		m.state.FramesUntilCheck = m.cfg.AnnealDelay
		m.shorten()
		return Anneal
	}
}

func (m *Monitor) shorten() {
	m.state.FramesPerCheck = max(m.state.FramesPerCheck-m.cfg.CheckIntervalStep, m.cfg.MinCheckInterval)
}

// Sample returns the mean distance the active entities of g moved since
// their history was last recorded, then records history again. An empty
// graph has not moved.
func Sample(g *graph.Graph) float64 {
	active := g.ActiveEntities()
	if len(active) == 0 {
		return 0
	}
	var sum float64
	for _, e := range active {
		b := e.Body()
		sum += r3.Norm(b.DisplacementFromHistory())
		b.RecordHistory()
	}
	return sum / float64(len(active))
}
