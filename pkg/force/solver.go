package force

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/graph"
)

// Phase is the part of a simulation step a [Cursor] is in.
type Phase int

const (
	// PhaseNodes accumulates and integrates forces on active simple nodes.
	PhaseNodes Phase = iota
	// PhaseAggregates accumulates and integrates forces on active aggregates.
	PhaseAggregates
	// PhasePositions moves every active entity.
	PhasePositions
)

func (p Phase) String() string {
	switch p {
	case PhaseNodes:
		return "nodes"
	case PhaseAggregates:
		return "aggregates"
	case PhasePositions:
		return "positions"
	}
	return "unknown"
}

// Stage is the kind of interaction being accumulated for the current entity.
type Stage int

const (
	// StageNodes pairs the entity with subsequent simple nodes.
	StageNodes Stage = iota
	// StageAggregates pairs the entity with aggregates.
	StageAggregates
	// StageEdges applies incident spring forces.
	StageEdges
)

// Cursor is the resumption point of a partially computed step.
type Cursor struct {
	Phase Phase
	I     int   // Index of the current entity in its table
	Stage Stage // Interaction being accumulated for entity I
	J     int   // Next partner or edge index; -1 before the stage starts
}

// AtStepStart reports whether no work of the current step has been done.
func (c Cursor) AtStepStart() bool {
	return c == Cursor{J: -1}
}

// Progress reports the work done by one [Solver.Advance] call.
type Progress struct {
	// Evaluations counts pair and edge evaluations.
	Evaluations int
	// MeanEdgeLength is the mean length of non-dormant edges after the most
	// recently completed step.
	MeanEdgeLength float64
}

// Solver computes simulation steps in bounded slices.
//
// A Solver is bound to one graph at a time; call [Solver.Reset] before
// using it with another.
type Solver struct {
	cfg      config.Simulation
	rng      *rand.Rand
	cursor   Cursor
	meanEdge float64
}

// NewSolver creates a solver positioned at the start of a step. rng breaks
// ties between coincident entities.
func NewSolver(cfg config.Simulation, rng *rand.Rand) *Solver {
	return &Solver{
		cfg:      cfg,
		rng:      rng,
		cursor:   Cursor{J: -1},
		meanEdge: cfg.IdealLength,
	}
}

// Cursor returns the current resumption point.
func (s *Solver) Cursor() Cursor { return s.cursor }

// AtStepStart reports whether the solver is between steps.
func (s *Solver) AtStepStart() bool { return s.cursor.AtStepStart() }

// MeanEdgeLength returns the mean edge length measured by the last completed
// step, or the ideal length before any step has completed.
func (s *Solver) MeanEdgeLength() float64 { return s.meanEdge }

// Reset discards a partially computed step. Forces accumulated so far are
// left on the entities and will be integrated by the next step.
func (s *Solver) Reset() { s.cursor = Cursor{J: -1} }

// Step computes one whole step without yielding.
func (s *Solver) Step(g *graph.Graph, dt float64) Progress {
	p, _ := s.Advance(g, dt, math.MaxInt)
	return p
}

// budget tracks evaluations against the allowance of one Advance call.
type budget struct {
	limit int
	used  int
}

// spend records one evaluation and reports whether the allowance is used up.
func (b *budget) spend() bool {
	b.used++
	return b.used >= b.limit
}

// Advance continues the current step for at most limit pair and edge
// evaluations. It returns true when the step completed, in which case the
// cursor is back at the start of the next step.
func (s *Solver) Advance(g *graph.Graph, dt float64, limit int) (Progress, bool) {
	w := &budget{limit: limit}
	nodes, aggs := g.Nodes(), g.Aggregates()
	c := &s.cursor

	if c.Phase == PhaseNodes {
		for ; c.I < len(nodes); s.next(StageNodes) {
			n := nodes[c.I]
			if !n.Body().Active {
				continue
			}
			if !s.accumulate(n, nodes, aggs, w) {
				return s.progress(w), false
			}
			ApplyForce(n.Body(), s.cfg, dt)
		}
		*c = Cursor{Phase: PhaseAggregates, Stage: StageAggregates, J: -1}
	}

	if c.Phase == PhaseAggregates {
		for ; c.I < len(aggs); s.next(StageAggregates) {
			a := aggs[c.I]
			if !a.Body().Active {
				continue
			}
			if !s.accumulate(a, nodes, aggs, w) {
				return s.progress(w), false
			}
			ApplyForce(a.Body(), s.cfg, dt)
		}
		*c = Cursor{Phase: PhasePositions, J: -1}
	}

	s.updatePositions(g)
	s.Reset()
	return s.progress(w), true
}

func (s *Solver) next(first Stage) {
	s.cursor.I++
	s.cursor.Stage = first
	s.cursor.J = -1
}

func (s *Solver) progress(w *budget) Progress {
	return Progress{Evaluations: w.used, MeanEdgeLength: s.meanEdge}
}

// accumulate adds repulsion and spring forces to e, resuming at the cursor.
// It returns false when the budget ran out before e was finished.
func (s *Solver) accumulate(e graph.Entity, nodes []*graph.SimpleNode, aggs []*graph.AggregateNode, w *budget) bool {
	c := &s.cursor
	b := e.Body()

	if c.Stage == StageNodes {
		if c.J < 0 {
			c.J = c.I + 1
		}
		for ; c.J < len(nodes); c.J++ {
			other := nodes[c.J].Body()
			if !other.Active {
				continue
			}
			s.repel(b, other)
			if w.spend() {
				c.J++
				return false
			}
		}
		c.Stage, c.J = StageAggregates, -1
	}

	if c.Stage == StageAggregates {
		if c.J < 0 {
			// Nodes meet every aggregate; aggregates meet only later ones.
			c.J = 0
			if e.IsAggregate() {
				c.J = c.I + 1
			}
		}
		for ; c.J < len(aggs); c.J++ {
			other := aggs[c.J].Body()
			if !other.Active {
				continue
			}
			s.repel(b, other)
			if w.spend() {
				c.J++
				return false
			}
		}
		c.Stage, c.J = StageEdges, -1
	}

	if c.J < 0 {
		c.J = 0
	}
	for ; c.J < len(b.Edges); c.J++ {
		b.Force = r3.Add(b.Force, Spring(b.Edges[c.J], e, s.cfg.IdealLength))
		if w.spend() {
			c.J++
			return false
		}
	}
	return true
}

func (s *Solver) repel(a, b *graph.Body) {
	f := Repulse(a.Position, b.Position, s.cfg.IdealLength2(), s.rng)
	a.Force = r3.Add(a.Force, f)
	b.Force = r3.Sub(b.Force, f)
}

// updatePositions moves every active entity and measures the mean length of
// the edges that are not dormant.
func (s *Solver) updatePositions(g *graph.Graph) {
	for _, e := range g.ActiveEntities() {
		UpdatePosition(e.Body(), s.cfg.FrameTime)
	}

	var total float64
	var count int
	for _, e := range g.Edges() {
		if e.Dormant() {
			continue
		}
		total += e.Length()
		count++
	}
	if count > 0 {
		s.meanEdge = total / float64(count)
	}
}
