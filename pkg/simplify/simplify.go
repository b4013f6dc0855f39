package simplify

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/graph"
)

// Phase is the stage a [Simplifier] is in.
type Phase int

const (
	PhaseScan Phase = iota
	PhaseRewire
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseScan:
		return "scan"
	case PhaseRewire:
		return "rewire"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// Result summarizes a simplification.
type Result struct {
	Aggregates     int // Aggregates created
	Absorbed       int // Nodes absorbed into aggregates
	SyntheticEdges int // Edges created to or between aggregates
	Comparisons    int // Node pairs examined
}

// Simplifier aggregates similar nodes of one graph, resumably.
type Simplifier struct {
	g       *graph.Graph
	massCap float64
	phase   Phase
	result  Result

	// neighbor sets by node index, built lazily on first use
	sets []map[int]struct{}

	// scan cursor
	i, j int

	// rewire cursor
	agg     int
	pending []int
	k       int
}

// New creates a simplifier for g. Nothing is changed until [Simplifier.Advance].
func New(g *graph.Graph, cfg config.Simulation) *Simplifier {
	return &Simplifier{g: g, massCap: cfg.MassCap, j: 1, k: -1}
}

// Run simplifies g without yielding.
func Run(g *graph.Graph, cfg config.Simulation) Result {
	s := New(g, cfg)
	for !s.Advance(math.MaxInt) {
	}
	return s.Result()
}

// Phase returns the current phase.
func (s *Simplifier) Phase() Phase { return s.phase }

// Result returns the counts accumulated so far.
func (s *Simplifier) Result() Result { return s.result }

// Done reports whether both phases have completed.
func (s *Simplifier) Done() bool { return s.phase == PhaseDone }

// Fraction estimates progress through the current phase in [0, 1].
func (s *Simplifier) Fraction() float64 {
	switch s.phase {
	case PhaseScan:
		if n := s.g.NodeCount(); n > 0 {
			return float64(s.i) / float64(n)
		}
	case PhaseRewire:
		if n := s.g.AggregateCount(); n > 0 {
			return float64(s.agg) / float64(n)
		}
	}
	return 1
}

// Advance performs at most budget units of work (pair comparisons during the
// scan, neighbor links during rewiring) and reports whether simplification
// is complete.
func (s *Simplifier) Advance(budget int) bool {
	used := 0
	if s.phase == PhaseScan {
		if !s.scan(budget, &used) {
			return false
		}
		s.phase = PhaseRewire
	}
	if s.phase == PhaseRewire {
		if !s.rewire(budget, &used) {
			return false
		}
		s.phase = PhaseDone
		s.sets = nil
	}
	return true
}

func (s *Simplifier) scan(budget int, used *int) bool {
	nodes := s.g.Nodes()
	if s.sets == nil {
		s.sets = make([]map[int]struct{}, len(nodes))
		for idx, n := range nodes {
			set := make(map[int]struct{}, len(n.Neighbors))
			for _, k := range n.Neighbors {
				set[k] = struct{}{}
			}
			s.sets[idx] = set
		}
	}

	for ; s.i < len(nodes); s.i, s.j = s.i+1, s.i+2 {
		n1 := nodes[s.i]
		for ; s.j < len(nodes); s.j++ {
			n2 := nodes[s.j]
			s.result.Comparisons++
			if !(n1.Owned() && n2.Owned()) && s.similar(n1, n2) {
				s.claim(n1, n2)
			}
			*used++
			if *used >= budget {
				s.j++
				return false
			}
		}
	}
	return true
}

// similar reports whether the neighborhoods of n1 and n2 are identical apart
// from the edge between them.
func (s *Simplifier) similar(n1, n2 *graph.SimpleNode) bool {
	c1, c2 := len(n1.Neighbors), len(n2.Neighbors)
	if c1 == 0 || c1-c2 > 1 || c2-c1 > 1 {
		return false
	}
	set1, set2 := s.sets[n1.Index()], s.sets[n2.Index()]
	for _, k := range n1.Neighbors {
		if _, ok := set2[k]; k != n2.Index() && !ok {
			return false
		}
	}
	for _, k := range n2.Neighbors {
		if _, ok := set1[k]; k != n1.Index() && !ok {
			return false
		}
	}
	return true
}

func (s *Simplifier) claim(n1, n2 *graph.SimpleNode) {
	switch {
	case n1.Owned():
		s.absorb(n1.Owner, n2)
	case n2.Owned():
		s.absorb(n2.Owner, n1)
	default:
		mid := r3.Scale(0.5, r3.Add(n1.Body().Position, n2.Body().Position))
		a := s.g.AddAggregate(mid)
		s.result.Aggregates++
		s.absorb(a.Index(), n1)
		s.absorb(a.Index(), n2)
	}
}

func (s *Simplifier) absorb(owner int, n *graph.SimpleNode) {
	a, _ := s.g.Aggregate(owner)
	if err := a.Absorb(n, s.massCap); err == nil {
		s.result.Absorbed++
	}
}

func (s *Simplifier) rewire(budget int, used *int) bool {
	aggs := s.g.Aggregates()
	for ; s.agg < len(aggs); s.agg, s.k = s.agg+1, -1 {
		a := aggs[s.agg]
		if a.Frozen() {
			continue
		}
		if s.k < 0 {
			s.pending = a.ExternalNeighbors()
			s.k = 0
		}
		for ; s.k < len(s.pending); s.k++ {
			s.link(a, s.pending[s.k])
			*used++
			if *used >= budget {
				s.k++
				return false
			}
		}
		a.BeginSim()
		s.pending = nil
	}
	return true
}

// link connects a to the node at index, or to that node's aggregate.
func (s *Simplifier) link(a *graph.AggregateNode, index int) {
	n, ok := s.g.Node(index)
	if !ok {
		return
	}
	var target graph.Entity = n
	if n.Owned() {
		if a.Linked[n.Owner] || n.Owner == a.Index() {
			return
		}
		target, _ = s.g.Aggregate(n.Owner)
	}
	if _, err := s.g.Connect(a, target); err == nil {
		s.result.SyntheticEdges++
	}
}
