package graph

import (
	"errors"
	"iter"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrSelfEdge is returned by [Graph.Connect] when both endpoints are the
	// same entity. Edges always join two distinct entities.
	ErrSelfEdge = errors.New("edge endpoints must differ")

	// ErrDuplicateNode is returned by [Graph.AddNode] when a node with the
	// same ID already exists.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrUnknownNode is returned when an entity or index does not belong to
	// the graph.
	ErrUnknownNode = errors.New("unknown node")
)

// Graph is the arena holding all simple nodes, aggregates and edges.
//
// The zero value is not usable - use [New].
type Graph struct {
	nodes      []*SimpleNode
	aggregates []*AggregateNode
	edges      []*Edge
	byID       map[int]*SimpleNode
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{byID: make(map[int]*SimpleNode)}
}

// =============================================================================
// Construction
// =============================================================================

// AddNode creates an active simple node of mass 1 at pos.
// Returns ErrDuplicateNode if id is already present.
func (g *Graph) AddNode(id int, pos r3.Vec) (*SimpleNode, error) {
	if _, exists := g.byID[id]; exists {
		return nil, ErrDuplicateNode
	}
	n := &SimpleNode{
		ID:    id,
		Owner: Unowned,
		index: len(g.nodes),
		body:  Body{Position: pos, History: pos, Mass: 1, Active: true},
	}
	g.nodes = append(g.nodes, n)
	g.byID[id] = n
	return n, nil
}

// AddAggregate creates an empty, inactive aggregate at pos with zero mass.
// It becomes active through [AggregateNode.BeginSim].
func (g *Graph) AddAggregate(pos r3.Vec) *AggregateNode {
	a := &AggregateNode{
		Linked:  make(map[int]bool),
		index:   len(g.aggregates),
		body:    Body{Position: pos, History: pos},
		members: make(map[int]struct{}),
	}
	g.aggregates = append(g.aggregates, a)
	return a
}

// Connect creates an edge between a and b and registers it with both
// endpoints.
//
// Between two simple nodes each endpoint's neighbor list gains the other's
// index. Between two aggregates each records the other in its Linked set.
// Edges with an aggregate endpoint are marked synthetic.
//
// Returns ErrSelfEdge if a and b are the same entity and ErrUnknownNode if
// either does not belong to g.
func (g *Graph) Connect(a, b Entity) (*Edge, error) {
	if !g.owns(a) || !g.owns(b) {
		return nil, ErrUnknownNode
	}
	if a == b {
		return nil, ErrSelfEdge
	}

	e := &Edge{A: a, B: b, Synthetic: a.IsAggregate() || b.IsAggregate()}
	a.Body().Edges = append(a.Body().Edges, e)
	b.Body().Edges = append(b.Body().Edges, e)
	g.edges = append(g.edges, e)

	switch {
	case !a.IsAggregate() && !b.IsAggregate():
		na, nb := a.(*SimpleNode), b.(*SimpleNode)
		na.Neighbors = append(na.Neighbors, nb.index)
		nb.Neighbors = append(nb.Neighbors, na.index)
	case a.IsAggregate() && b.IsAggregate():
		a.(*AggregateNode).Linked[b.Index()] = true
		b.(*AggregateNode).Linked[a.Index()] = true
	}
	return e, nil
}

func (g *Graph) owns(e Entity) bool {
	switch v := e.(type) {
	case *SimpleNode:
		return v != nil && v.index < len(g.nodes) && g.nodes[v.index] == v
	case *AggregateNode:
		return v != nil && v.index < len(g.aggregates) && g.aggregates[v.index] == v
	}
	return false
}

// PruneSynthetic removes every synthetic edge from the edge table and from
// the incident-edge lists of all entities, and clears aggregate links.
// It returns the number of edges removed.
func (g *Graph) PruneSynthetic() int {
	synthetic := func(e *Edge) bool { return e.Synthetic }
	before := len(g.edges)
	g.edges = slices.DeleteFunc(g.edges, synthetic)
	for _, n := range g.nodes {
		n.body.Edges = slices.DeleteFunc(n.body.Edges, synthetic)
	}
	for _, a := range g.aggregates {
		a.body.Edges = slices.DeleteFunc(a.body.Edges, synthetic)
		clear(a.Linked)
	}
	return before - len(g.edges)
}

// =============================================================================
// Queries
// =============================================================================

// NodeCount returns the number of simple nodes, active or not.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// AggregateCount returns the number of aggregates ever created.
func (g *Graph) AggregateCount() int { return len(g.aggregates) }

// EdgeCount returns the number of edges, dormant ones included.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the simple node at index.
func (g *Graph) Node(index int) (*SimpleNode, bool) {
	if index < 0 || index >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[index], true
}

// NodeByID returns the simple node with the given input identifier.
func (g *Graph) NodeByID(id int) (*SimpleNode, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Aggregate returns the aggregate at index.
func (g *Graph) Aggregate(index int) (*AggregateNode, bool) {
	if index < 0 || index >= len(g.aggregates) {
		return nil, false
	}
	return g.aggregates[index], true
}

// Nodes returns the simple node table in index order. The slice must not be
// modified.
func (g *Graph) Nodes() []*SimpleNode { return g.nodes }

// Aggregates returns the aggregate table in creation order. The slice must
// not be modified.
func (g *Graph) Aggregates() []*AggregateNode { return g.aggregates }

// Edges returns the edge table in creation order. The slice must not be
// modified.
func (g *Graph) Edges() []*Edge { return g.edges }

// ActiveNodes returns the active simple nodes in index order.
func (g *Graph) ActiveNodes() []*SimpleNode {
	var out []*SimpleNode
	for _, n := range g.nodes {
		if n.body.Active {
			out = append(out, n)
		}
	}
	return out
}

// ActiveAggregates returns the active aggregates in creation order.
func (g *Graph) ActiveAggregates() []*AggregateNode {
	var out []*AggregateNode
	for _, a := range g.aggregates {
		if a.body.Active {
			out = append(out, a)
		}
	}
	return out
}

// ActiveEntities returns all active simple nodes followed by all active
// aggregates.
func (g *Graph) ActiveEntities() []Entity {
	var out []Entity
	for _, n := range g.nodes {
		if n.body.Active {
			out = append(out, n)
		}
	}
	for _, a := range g.aggregates {
		if a.body.Active {
			out = append(out, a)
		}
	}
	return out
}

// Simplified reports whether any aggregate is active.
func (g *Graph) Simplified() bool {
	for _, a := range g.aggregates {
		if a.body.Active {
			return true
		}
	}
	return false
}

// Center returns the mean position of all active entities, or the origin
// for a graph without any.
func (g *Graph) Center() r3.Vec {
	var sum r3.Vec
	var count int
	for _, e := range g.ActiveEntities() {
		sum = r3.Add(sum, e.Body().Position)
		count++
	}
	if count == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/float64(count), sum)
}

// Bounds returns the component-wise minimum and maximum positions of the
// active entities. Both are the origin for a graph without any.
func (g *Graph) Bounds() (lo, hi r3.Vec) {
	entities := g.ActiveEntities()
	if len(entities) == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	lo = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, e := range entities {
		p := e.Body().Position
		lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return lo, hi
}

// Translate moves every simple node and aggregate by delta.
func (g *Graph) Translate(delta r3.Vec) {
	for _, n := range g.nodes {
		n.body.Position = r3.Add(n.body.Position, delta)
		n.body.History = r3.Add(n.body.History, delta)
	}
	for _, a := range g.aggregates {
		a.body.Position = r3.Add(a.body.Position, delta)
		a.body.History = r3.Add(a.body.History, delta)
	}
}

// ClearVelocities stops every entity.
func (g *Graph) ClearVelocities() {
	for _, n := range g.nodes {
		n.body.ClearVelocity()
	}
	for _, a := range g.aggregates {
		a.body.ClearVelocity()
	}
}

// =============================================================================
// Persisted View
// =============================================================================

// Placement is one active simple node as written to a solved checkpoint.
type Placement struct {
	Index    int // Node table index, referenced by persisted edges
	ID       int
	Position r3.Vec
}

// Placements yields the active simple nodes in index order.
func (g *Graph) Placements() iter.Seq[Placement] {
	return func(yield func(Placement) bool) {
		for _, n := range g.nodes {
			if !n.body.Active {
				continue
			}
			if !yield(Placement{Index: n.index, ID: n.ID, Position: n.body.Position}) {
				return
			}
		}
	}
}

// PersistedEdges yields the node index pairs of every persistable edge in
// creation order.
func (g *Graph) PersistedEdges() iter.Seq[[2]int] {
	return func(yield func([2]int) bool) {
		for _, e := range g.edges {
			if !e.Persistable() {
				continue
			}
			if !yield([2]int{e.A.Index(), e.B.Index()}) {
				return
			}
		}
	}
}

// Stats summarizes the graph's tables.
type Stats struct {
	Nodes            int `json:"nodes"`
	ActiveNodes      int `json:"active_nodes"`
	Aggregates       int `json:"aggregates"`
	ActiveAggregates int `json:"active_aggregates"`
	Edges            int `json:"edges"`
	DormantEdges     int `json:"dormant_edges"`
	SyntheticEdges   int `json:"synthetic_edges"`
}

// Stats counts entities and edges by state.
func (g *Graph) Stats() Stats {
	s := Stats{
		Nodes:      len(g.nodes),
		Aggregates: len(g.aggregates),
		Edges:      len(g.edges),
	}
	for _, n := range g.nodes {
		if n.body.Active {
			s.ActiveNodes++
		}
	}
	for _, a := range g.aggregates {
		if a.body.Active {
			s.ActiveAggregates++
		}
	}
	for _, e := range g.edges {
		if e.Dormant() {
			s.DormantEdges++
		}
		if e.Synthetic {
			s.SyntheticEdges++
		}
	}
	return s
}
