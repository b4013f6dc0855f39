package graph

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Body is the physical state shared by every entity that takes part in force
// integration.
type Body struct {
	Position  r3.Vec
	Velocity  r3.Vec
	Force     r3.Vec // Accumulator, reset after each integration
	PrevForce r3.Vec // Force integrated in the previous step, for oscillation damping
	History   r3.Vec // Position sampled at the last convergence check

	Mass   float64
	Active bool

	// Edges lists every incident edge in creation order, dormant ones included.
	Edges []*Edge
}

// RecordHistory stores the current position as the convergence sample.
func (b *Body) RecordHistory() { b.History = b.Position }

// DisplacementFromHistory returns the movement since the last recorded sample.
func (b *Body) DisplacementFromHistory() r3.Vec { return r3.Sub(b.Position, b.History) }

// ClearVelocity stops the body without touching its accumulated force.
func (b *Body) ClearVelocity() { b.Velocity = r3.Vec{} }

// Entity is anything that participates in force computation and integration.
// It is implemented by [*SimpleNode] and [*AggregateNode].
type Entity interface {
	// Body returns the mutable physical state of the entity.
	Body() *Body
	// Index returns the entity's position in its table (nodes or aggregates).
	Index() int
	// IsAggregate reports whether the entity is an [*AggregateNode].
	IsAggregate() bool
}

// Unowned is the [SimpleNode.Owner] value of a node outside any aggregate.
const Unowned = -1

// SimpleNode is a node created from one row/column of the input matrix.
//
// The zero value is not usable; nodes are created by [Graph.AddNode].
type SimpleNode struct {
	ID int // Stable identifier from the input matrix (zero-based row/column)

	// Neighbors holds the indices of simple nodes connected through an edge,
	// in edge creation order.
	Neighbors []int

	// Owner is the index of the aggregate that absorbed this node, or
	// [Unowned].
	Owner int

	index int
	body  Body
}

// Body implements [Entity].
func (n *SimpleNode) Body() *Body { return &n.body }

// Index implements [Entity].
func (n *SimpleNode) Index() int { return n.index }

// IsAggregate implements [Entity].
func (n *SimpleNode) IsAggregate() bool { return false }

// Owned reports whether the node is currently a member of an aggregate.
func (n *SimpleNode) Owned() bool { return n.Owner != Unowned }

// HasNeighbor reports whether index appears in the node's neighbor list.
func (n *SimpleNode) HasNeighbor(index int) bool {
	return slices.Contains(n.Neighbors, index)
}
