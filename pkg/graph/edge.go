package graph

import "gonum.org/v1/gonum/spatial/r3"

// Edge is an undirected connection between two entities. Either endpoint may
// be a simple node or an aggregate.
//
// Edges are never removed when an endpoint goes inactive; they become
// dormant instead. Synthetic edges created by the simplifier are removed by
// [Graph.PruneSynthetic] once every aggregate has been dissolved.
type Edge struct {
	A, B Entity

	// Synthetic is set on edges with an aggregate endpoint.
	Synthetic bool
}

// Dormant reports whether either endpoint is inactive.
func (e *Edge) Dormant() bool {
	return !e.A.Body().Active || !e.B.Body().Active
}

// Touches reports whether x is one of the edge's endpoints.
func (e *Edge) Touches(x Entity) bool { return e.A == x || e.B == x }

// Other returns the endpoint opposite x, or nil if x is not an endpoint.
func (e *Edge) Other(x Entity) Entity {
	switch x {
	case e.A:
		return e.B
	case e.B:
		return e.A
	}
	return nil
}

// Vector returns A's position minus B's position.
func (e *Edge) Vector() r3.Vec {
	return r3.Sub(e.A.Body().Position, e.B.Body().Position)
}

// Length returns the distance between the endpoints.
func (e *Edge) Length() float64 { return r3.Norm(e.Vector()) }

// Persistable reports whether the edge belongs in a solved checkpoint: both
// endpoints are active simple nodes.
func (e *Edge) Persistable() bool {
	return !e.Dormant() && !e.A.IsAggregate() && !e.B.IsAggregate()
}
