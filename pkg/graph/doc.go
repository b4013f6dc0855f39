// Package graph provides the entity model simulated by the force-directed
// layout solver.
//
// # Overview
//
// A [Graph] is an arena of three index-addressable tables: simple nodes
// (one per row/column of the input matrix), aggregate nodes (clusters of
// structurally similar nodes created by the simplifier) and undirected edges.
// Entities never reference each other through a scene graph; position,
// velocity and force state live directly on each entity's [Body].
//
// The package holds no force computation. It maintains structural invariants
// only:
//
//   - an edge never connects an entity to itself ([ErrSelfEdge])
//   - a simple node belongs to at most one aggregate at a time
//   - an aggregate's centroid is the running mean of its members at the
//     moment of absorption and is not recomputed afterwards
//
// # Entities
//
// Both [SimpleNode] and [AggregateNode] implement [Entity], the capability
// the solver is polymorphic over: a [Body] (position, mass, active flag,
// incident edges), a table index, and a kind discriminator.
//
//	g := graph.New()
//	a, _ := g.AddNode(0, r3.Vec{X: 0})
//	b, _ := g.AddNode(1, r3.Vec{X: 1})
//	e, _ := g.Connect(a, b)
//
// An entity is "active" while it takes part in force integration. Simple
// nodes become inactive when absorbed into an aggregate and are reactivated
// when the aggregate is dissolved. An edge with an inactive endpoint is
// dormant: it stays in the table and the solver skips it.
//
// # Building From Adjacency Data
//
// [Build] consumes a node count and a sequence of zero-based (row, col)
// pairs, creating each node lazily at the matrix cell where it is first
// referenced. Self loops and repeated pairs are counted and dropped.
// [Arrange] then re-places nodes according to an [Arrangement].
//
// # Persisted View
//
// [Graph.Placements] and [Graph.PersistedEdges] expose the active simple
// nodes and the edges between them, which is exactly what a solved
// checkpoint contains.
//
// # Concurrency
//
// Graph instances are not safe for concurrent use. The simulation driver is
// the single writer for all entity state.
package graph
