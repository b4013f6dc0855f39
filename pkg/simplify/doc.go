// Package simplify clusters structurally similar nodes into aggregates
// before simulation and dissolves them again afterwards.
//
// # Overview
//
// Simulating every node of a large graph is O(n²) per step. Many real
// matrices contain groups of nodes whose neighborhoods are near-identical;
// those can be simulated as one aggregate until the layout has roughly
// settled, then restored for the final refinement.
//
// # Similarity
//
// Two nodes are similar when the first has at least one neighbor, their
// neighbor counts differ by at most one, and every neighbor of either node
// is either the other node or a neighbor of the other node. In other words
// their neighborhoods are identical apart from the edge between them.
//
// # Simplification
//
// A [Simplifier] runs in two phases, each resumable after a bounded amount
// of work:
//
//  1. Scan: every unordered pair of nodes is tested in fixed index order. A
//     similar pair where neither node is claimed seeds a new aggregate at
//     the pair's midpoint; where one node is claimed the other joins the
//     claimant's aggregate; where both are claimed nothing happens, so the
//     first claim always wins.
//  2. Rewire: every aggregate is connected to the outside neighbors of its
//     members, either the neighbor itself or, if the neighbor has been
//     aggregated, the neighbor's aggregate (at most one edge per aggregate
//     pair). The aggregate then enters simulation.
//
// # Un-simplification
//
// An [Unsimplifier] dissolves aggregates in creation order a few at a time,
// restoring each member at the aggregate's position plus its recorded
// offset. When the last aggregate is gone the synthetic edges are pruned,
// leaving exactly the original adjacency.
//
//	s := simplify.New(g, cfg)
//	for !s.Advance(cfg.SimplifyQuantum) {
//	    // yield to the host loop
//	}
//	u := simplify.NewUnsimplifier(g, cfg.UnsimplifyBatch)
//	for !u.Advance() {
//	    // yield to the host loop
//	}
package simplify
