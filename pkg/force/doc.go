// Package force implements the force-directed physics that positions the
// entities of a [graph.Graph].
//
// # Forces
//
// Two contributions act on every active entity:
//
//   - Repulsion between every pair of active entities, with magnitude
//     idealLen² / max(distance, [MinDistance]) along the line joining them.
//     Coincident entities receive a random jitter of length [JitterMagnitude].
//   - A spring force along every non-dormant incident edge, with magnitude
//     min(distance² / idealLen, [MaxSpring]) pulling the endpoints together.
//
// Pairwise repulsion is accumulated on both entities in one evaluation, equal
// and opposite.
//
// # Integration
//
// [ApplyForce] turns the accumulated force into velocity, guarding against
// numerical noise, force spikes and step-to-step oscillation, then clears the
// accumulator. [UpdatePosition] moves the entity and halves its velocity,
// which over-damps the system in exchange for stability.
//
// # Time Slicing
//
// The all-pairs repulsion is O(n²) per step. A [Solver] performs a step in
// bounded slices: [Solver.Advance] evaluates at most a budget of pairs and
// edges, records where it stopped in a [Cursor], and resumes from there on
// the next call. Within a step all active simple nodes are processed before
// active aggregates, and positions are only updated once every force has been
// integrated.
//
//	s := force.NewSolver(cfg, rng)
//	for {
//	    progress, done := s.Advance(g, dt, cfg.Quantum)
//	    if done {
//	        break
//	    }
//	    // yield to the host loop
//	}
//
// [graph.Graph]: github.com/matzehuels/mtxlayout/pkg/graph
package force
