// Package pkg provides the core libraries for mtxlayout, a force-directed 3D
// layout engine for sparse adjacency matrices.
//
// # Overview
//
// mtxlayout reads a symmetric adjacency matrix, simplifies its graph by
// folding low-degree nodes into aggregates, relaxes the result with a
// time-sliced spring/repulsion simulation, restores the full graph and
// relaxes again until the layout settles. The settled positions are written
// as a checkpoint that can be restored, inspected or rendered.
//
// The typical data flow:
//
//	.mtx file (or similarity CSV via [mtx.ReadSimilarity])
//	         ↓
//	    [mtx] package (parse adjacency pairs)
//	         ↓
//	    [graph] package (arena of nodes, edges and aggregates)
//	         ↓
//	    [simplify] package (degree-one and star-shape folding)
//	         ↓
//	    [force] + [converge] packages (sliced physics + settle decisions)
//	         ↓
//	    .mtxs checkpoint, SVG/DOT via [render]
//
// # Quick Start
//
// Solve a matrix, keeping checkpoints in the user cache directory:
//
//	import (
//	    "context"
//
//	    "github.com/matzehuels/mtxlayout/pkg/pipeline"
//	    "github.com/matzehuels/mtxlayout/pkg/store"
//	)
//
//	s, _ := store.Open(ctx, store.Options{Backend: store.BackendFile})
//	runner := pipeline.NewRunner(s, logger)
//	defer runner.Close()
//
//	res, err := runner.Execute(ctx, pipeline.Options{Input: "web.mtx"})
//
// # Main Packages
//
// ## Layout
//
// [graph] - Arena-backed graph of simple nodes, aggregates and edges, with
// initial placement arrangements.
//
// [simplify] - Structural simplification and its staged reversal.
//
// [force] - Pairwise repulsion and edge springs, integrated in bounded
// slices by a resumable [force.Solver].
//
// [converge] - Watches displacement between checks and decides when to
// shrink the time step, un-simplify or stop.
//
// [pipeline] - Ties the above into a [pipeline.Simulation] that can be
// paused, resumed and observed, and a [pipeline.Runner] that loads inputs
// and persists results.
//
// ## Formats and Output
//
// [mtx] - Matrix, similarity CSV, checkpoint and JSON formats.
//
// [render] - Projects a checkpoint onto an axis plane and draws it with
// Graphviz.
//
// ## Infrastructure
//
// [store] - Checkpoint storage on the filesystem, Redis, MongoDB or S3.
//
// [config] - Simulation parameters loaded from TOML or YAML and validated.
//
// [observability], [metrics], [server] - Hooks, Prometheus collectors and
// the HTTP status endpoint for a running simulation.
//
// [errors] - Coded errors shared by every package.
//
// [buildinfo] - Version information stamped at build time.
package pkg
