package graph

import (
	"fmt"
	"iter"

	"gonum.org/v1/gonum/spatial/r3"
)

// CellScale converts matrix cell coordinates to simulation units.
const CellScale = 0.005

// BuildStats reports what [Build] discarded.
type BuildStats struct {
	SelfLoops  int // (i, i) pairs
	Duplicates int // pairs already seen in either orientation
}

// Build creates a graph from a square adjacency matrix of dimension n given
// as zero-based (row, col) pairs.
//
// Each node is created lazily the first time it is referenced, placed at the
// matrix cell (col, row) of that reference offset by n/2 and scaled by
// [CellScale]. Node IDs are the row/column indices. Self loops and repeated
// pairs are counted and discarded.
//
// A pair outside [0, n) returns an error wrapping ErrUnknownNode.
func Build(n int, pairs iter.Seq[[2]int]) (*Graph, BuildStats, error) {
	g := New()
	var stats BuildStats
	seen := make(map[[2]int]struct{})
	half := float64(n) / 2

	lookup := func(id int, cell r3.Vec) *SimpleNode {
		if node, ok := g.byID[id]; ok {
			return node
		}
		node, _ := g.AddNode(id, cell)
		return node
	}

	for p := range pairs {
		row, col := p[0], p[1]
		if row < 0 || row >= n || col < 0 || col >= n {
			return nil, stats, fmt.Errorf("pair (%d, %d) outside %d x %d matrix: %w", row+1, col+1, n, n, ErrUnknownNode)
		}
		if row == col {
			stats.SelfLoops++
			continue
		}
		key := [2]int{min(row, col), max(row, col)}
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		cell := r3.Scale(CellScale, r3.Vec{X: float64(col) + half, Y: float64(row) + half})
		a := lookup(row, cell)
		b := lookup(col, cell)
		if _, err := g.Connect(a, b); err != nil {
			return nil, stats, err
		}
	}
	return g, stats, nil
}
