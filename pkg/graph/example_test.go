package graph_test

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/graph"
)

func ExampleBuild() {
	// A 3x3 matrix with a path 1-2-3 and one self loop (1-based in the file).
	pairs := [][2]int{{0, 1}, {1, 2}, {2, 2}}

	g, stats, err := graph.Build(3, slices.Values(pairs))
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println("nodes:", g.NodeCount())
	fmt.Println("edges:", g.EdgeCount())
	fmt.Println("self loops:", stats.SelfLoops)
	// Output:
	// nodes: 3
	// edges: 2
	// self loops: 1
}

func ExampleAggregateNode_Absorb() {
	g := graph.New()
	a, _ := g.AddNode(0, r3.Vec{X: 0})
	b, _ := g.AddNode(1, r3.Vec{X: 2})

	agg := g.AddAggregate(r3.Vec{})
	_ = agg.Absorb(a, 3)
	_ = agg.Absorb(b, 3)
	agg.BeginSim()

	fmt.Println("centroid:", agg.Body().Position.X)
	fmt.Println("mass:", agg.Body().Mass)
	fmt.Println("active nodes:", len(g.ActiveNodes()))
	// Output:
	// centroid: 1
	// mass: 2
	// active nodes: 0
}
