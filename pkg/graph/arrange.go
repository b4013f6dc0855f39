package graph

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// Arrangement selects the initial placement of nodes before simulation.
type Arrangement string

// Supported arrangements.
const (
	// ArrangeMatrix keeps the matrix-cell positions from [Build] and centers
	// them on the origin.
	ArrangeMatrix Arrangement = "matrix"
	// ArrangeCube fills a cube lattice in node creation order.
	ArrangeCube Arrangement = "cube"
	// ArrangeSquare fills a planar square lattice in node creation order.
	ArrangeSquare Arrangement = "square"
	// ArrangeSphere scatters nodes randomly inside a spherical shell.
	ArrangeSphere Arrangement = "sphere"
)

// LatticeSpacing is the distance between neighbors in the cube and square
// arrangements.
const LatticeSpacing = 0.5

// Arrangements lists every supported arrangement, default first.
var Arrangements = []Arrangement{ArrangeMatrix, ArrangeCube, ArrangeSquare, ArrangeSphere}

// ParseArrangement validates an arrangement name. The empty string selects
// [ArrangeMatrix].
func ParseArrangement(s string) (Arrangement, error) {
	if s == "" {
		return ArrangeMatrix, nil
	}
	for _, a := range Arrangements {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown arrangement %q", s)
}

// Arrange re-places every simple node of g. The rng is only consulted by
// [ArrangeSphere]. History samples follow the new positions.
func Arrange(g *Graph, a Arrangement, rng *rand.Rand) error {
	nodes := g.nodes
	count := len(nodes)
	if count == 0 {
		return nil
	}

	switch a {
	case ArrangeMatrix, "":
		var sum r3.Vec
		for _, n := range nodes {
			sum = r3.Add(sum, n.body.Position)
		}
		mean := r3.Scale(1/float64(count), sum)
		for _, n := range nodes {
			n.body.Position = r3.Sub(n.body.Position, mean)
		}
	case ArrangeCube:
		dim := max(int(math.Cbrt(float64(count))), 1)
		origin := -float64(dim) * LatticeSpacing
		for j, n := range nodes {
			n.body.Position = r3.Vec{
				X: origin + float64(j%dim)*LatticeSpacing,
				Y: origin + float64((j/dim)%dim)*LatticeSpacing,
				Z: origin + float64((j/(dim*dim))%dim)*LatticeSpacing,
			}
		}
	case ArrangeSquare:
		dim := max(int(math.Sqrt(float64(count))), 1)
		origin := -float64(dim) * LatticeSpacing
		for j, n := range nodes {
			n.body.Position = r3.Vec{
				X: origin + float64(j%dim)*LatticeSpacing,
				Y: origin + float64((j/dim)%dim)*LatticeSpacing,
			}
		}
	case ArrangeSphere:
		dim := float64(int(math.Cbrt(float64(count))))
		for _, n := range nodes {
			radius := 0.25 + rng.Float64()*(0.75+dim)
			n.body.Position = r3.Scale(radius, RandomUnit(rng))
		}
	default:
		return fmt.Errorf("unknown arrangement %q", a)
	}

	for _, n := range nodes {
		n.body.RecordHistory()
	}
	return nil
}

// RandomUnit returns a uniformly distributed direction on the unit sphere.
func RandomUnit(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		if norm := r3.Norm(v); norm > 1e-9 {
			return r3.Scale(1/norm, v)
		}
	}
}
