package force

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/graph"
)

// Force tuning constants.
const (
	// MinDistance bounds the distance used for repulsion so near-coincident
	// entities do not receive unbounded forces.
	MinDistance = 0.05

	// JitterMagnitude is the length of the random force separating
	// coincident entities.
	JitterMagnitude = 0.5

	// MaxSpring caps the magnitude of a spring force.
	MaxSpring = 200.0

	// NoiseFloor2 is the squared force magnitude below which a force is
	// treated as zero.
	NoiseFloor2 = 0.01

	// SpikeThreshold2 is the squared force magnitude above which a force is
	// scaled by SpikeScale.
	SpikeThreshold2 = 200.0

	// SpikeScale damps forces above SpikeThreshold2.
	SpikeScale = 0.1

	// Oscillation2 is the squared length of the sum of the current and
	// previous unit forces below which the entity is flip-flopping.
	Oscillation2 = 0.01

	// VelocityDecay is applied to the velocity after each position update.
	VelocityDecay = 0.5
)

// Repulse returns the repulsive force b exerts on a. The force on b is the
// negation. When a and b coincide the result is a random vector of length
// [JitterMagnitude] drawn from rng.
func Repulse(a, b r3.Vec, idealLen2 float64, rng *rand.Rand) r3.Vec {
	dir := r3.Sub(a, b)
	dist := r3.Norm(dir)
	if dist == 0 {
		return r3.Scale(JitterMagnitude, graph.RandomUnit(rng))
	}
	return r3.Scale(idealLen2/max(dist, MinDistance)/dist, dir)
}

// Spring returns the force edge e applies to its endpoint on. It is zero when
// the edge is dormant, when on is not an endpoint, or when the endpoints
// coincide.
func Spring(e *graph.Edge, on graph.Entity, idealLen float64) r3.Vec {
	if e.Dormant() {
		return r3.Vec{}
	}
	var sign float64
	switch on {
	case e.A:
		sign = -1
	case e.B:
		sign = 1
	default:
		return r3.Vec{}
	}

	dir := e.Vector()
	d2 := r3.Norm2(dir)
	if d2 == 0 {
		return r3.Vec{}
	}
	mag := min(d2/idealLen, MaxSpring)
	return r3.Scale(sign*mag/math.Sqrt(d2), dir)
}

// ApplyForce integrates the accumulated force of b into its velocity and
// clears the accumulator.
//
// Forces with squared magnitude below [NoiseFloor2] are dropped and those
// above [SpikeThreshold2] are scaled by [SpikeScale]. If the force points
// nearly opposite the previous step's force the velocity is zeroed and the
// force halved before integration.
func ApplyForce(b *graph.Body, cfg config.Simulation, dt float64) {
	f := b.Force
	sq := r3.Norm2(f)
	if sq < NoiseFloor2 {
		f = r3.Vec{}
	}
	if sq > SpikeThreshold2 {
		f = r3.Scale(SpikeScale, f)
	}

	if r3.Norm2(r3.Add(unit(f), unit(b.PrevForce))) < Oscillation2 {
		b.Velocity = r3.Vec{}
		f = r3.Scale(0.5, f)
	}

	mass := b.Mass
	if mass <= 0 {
		mass = 1
	}
	b.Velocity = r3.Add(b.Velocity, r3.Scale(cfg.ForceScale*dt/mass, f))
	b.PrevForce = f
	b.Force = r3.Vec{}
}

// UpdatePosition moves b by its velocity over frameTime, then decays the
// velocity by [VelocityDecay].
func UpdatePosition(b *graph.Body, frameTime float64) {
	b.Position = r3.Add(b.Position, r3.Scale(frameTime, b.Velocity))
	b.Velocity = r3.Scale(VelocityDecay, b.Velocity)
}

// unit returns v scaled to length one, or the zero vector for zero v.
func unit(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
