// Package observability provides hooks for metrics and tracing.
//
// Library packages emit events through the registered hooks without
// depending on a metrics backend. The defaults do nothing; main registers
// real implementations (see pkg/metrics) at startup.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m := metrics.New(prometheus.DefaultRegisterer)
//	    observability.SetSimulationHooks(m)
//	    observability.SetStoreHooks(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Simulation().OnLoad(ctx, nodes, edges, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Simulation Hooks
// =============================================================================

// SimulationHooks receives events from a layout run.
type SimulationHooks interface {
	// OnLoad records a matrix or checkpoint being turned into a graph.
	OnLoad(ctx context.Context, nodes, edges int, duration time.Duration, err error)

	// OnSimplify records a completed simplification.
	OnSimplify(ctx context.Context, aggregates, absorbed int, duration time.Duration)

	// OnStep records a completed solver step.
	OnStep(ctx context.Context, dt, meanEdgeLength float64)

	// OnDecision records a policy change: anneal, unsimplify, stop or exhausted.
	OnDecision(ctx context.Context, decision string, dt, displacement float64)

	// OnSolveComplete records the end of the step loop.
	OnSolveComplete(ctx context.Context, steps int, duration time.Duration, err error)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from checkpoint stores.
type StoreHooks interface {
	// OnSave records a save attempt. written is false when a checkpoint
	// already existed.
	OnSave(ctx context.Context, backend string, written bool, size int, duration time.Duration, err error)

	// OnFetch records a load attempt. found is false for a missing checkpoint.
	OnFetch(ctx context.Context, backend string, found bool, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopSimulationHooks is a no-op implementation of SimulationHooks.
type NoopSimulationHooks struct{}

func (NoopSimulationHooks) OnLoad(context.Context, int, int, time.Duration, error)     {}
func (NoopSimulationHooks) OnSimplify(context.Context, int, int, time.Duration)        {}
func (NoopSimulationHooks) OnStep(context.Context, float64, float64)                   {}
func (NoopSimulationHooks) OnDecision(context.Context, string, float64, float64)       {}
func (NoopSimulationHooks) OnSolveComplete(context.Context, int, time.Duration, error) {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnSave(context.Context, string, bool, int, time.Duration, error) {}
func (NoopStoreHooks) OnFetch(context.Context, string, bool, time.Duration, error)     {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	simulationHooks SimulationHooks = NoopSimulationHooks{}
	storeHooks      StoreHooks      = NoopStoreHooks{}
	hooksMu         sync.RWMutex
)

// SetSimulationHooks registers custom simulation hooks.
// This should be called once at application startup before any run.
func SetSimulationHooks(h SimulationHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		simulationHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// Simulation returns the registered simulation hooks.
func Simulation() SimulationHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return simulationHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	simulationHooks = NoopSimulationHooks{}
	storeHooks = NoopStoreHooks{}
}
