// Package metrics exposes layout runs and checkpoint stores as Prometheus
// metrics.
//
// A [Registry] implements both observability.SimulationHooks and
// observability.StoreHooks; register it at startup and serve [Registry.Handler]:
//
//	reg := metrics.NewRegistry()
//	observability.SetSimulationHooks(reg)
//	observability.SetStoreHooks(reg)
//	mux.Handle("/metrics", reg.Handler())
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/mtxlayout/pkg/observability"
)

// Registry holds all metrics for the application.
type Registry struct {
	// Simulation metrics
	LoadsTotal        *prometheus.CounterVec
	GraphNodes        prometheus.Gauge
	GraphEdges        prometheus.Gauge
	AggregatesCreated prometheus.Counter
	NodesAbsorbed     prometheus.Counter
	SimplifyDuration  prometheus.Histogram
	StepsTotal        prometheus.Counter
	TimeStep          prometheus.Gauge
	MeanEdgeLength    prometheus.Gauge
	DecisionsTotal    *prometheus.CounterVec
	LastDisplacement  prometheus.Gauge
	SolvesTotal       *prometheus.CounterVec
	SolveDuration     prometheus.Histogram

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreBytesWritten      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initSimulationMetrics()
	r.initStoreMetrics()
	return r
}

// Prometheus returns the underlying Prometheus registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) initSimulationMetrics() {
	f := promauto.With(r.registry)

	r.LoadsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "mtxlayout_loads_total",
		Help: "Graphs loaded from matrices or checkpoints",
	}, []string{"status"})
	r.GraphNodes = f.NewGauge(prometheus.GaugeOpts{
		Name: "mtxlayout_graph_nodes",
		Help: "Nodes in the most recently loaded graph",
	})
	r.GraphEdges = f.NewGauge(prometheus.GaugeOpts{
		Name: "mtxlayout_graph_edges",
		Help: "Edges in the most recently loaded graph",
	})
	r.AggregatesCreated = f.NewCounter(prometheus.CounterOpts{
		Name: "mtxlayout_aggregates_created_total",
		Help: "Aggregate nodes created by simplification",
	})
	r.NodesAbsorbed = f.NewCounter(prometheus.CounterOpts{
		Name: "mtxlayout_nodes_absorbed_total",
		Help: "Nodes absorbed into aggregates",
	})
	r.SimplifyDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "mtxlayout_simplify_duration_seconds",
		Help:    "Time spent simplifying a graph",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	})
	r.StepsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "mtxlayout_steps_total",
		Help: "Completed solver steps",
	})
	r.TimeStep = f.NewGauge(prometheus.GaugeOpts{
		Name: "mtxlayout_time_step",
		Help: "Current simulation time step",
	})
	r.MeanEdgeLength = f.NewGauge(prometheus.GaugeOpts{
		Name: "mtxlayout_mean_edge_length",
		Help: "Mean length of live edges after the last step",
	})
	r.DecisionsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "mtxlayout_decisions_total",
		Help: "Convergence policy decisions",
	}, []string{"decision"})
	r.LastDisplacement = f.NewGauge(prometheus.GaugeOpts{
		Name: "mtxlayout_last_displacement",
		Help: "Mean displacement at the last convergence decision",
	})
	r.SolvesTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "mtxlayout_solves_total",
		Help: "Finished step loops",
	}, []string{"status"})
	r.SolveDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "mtxlayout_solve_duration_seconds",
		Help:    "Wall time of a step loop",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
	})
}

func (r *Registry) initStoreMetrics() {
	f := promauto.With(r.registry)

	r.StoreOperationsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "mtxlayout_store_operations_total",
		Help: "Checkpoint store operations",
	}, []string{"backend", "operation", "result"})
	r.StoreOperationDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mtxlayout_store_operation_duration_seconds",
		Help:    "Checkpoint store operation duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"backend", "operation"})
	r.StoreBytesWritten = f.NewCounterVec(prometheus.CounterOpts{
		Name: "mtxlayout_store_bytes_written_total",
		Help: "Uncompressed checkpoint bytes written",
	}, []string{"backend"})
}

// =============================================================================
// Simulation Hooks
// =============================================================================

func (r *Registry) OnLoad(_ context.Context, nodes, edges int, _ time.Duration, err error) {
	r.LoadsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		r.GraphNodes.Set(float64(nodes))
		r.GraphEdges.Set(float64(edges))
	}
}

func (r *Registry) OnSimplify(_ context.Context, aggregates, absorbed int, duration time.Duration) {
	r.AggregatesCreated.Add(float64(aggregates))
	r.NodesAbsorbed.Add(float64(absorbed))
	r.SimplifyDuration.Observe(duration.Seconds())
}

func (r *Registry) OnStep(_ context.Context, dt, meanEdgeLength float64) {
	r.StepsTotal.Inc()
	r.TimeStep.Set(dt)
	r.MeanEdgeLength.Set(meanEdgeLength)
}

func (r *Registry) OnDecision(_ context.Context, decision string, dt, displacement float64) {
	r.DecisionsTotal.WithLabelValues(decision).Inc()
	r.TimeStep.Set(dt)
	r.LastDisplacement.Set(displacement)
}

func (r *Registry) OnSolveComplete(_ context.Context, _ int, duration time.Duration, err error) {
	r.SolvesTotal.WithLabelValues(status(err)).Inc()
	r.SolveDuration.Observe(duration.Seconds())
}

// =============================================================================
// Store Hooks
// =============================================================================

func (r *Registry) OnSave(_ context.Context, backend string, written bool, size int, duration time.Duration, err error) {
	result := "written"
	switch {
	case err != nil:
		result = "error"
	case !written:
		result = "exists"
	default:
		r.StoreBytesWritten.WithLabelValues(backend).Add(float64(size))
	}
	r.StoreOperationsTotal.WithLabelValues(backend, "save", result).Inc()
	r.StoreOperationDuration.WithLabelValues(backend, "save").Observe(duration.Seconds())
}

func (r *Registry) OnFetch(_ context.Context, backend string, found bool, duration time.Duration, err error) {
	result := "hit"
	switch {
	case err != nil:
		result = "error"
	case !found:
		result = "miss"
	}
	r.StoreOperationsTotal.WithLabelValues(backend, "load", result).Inc()
	r.StoreOperationDuration.WithLabelValues(backend, "load").Observe(duration.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Ensure Registry implements the hook interfaces.
var (
	_ observability.SimulationHooks = (*Registry)(nil)
	_ observability.StoreHooks      = (*Registry)(nil)
)
