// Package pipeline drives a layout run from a matrix file to a stored
// checkpoint.
//
// The CLI, the status server and the watch view all go through this
// package so a run behaves the same whichever surface started it.
//
// # Architecture
//
// A run has four stages:
//
//  1. Load: read a raw adjacency matrix (.mtx) or a solved checkpoint (.mtxs)
//     into a [graph.Graph] and apply the initial arrangement
//  2. Simplify: collapse near-duplicate nodes into aggregates (optional)
//  3. Solve: step the force simulation until the convergence monitor stops it
//  4. Persist: write the checkpoint to a [store.Store], never overwriting
//
// Stages 2 and 3 are driven by a [Simulation], which performs one bounded
// work quantum per [Simulation.Tick] so a host loop stays responsive.
//
// # Usage
//
//	runner := pipeline.NewRunner(st, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Input:  "can_229.mtx",
//	    Config: config.Default(),
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Name, result.Status.Steps)
//
// Drive the stages yourself when the simulation must be observed:
//
//	g, info, err := runner.Load(ctx, path, cfg)
//	sim := pipeline.NewSimulation(g, cfg)
//	status, err := runner.Solve(ctx, sim)
//	written, err := runner.Persist(ctx, name, g)
package pipeline

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/errors"
	"github.com/matzehuels/mtxlayout/pkg/graph"
)

// =============================================================================
// Input Kinds
// =============================================================================

// File extensions recognized by [Runner.Load].
const (
	ExtMatrix     = ".mtx"
	ExtCheckpoint = ".mtxs"
)

// Kind is what an input file holds.
type Kind string

const (
	KindMatrix     Kind = "matrix"
	KindCheckpoint Kind = "checkpoint"
)

// KindOf classifies a path by extension.
func KindOf(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtMatrix:
		return KindMatrix, nil
	case ExtCheckpoint:
		return KindCheckpoint, nil
	}
	return "", errors.New(errors.ErrCodeUnsupported,
		"input %s: want a %s matrix or a %s checkpoint", path, ExtMatrix, ExtCheckpoint)
}

// LayoutName derives the checkpoint name from an input path: the base name
// without its extension.
func LayoutName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// =============================================================================
// Options
// =============================================================================

// Options configures [Runner.Execute].
type Options struct {
	// Input is the .mtx or .mtxs file to lay out. Required.
	Input string `json:"input"`

	// Name is the checkpoint name. Defaults to [LayoutName] of Input.
	Name string `json:"name,omitempty"`

	// Config tunes the simulation. The zero value selects [config.Default].
	Config config.Simulation `json:"config"`

	// Refresh solves again even when the store already has a checkpoint.
	// The stored checkpoint is still never overwritten.
	Refresh bool `json:"refresh,omitempty"`

	// OnStart is called with the simulation before the first tick, so
	// callers can observe or control it from another goroutine.
	OnStart func(*Simulation) `json:"-"`

	// Logger for progress. Defaults to a discard logger.
	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Calling it again has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Input == "" {
		return errors.New(errors.ErrCodeInvalidInput, "input is required")
	}
	if err := errors.ValidatePath(o.Input); err != nil {
		return err
	}
	if _, err := KindOf(o.Input); err != nil {
		return err
	}

	if o.Name == "" {
		o.Name = LayoutName(o.Input)
	}
	if err := errors.ValidateLayoutName(o.Name); err != nil {
		return err
	}

	if o.Config == (config.Simulation{}) {
		o.Config = config.Default()
	}
	if err := o.Config.Validate(); err != nil {
		return err
	}
	if _, err := graph.ParseArrangement(o.Config.Arrangement); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "arrangement")
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Result is the outcome of [Runner.Execute].
type Result struct {
	Name     string       // Checkpoint name
	RunID    string       // ID of the solve; empty when restored
	Graph    *graph.Graph // Solved or restored layout
	Status   Status       // Final simulation status; zero when restored
	Load     LoadInfo     // What the loader read
	Restored bool         // The layout came from the store instead of a solve
	Written  bool         // A new checkpoint was stored
	Stats    Stats
}

// Stats times each stage.
type Stats struct {
	LoadTime    time.Duration
	SolveTime   time.Duration // Includes simplification
	PersistTime time.Duration
}

// LoadInfo summarizes an input file.
type LoadInfo struct {
	Kind       Kind
	Dimension  int // Matrix header N; node count for checkpoints
	Pairs      int // Pairs or edges read
	SelfLoops  int // Discarded (i, i) pairs
	Duplicates int // Discarded repeated pairs
	Malformed  int // Skipped lines
	Nodes      int // Nodes in the built graph
	Edges      int // Edges in the built graph
}
