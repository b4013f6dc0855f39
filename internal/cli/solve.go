package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/metrics"
	"github.com/matzehuels/mtxlayout/pkg/mtx"
	"github.com/matzehuels/mtxlayout/pkg/observability"
	"github.com/matzehuels/mtxlayout/pkg/pipeline"
	"github.com/matzehuels/mtxlayout/pkg/server"
)

// statusRefresh is how often the spinner message follows the simulation.
const statusRefresh = 250 * time.Millisecond

// solveOpts holds the command-line flags for the solve command.
type solveOpts struct {
	configPath  string  // TOML or YAML file applied over the defaults
	name        string  // checkpoint name (default: input base name)
	noSimplify  bool    // skip aggregation before the main loop
	placement   string  // initial arrangement: matrix, cube, square, sphere
	out         string  // directory that also receives <name>.mtxs
	watch       bool    // interactive terminal view
	listen      string  // address of the HTTP status server
	maxSteps    int     // step bound, 0 disables it
	dt          float64 // initial time step
	idealLength float64 // spring rest length
	quantum     int     // work units per tick
	seed        uint64  // jitter and sphere seed
	refresh     bool    // solve even when a checkpoint exists
	store       storeFlags
}

// solveCommand creates the solve command.
func (c *CLI) solveCommand() *cobra.Command {
	var opts solveOpts

	cmd := &cobra.Command{
		Use:   "solve [matrix.mtx]",
		Short: "Relax a matrix into a 3D force-directed layout",
		Long: `Relax a matrix into a 3D force-directed layout.

The matrix is read as an undirected graph, optionally simplified by
aggregating nodes with identical neighborhoods, and simulated until the
layout settles. The result is stored as a checkpoint under the input's
base name; a second solve of the same matrix restores it unless --refresh
is given. A checkpoint (.mtxs) can be given as input to continue from its
positions.

With --watch the simulation runs in an interactive view:
space pauses, c pauses and stops all motion, s starts un-simplifying, q quits.
With --listen the same controls and live metrics are served over HTTP.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: matrixFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.simulation(cmd)
			if err != nil {
				return err
			}
			return c.runSolve(cmd.Context(), args[0], cfg, opts)
		},
	}

	opts.register(cmd)

	return cmd
}

func (o *solveOpts) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&o.configPath, "config", "c", "", "simulation config file (.toml, .yaml)")
	fs.StringVarP(&o.name, "name", "n", "", "checkpoint name (default: input base name)")
	fs.BoolVar(&o.noSimplify, "no-simplify", false, "skip simplification")
	fs.StringVar(&o.placement, "placement", "", "initial placement: matrix (default), cube, square, sphere")
	fs.StringVarP(&o.out, "out", "o", "", "also write <name>.mtxs into this directory")
	fs.BoolVarP(&o.watch, "watch", "w", false, "show an interactive view while solving")
	fs.StringVar(&o.listen, "listen", "", "serve status, controls and metrics on this address (e.g. :8080)")
	fs.IntVar(&o.maxSteps, "max-steps", config.DefaultMaxSteps, "stop after this many steps (0 = unbounded)")
	fs.Float64Var(&o.dt, "dt", config.DefaultTimeStep, "initial time step")
	fs.Float64Var(&o.idealLength, "ideal-length", config.DefaultIdealLength, "spring rest length")
	fs.IntVar(&o.quantum, "quantum", config.DefaultQuantum, "work units per tick")
	fs.Uint64Var(&o.seed, "seed", config.DefaultSeed, "random seed")
	fs.BoolVar(&o.refresh, "refresh", false, "solve even when a checkpoint exists")
	o.store.register(cmd)
}

// simulation loads the config file, if any, and applies the flags the user set.
func (o *solveOpts) simulation(cmd *cobra.Command) (config.Simulation, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, err
		}
	}

	fs := cmd.Flags()
	if fs.Changed("no-simplify") {
		cfg.Simplify = !o.noSimplify
	}
	if fs.Changed("placement") {
		cfg.Arrangement = o.placement
	}
	if fs.Changed("max-steps") {
		cfg.MaxSteps = o.maxSteps
	}
	if fs.Changed("dt") {
		cfg.TimeStep = o.dt
	}
	if fs.Changed("ideal-length") {
		cfg.IdealLength = o.idealLength
	}
	if fs.Changed("quantum") {
		cfg.Quantum = o.quantum
	}
	if fs.Changed("seed") {
		cfg.Seed = o.seed
	}
	return cfg, cfg.Validate()
}

// runSolve wires metrics, the status server and the chosen front end
// around pipeline.Runner.Execute.
func (c *CLI) runSolve(ctx context.Context, input string, cfg config.Simulation, opts solveOpts) error {
	reg := metrics.NewRegistry()
	observability.SetSimulationHooks(reg)
	observability.SetStoreHooks(reg)
	defer observability.Reset()

	logger := c.Logger
	if opts.watch {
		logger = discardLogger()
	}

	runner, err := newRunner(ctx, &opts.store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer runner.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var srv *server.Server
	if opts.listen != "" {
		ln, err := net.Listen("tcp", opts.listen)
		if err != nil {
			return fmt.Errorf("listen %s: %w", opts.listen, err)
		}
		srv = server.New(reg.Handler(), logger)
		go func() {
			if err := srv.ServeListener(ctx, ln); err != nil {
				logger.Error("status server failed", "err", err)
			}
		}()
	}

	started := make(chan *pipeline.Simulation, 1)
	popts := pipeline.Options{
		Input:   input,
		Name:    opts.name,
		Config:  cfg,
		Refresh: opts.refresh,
		Logger:  logger,
		OnStart: func(sim *pipeline.Simulation) {
			if srv != nil {
				srv.Attach(sim)
			}
			started <- sim
		},
	}

	var result *pipeline.Result
	if opts.watch {
		result, err = runWatch(ctx, cancel, started, func(ctx context.Context) (*pipeline.Result, error) {
			return runner.Execute(ctx, popts)
		})
	} else {
		result, err = executeWithSpinner(ctx, runner, popts, started)
	}
	if err != nil {
		return err
	}

	return c.reportSolve(result, opts.out, logger)
}

// executeWithSpinner runs the pipeline while a spinner follows the status.
func executeWithSpinner(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options, started <-chan *pipeline.Simulation) (*pipeline.Result, error) {
	spinner := newSpinner(ctx, "Loading "+opts.Input)
	spinner.Start()

	followDone := make(chan struct{})
	stopFollow := make(chan struct{})
	go func() {
		defer close(followDone)
		var sim *pipeline.Simulation
		ticker := time.NewTicker(statusRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-stopFollow:
				return
			case sim = <-started:
			case <-ticker.C:
				if sim != nil {
					spinner.SetMessage(statusLine(sim.Status()))
				}
			}
		}
	}()

	result, err := runner.Execute(ctx, opts)
	close(stopFollow)
	<-followDone
	if err != nil {
		spinner.StopWithError("Solve failed")
		return nil, err
	}
	spinner.Stop()
	return result, nil
}

// statusLine is the one-line progress summary shown by the spinner.
func statusLine(s pipeline.Status) string {
	if s.Phase == pipeline.PhaseSimplifying {
		return fmt.Sprintf("Simplifying %3.0f%%", s.SimplifyProgress*100)
	}
	return fmt.Sprintf("%s · step %d · dt %.4g · displacement %.4g",
		s.Phase, s.Steps, s.TimeStep, s.Displacement)
}

// reportSolve prints the outcome and writes the optional output file.
func (c *CLI) reportSolve(result *pipeline.Result, outDir string, logger *log.Logger) error {
	g := result.Graph
	switch {
	case result.Restored:
		printSuccess("Restored %s", result.Name)
	case result.Status.Phase == pipeline.PhaseExhausted:
		printWarning("Stopped %s after %d steps without settling", result.Name, result.Status.Steps)
	default:
		printSuccess("Solved %s", result.Name)
	}

	if !result.Restored {
		printStatus(result.Status, result.Stats.SolveTime)
		printKeyValue("Run", result.RunID)
		if !result.Written {
			printDetail("Kept the checkpoint already stored as %s", result.Name)
		}
	}

	next := result.Name
	if outDir != "" {
		path := filepath.Join(outDir, result.Name+pipeline.ExtCheckpoint)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		written, err := mtx.ExportSolved(path, g)
		if err != nil {
			return fmt.Errorf("write output %s: %w", path, err)
		}
		next = path
		if written {
			printFile(path)
		} else {
			logger.Warn("output exists, left unchanged", "path", path)
		}
	}

	outcome := outcomeSolved
	switch {
	case result.Restored:
		outcome = outcomeRestored
	case result.Status.Phase == pipeline.PhaseExhausted:
		outcome = outcomeExhausted
	}
	printStats(g.NodeCount(), g.EdgeCount(), outcome)
	printNewline()
	printNextStep("Render", fmt.Sprintf("%s render %s", appName, next))
	return nil
}
