// Package cli implements the mtxlayout command-line interface.
//
// This package provides commands for solving matrix layouts, inspecting
// matrix and checkpoint files, rendering solved layouts and managing the
// checkpoint store. The CLI is built using cobra and logs through the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - solve: Simplify and relax a matrix into a 3D layout, then store it
//   - inspect: Summarize a matrix or checkpoint file
//   - render: Draw a checkpoint as DOT or SVG
//   - convert: Turn a CSV similarity matrix into a matrix file
//   - store: Locate, list and clear stored checkpoints
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// reports every convergence decision during a solve.
//
// # Example
//
//	import "github.com/matzehuels/mtxlayout/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// discardLogger swallows everything; the watch view owns the terminal.
func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Rendered can_229.svg (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
