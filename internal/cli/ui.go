package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/mtxlayout/pkg/pipeline"
)

// stdout receives all command output except logs and the spinner.
var stdout io.Writer = os.Stdout

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // primary
	colorGreen  = lipgloss.Color("35")  // success, restored layouts
	colorYellow = lipgloss.Color("220") // warnings, exhausted runs
	colorRed    = lipgloss.Color("167") // errors
	colorBlue   = lipgloss.Color("75")  // suggested commands
	colorWhite  = lipgloss.Color("255") // values
	colorGray   = lipgloss.Color("245") // labels
	colorDim    = lipgloss.Color("240") // muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle for the watch view header.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for notices.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleDim for secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warnings.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleLabel       = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)

	// Outcome tags on the stats line.
	styleOutcome = map[string]lipgloss.Style{
		outcomeRestored:  lipgloss.NewStyle().Foreground(colorGreen),
		outcomeExhausted: lipgloss.NewStyle().Foreground(colorYellow),
	}
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// Outcome tags for printStats. Anything else is shown dimmed.
const (
	outcomeSolved    = "solved"
	outcomeRestored  = "restored"
	outcomeExhausted = "exhausted"
)

// =============================================================================
// Messages
// =============================================================================

func printLine(icon lipgloss.Style, glyph, msg string) {
	fmt.Fprintln(stdout, icon.Render(glyph)+" "+msg)
}

func printSuccess(format string, args ...any) {
	printLine(styleIconSuccess, iconSuccess, fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	printLine(styleIconError, iconError, fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	printLine(styleIconWarning, iconWarning, StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	printLine(styleIconInfo, iconInfo, fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line under the previous message.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile announces a file that was written.
func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleLabel.Render(key)+" "+StyleValue.Render(value))
}

func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

func printNewline() {
	fmt.Fprintln(stdout)
}

// =============================================================================
// Summaries
// =============================================================================

// printStats prints the node and edge counts and an outcome tag on one line.
func printStats(nodeCount, edgeCount int, outcome string) {
	tag, ok := styleOutcome[outcome]
	if !ok {
		tag = StyleDim
	}
	parts := []string{
		StyleDim.Render(fmt.Sprintf("%d nodes", nodeCount)),
		StyleDim.Render(fmt.Sprintf("%d edges", edgeCount)),
		tag.Render(outcome),
	}
	fmt.Fprintln(stdout, "  "+strings.Join(parts, StyleDim.Render(" · ")))
}

// printStatus prints the figures of a finished solve.
func printStatus(s pipeline.Status, solveTime time.Duration) {
	printKeyValue("Steps", fmt.Sprintf("%d (%d checks)", s.Steps, s.Checks))
	printKeyValue("Time step", fmt.Sprintf("%.4g", s.TimeStep))
	printKeyValue("Edge length", fmt.Sprintf("%.4g", s.MeanEdgeLength))
	if s.Simplify.Aggregates > 0 {
		printKeyValue("Aggregates", fmt.Sprintf("%d (%d nodes)", s.Simplify.Aggregates, s.Simplify.Absorbed))
	}
	printKeyValue("Solve time", solveTime.Round(time.Millisecond).String())
}

// printMatrixInfo prints what the loader read from a matrix file.
func printMatrixInfo(info pipeline.LoadInfo) {
	printKeyValue("Dimension", fmt.Sprintf("%d", info.Dimension))
	printKeyValue("Pairs", fmt.Sprintf("%d", info.Pairs))
	printKeyValue("Self loops", fmt.Sprintf("%d", info.SelfLoops))
	printKeyValue("Duplicates", fmt.Sprintf("%d", info.Duplicates))
	printKeyValue("Malformed", fmt.Sprintf("%d", info.Malformed))
	if isolated := info.Dimension - info.Nodes; isolated > 0 {
		printDetail("%d rows never referenced; they get no node", isolated)
	}
}
