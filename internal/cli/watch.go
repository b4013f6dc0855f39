package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/mtxlayout/pkg/pipeline"
)

// watchRefresh is how often the view polls the simulation status.
const watchRefresh = 100 * time.Millisecond

var (
	watchBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	watchLabelStyle = lipgloss.NewStyle().Foreground(colorGray).Width(14)
)

// =============================================================================
// Keys
// =============================================================================

type watchKeys struct {
	Pause      key.Binding
	Freeze     key.Binding
	Unsimplify key.Binding
	Quit       key.Binding
}

var defaultWatchKeys = watchKeys{
	Pause: key.NewBinding(
		key.WithKeys(" ", "space", "p"),
		key.WithHelp("space", "pause/resume"),
	),
	Freeze: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "pause and stop motion"),
	),
	Unsimplify: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "un-simplify now"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

func (k watchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Freeze, k.Unsimplify, k.Quit}
}

func (k watchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// =============================================================================
// Model
// =============================================================================

type (
	simStartedMsg struct{ sim *pipeline.Simulation }
	solveDoneMsg  struct {
		result *pipeline.Result
		err    error
	}
	watchTickMsg time.Time
)

// watchModel follows a running simulation and forwards key presses to it.
type watchModel struct {
	title    string
	sim      *pipeline.Simulation
	started  <-chan *pipeline.Simulation
	done     <-chan struct{}
	outcome  *solveDoneMsg // valid once done is closed
	status   pipeline.Status
	notice   string
	finished *solveDoneMsg
	quit     bool

	keys     watchKeys
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
}

func newWatchModel(title string, started <-chan *pipeline.Simulation, done <-chan struct{}, outcome *solveDoneMsg) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleIconSpinner
	return watchModel{
		title:    title,
		started:  started,
		done:     done,
		outcome:  outcome,
		keys:     defaultWatchKeys,
		help:     help.New(),
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForSim(m.started, m.done), waitForDone(m.done, m.outcome), watchTick())
}

// waitForSim delivers the simulation once it starts. A restored layout
// never starts one, so it also gives up when the solve is done.
func waitForSim(started <-chan *pipeline.Simulation, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case sim := <-started:
			return simStartedMsg{sim: sim}
		case <-done:
			return nil
		}
	}
}

func waitForDone(done <-chan struct{}, outcome *solveDoneMsg) tea.Cmd {
	return func() tea.Msg {
		<-done
		return *outcome
	}
}

func watchTick() tea.Cmd {
	return tea.Tick(watchRefresh, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case simStartedMsg:
		m.sim = msg.sim
		m.status = msg.sim.Status()
		return m, nil

	case solveDoneMsg:
		m.finished = &msg
		if msg.result != nil {
			m.status = msg.result.Status
		}
		return m, tea.Quit

	case watchTickMsg:
		if m.sim != nil {
			m.status = m.sim.Status()
		}
		return m, watchTick()

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.progress.Width = min(max(msg.Width-20, 10), 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quit = true
		return m, tea.Quit
	}
	if m.sim == nil {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Pause):
		if m.sim.TogglePause() {
			m.notice = "paused"
		} else {
			m.notice = "resumed"
		}
	case key.Matches(msg, m.keys.Freeze):
		m.sim.Pause(true)
		m.notice = "paused, velocities cleared"
	case key.Matches(msg, m.keys.Unsimplify):
		if m.sim.RequestUnsimplify() {
			m.notice = "un-simplifying"
		} else {
			m.notice = "nothing to un-simplify"
		}
	}
	m.status = m.sim.Status()
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.title))
	b.WriteString("\n\n")

	if m.sim == nil && m.finished == nil {
		b.WriteString(fmt.Sprintf("%s Loading...\n", m.spinner.View()))
		return b.String()
	}

	s := m.status
	state := string(s.Phase)
	if s.Paused {
		state += " (paused)"
	}
	var rows []string
	row := func(label, value string) {
		rows = append(rows, watchLabelStyle.Render(label)+StyleValue.Render(value))
	}
	row("Phase", state)
	if s.Phase == pipeline.PhaseSimplifying {
		rows = append(rows, watchLabelStyle.Render("Simplified")+m.progress.ViewAs(s.SimplifyProgress))
	}
	row("Steps", fmt.Sprintf("%d (%d checks)", s.Steps, s.Checks))
	row("Time step", fmt.Sprintf("%.4g", s.TimeStep))
	row("Displacement", fmt.Sprintf("%.4g", s.Displacement))
	row("Edge length", fmt.Sprintf("%.4g", s.MeanEdgeLength))
	row("Nodes", fmt.Sprintf("%d active of %d", s.Graph.ActiveNodes, s.Graph.Nodes))
	row("Aggregates", fmt.Sprintf("%d active of %d", s.Graph.ActiveAggregates, s.Graph.Aggregates))
	row("Edges", fmt.Sprintf("%d (%d dormant)", s.Graph.Edges, s.Graph.DormantEdges))
	if s.LastDecision != "" {
		row("Last decision", s.LastDecision)
	}
	row("Elapsed", time.Duration(s.Elapsed).Round(time.Second).String())

	b.WriteString(watchBoxStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(StyleHighlight.Render(m.notice))
		b.WriteString("\n")
	}
	if m.finished == nil {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), StyleDim.Render("running")))
	}
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// =============================================================================
// Runner
// =============================================================================

// runWatch runs execute in the background while the watch view owns the
// terminal. Quitting the view cancels the solve.
func runWatch(ctx context.Context, cancel context.CancelFunc, started <-chan *pipeline.Simulation,
	execute func(context.Context) (*pipeline.Result, error)) (*pipeline.Result, error) {
	var outcome solveDoneMsg
	done := make(chan struct{})
	go func() {
		defer close(done)
		outcome.result, outcome.err = execute(ctx)
	}()

	model := newWatchModel("mtxlayout solve", started, done, &outcome)
	_, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	interrupted := ctx.Err() != nil

	// Quitting early leaves the solve running: stop it and wait.
	cancel()
	<-done
	if err != nil && !interrupted && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, fmt.Errorf("watch view: %w", err)
	}
	return outcome.result, outcome.err
}
