package cli

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/graph"
	"github.com/matzehuels/mtxlayout/pkg/pipeline"
)

func testSimulation(t *testing.T) *pipeline.Simulation {
	t.Helper()
	pairs := func(yield func([2]int) bool) {
		for _, p := range [][2]int{{0, 1}, {1, 2}} {
			if !yield(p) {
				return
			}
		}
	}
	g, _, err := graph.Build(3, pairs)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Simplify = false
	return pipeline.NewSimulation(g, cfg)
}

func press(m tea.Model, r rune) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func TestWatchModelControls(t *testing.T) {
	sim := testSimulation(t)
	var m tea.Model = newWatchModel("test", nil, nil, nil)

	if !strings.Contains(m.View(), "Loading") {
		t.Errorf("view before start = %q", m.View())
	}

	// Keys before the simulation exists are ignored.
	m, _ = press(m, 'p')
	m, _ = m.Update(simStartedMsg{sim: sim})
	sim.Tick(context.Background())
	m, _ = m.Update(watchTickMsg{})

	view := m.View()
	for _, want := range []string{"Phase", "solving", "Steps", "1 (0 checks)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m, _ = press(m, 'p')
	if !sim.Paused() {
		t.Error("p should pause")
	}
	if !strings.Contains(m.View(), "(paused)") {
		t.Error("view does not show the pause")
	}
	m, _ = press(m, 'p')
	if sim.Paused() {
		t.Error("second p should resume")
	}

	m, _ = press(m, 'c')
	if !sim.Paused() {
		t.Error("c should pause")
	}

	m, _ = press(m, 's')
	if got := m.(watchModel).notice; got != "nothing to un-simplify" {
		t.Errorf("notice = %q", got)
	}

	m, cmd := press(m, 'q')
	if !m.(watchModel).quit || cmd == nil {
		t.Error("q should quit")
	}
}

func TestWatchModelFinish(t *testing.T) {
	var m tea.Model = newWatchModel("test", nil, nil, nil)
	res := &pipeline.Result{Status: pipeline.Status{Phase: pipeline.PhaseSettled, Steps: 99}}

	m, cmd := m.Update(solveDoneMsg{result: res})
	wm := m.(watchModel)
	if wm.finished == nil || wm.finished.result != res || cmd == nil {
		t.Fatalf("finish not recorded: %+v", wm.finished)
	}
	if !strings.Contains(wm.View(), "settled") || strings.Contains(wm.View(), "running") {
		t.Errorf("final view = %q", wm.View())
	}
}

func TestWatchModelWaits(t *testing.T) {
	sim := testSimulation(t)
	started := make(chan *pipeline.Simulation, 1)
	done := make(chan struct{})
	outcome := solveDoneMsg{err: context.Canceled}

	started <- sim
	if msg, ok := waitForSim(started, done)().(simStartedMsg); !ok || msg.sim != sim {
		t.Errorf("waitForSim = %#v", msg)
	}

	close(done)
	if msg := waitForSim(started, done)(); msg != nil {
		t.Errorf("waitForSim after done = %#v, want nil", msg)
	}
	if msg, ok := waitForDone(done, &outcome)().(solveDoneMsg); !ok || msg.err != context.Canceled {
		t.Errorf("waitForDone = %#v", msg)
	}
}
