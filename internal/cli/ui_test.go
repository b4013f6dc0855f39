package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/mtxlayout/pkg/pipeline"
)

// captureOutput redirects command output for the duration of fn.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	fn()
	return buf.String()
}

func TestPrintStats(t *testing.T) {
	tests := []struct {
		outcome string
		want    string
	}{
		{outcomeSolved, "12 nodes · 30 edges · solved"},
		{outcomeRestored, "12 nodes · 30 edges · restored"},
		{outcomeExhausted, "12 nodes · 30 edges · exhausted"},
		{"matrix", "12 nodes · 30 edges · matrix"},
	}
	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			got := captureOutput(t, func() { printStats(12, 30, tt.outcome) })
			if !strings.Contains(got, tt.want) {
				t.Errorf("printStats = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestPrintStatus(t *testing.T) {
	s := pipeline.Status{
		Steps:          1200,
		Checks:         24,
		TimeStep:       0.125,
		MeanEdgeLength: 1.5,
	}
	got := captureOutput(t, func() { printStatus(s, 1500*time.Millisecond) })
	for _, want := range []string{"1200 (24 checks)", "0.125", "1.5", "1.5s"} {
		if !strings.Contains(got, want) {
			t.Errorf("printStatus missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Aggregates") {
		t.Error("aggregates shown for an unsimplified run")
	}

	s.Simplify = pipeline.Simplified{Aggregates: 3, Absorbed: 9}
	got = captureOutput(t, func() { printStatus(s, time.Second) })
	if !strings.Contains(got, "3 (9 nodes)") {
		t.Errorf("printStatus missing aggregates:\n%s", got)
	}
}

func TestPrintMatrixInfo(t *testing.T) {
	info := pipeline.LoadInfo{Kind: pipeline.KindMatrix, Dimension: 5, Pairs: 4, SelfLoops: 1, Nodes: 3}
	got := captureOutput(t, func() { printMatrixInfo(info) })
	if !strings.Contains(got, "2 rows never referenced") {
		t.Errorf("printMatrixInfo = %q", got)
	}

	info.Nodes = 5
	got = captureOutput(t, func() { printMatrixInfo(info) })
	if strings.Contains(got, "never referenced") {
		t.Errorf("printMatrixInfo reports isolated rows for a full matrix: %q", got)
	}
}
