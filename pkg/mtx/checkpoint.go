package mtx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/errors"
	"github.com/matzehuels/mtxlayout/pkg/graph"
)

// maxPrealloc bounds slice capacity taken from an untrusted header.
const maxPrealloc = 1 << 16

// Checkpoint is the persisted view of a solved layout.
type Checkpoint struct {
	Nodes []graph.Placement // Active nodes in file order
	Edges [][2]int          // Pairs of Placement.Index values
}

// Snapshot captures the persisted view of g.
func Snapshot(g *graph.Graph) *Checkpoint {
	cp := &Checkpoint{}
	for p := range g.Placements() {
		cp.Nodes = append(cp.Nodes, p)
	}
	for e := range g.PersistedEdges() {
		cp.Edges = append(cp.Edges, e)
	}
	return cp
}

// Graph rebuilds a graph with one active node per placement and one edge per
// pair. Node indices are reassigned densely; IDs and positions are kept.
func (cp *Checkpoint) Graph() (*graph.Graph, error) {
	g := graph.New()
	byIndex := make(map[int]*graph.SimpleNode, len(cp.Nodes))
	for _, p := range cp.Nodes {
		if _, dup := byIndex[p.Index]; dup {
			return nil, errors.New(errors.ErrCodeMalformedCheckpoint, "duplicate node index %d", p.Index)
		}
		n, err := g.AddNode(p.ID, p.Position)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedCheckpoint, err, "node %d", p.ID)
		}
		byIndex[p.Index] = n
	}
	for _, e := range cp.Edges {
		a, okA := byIndex[e[0]]
		b, okB := byIndex[e[1]]
		if !okA || !okB {
			return nil, errors.Wrap(errors.ErrCodeMalformedCheckpoint, graph.ErrUnknownNode,
				"edge %d-%d", e[0], e[1])
		}
		if _, err := g.Connect(a, b); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedCheckpoint, err, "edge %d-%d", e[0], e[1])
		}
	}
	return g, nil
}

// =============================================================================
// Writing
// =============================================================================

// WriteSolved writes the persisted view of g to w. The header counts always
// match the lines that follow.
func WriteSolved(w io.Writer, g *graph.Graph) error {
	return Snapshot(g).Write(w)
}

// Write writes cp in the checkpoint line format.
func (cp *Checkpoint) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(cp.Nodes), len(cp.Edges))
	for _, p := range cp.Nodes {
		fmt.Fprintf(bw, "%d %d %s %s %s\n", p.Index, p.ID,
			FormatCoord(p.Position.X), FormatCoord(p.Position.Y), FormatCoord(p.Position.Z))
	}
	for _, e := range cp.Edges {
		fmt.Fprintf(bw, "%d %d\n", e[0], e[1])
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// FormatCoord renders v with three decimals and no leading zero, so 0.5 is
// ".500" and -0.5 is "-.500". Values that round to zero are ".000".
func FormatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	switch {
	case s == "-0.000":
		return ".000"
	case strings.HasPrefix(s, "0."):
		return s[1:]
	case strings.HasPrefix(s, "-0."):
		return "-" + s[2:]
	}
	return s
}

// ExportSolved writes the persisted view of g to a new file at path. An
// existing file is left untouched and reported as written == false.
func ExportSolved(path string, g *graph.Graph) (written bool, err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteSolved(f, g); err != nil {
		f.Close()
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", path, err)
	}
	return true, nil
}

// =============================================================================
// Reading
// =============================================================================

// ReadSolved parses a checkpoint from r. Any structural problem carries the
// MALFORMED_CHECKPOINT code and the offending line. ReadSolved does not close r.
func ReadSolved(r io.Reader) (*Checkpoint, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0

	next := func() ([]string, bool) {
		for sc.Scan() {
			line++
			if fields := strings.Fields(sc.Text()); len(fields) > 0 {
				return fields, true
			}
		}
		return nil, false
	}
	malformed := func(format string, args ...any) error {
		return errors.Wrap(errors.ErrCodeMalformedCheckpoint,
			&errors.LineError{Line: line, Err: fmt.Errorf(format, args...)}, "malformed checkpoint")
	}

	fields, ok := next()
	if !ok {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read checkpoint: %w", err)
		}
		return nil, malformed("empty checkpoint")
	}
	counts, err := parseInts(fields, 2)
	if err != nil || counts[0] < 0 || counts[1] < 0 {
		return nil, malformed("header %q", strings.Join(fields, " "))
	}
	nodeCount, edgeCount := counts[0], counts[1]

	cp := &Checkpoint{
		Nodes: make([]graph.Placement, 0, min(nodeCount, maxPrealloc)),
		Edges: make([][2]int, 0, min(edgeCount, maxPrealloc)),
	}
	known := make(map[int]bool, min(nodeCount, maxPrealloc))
	for range nodeCount {
		fields, ok := next()
		if !ok {
			return nil, malformed("expected %d nodes, got %d", nodeCount, len(cp.Nodes))
		}
		p, err := parsePlacement(fields)
		if err != nil {
			return nil, malformed("%v", err)
		}
		if known[p.Index] {
			return nil, malformed("duplicate node index %d", p.Index)
		}
		known[p.Index] = true
		cp.Nodes = append(cp.Nodes, p)
	}
	for range edgeCount {
		fields, ok := next()
		if !ok {
			return nil, malformed("expected %d edges, got %d", edgeCount, len(cp.Edges))
		}
		ends, err := parseInts(fields, 2)
		if err != nil {
			return nil, malformed("%v", err)
		}
		if !known[ends[0]] || !known[ends[1]] {
			return nil, malformed("edge %d-%d references an unknown node", ends[0], ends[1])
		}
		cp.Edges = append(cp.Edges, [2]int{ends[0], ends[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return cp, nil
}

// ImportSolved reads the checkpoint file at path with [ReadSolved].
func ImportSolved(path string) (*Checkpoint, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cp, err := ReadSolved(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cp, nil
}

func parsePlacement(fields []string) (graph.Placement, error) {
	if len(fields) < 5 {
		return graph.Placement{}, fmt.Errorf("node line needs 5 fields, got %d", len(fields))
	}
	ids, err := parseInts(fields[:2], 2)
	if err != nil {
		return graph.Placement{}, err
	}
	var xyz [3]float64
	for i := range xyz {
		if xyz[i], err = strconv.ParseFloat(fields[2+i], 64); err != nil {
			return graph.Placement{}, fmt.Errorf("coordinate %q", fields[2+i])
		}
	}
	return graph.Placement{
		Index:    ids[0],
		ID:       ids[1],
		Position: r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]},
	}, nil
}

func parseInts(fields []string, n int) ([]int, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("need %d integers, got %d fields", n, len(fields))
	}
	out := make([]int, n)
	for i := range n {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, fmt.Errorf("integer %q", fields[i])
		}
		out[i] = v
	}
	return out, nil
}
