package mtx

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/matzehuels/mtxlayout/pkg/errors"
)

// maxLineSize bounds a single input line.
const maxLineSize = 1 << 20

// Adjacency is a parsed adjacency matrix with zero-based pairs.
type Adjacency struct {
	N         int      // Matrix dimension
	Entries   [][2]int // Off-diagonal (row, col) pairs, zero-based, in file order
	SelfLoops int      // Diagonal entries dropped
	Malformed int      // Lines skipped as unreadable or out of range
}

// Pairs yields the off-diagonal entries in file order.
func (a *Adjacency) Pairs() iter.Seq[[2]int] {
	return func(yield func([2]int) bool) {
		for _, p := range a.Entries {
			if !yield(p) {
				return
			}
		}
	}
}

// ReadAdjacency parses a coordinate-list adjacency matrix from r.
//
// Only a missing or unparsable dimension line is an error; it carries the
// UNPARSABLE_HEADER code. ReadAdjacency does not close r.
func ReadAdjacency(r io.Reader) (*Adjacency, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var adj *Adjacency
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "%") {
			continue
		}
		fields := strings.Fields(text)

		if adj == nil {
			n, err := strconv.Atoi(fields[0])
			if err != nil || n < 0 {
				return nil, errors.Wrap(errors.ErrCodeUnparsableHeader,
					&errors.LineError{Line: line, Err: fmt.Errorf("dimension %q", fields[0])},
					"unparsable matrix header")
			}
			adj = &Adjacency{N: n}
			continue
		}

		row, col, ok := parsePair(fields)
		if !ok || row < 1 || row > adj.N || col < 1 || col > adj.N {
			adj.Malformed++
			continue
		}
		if row == col {
			adj.SelfLoops++
			continue
		}
		adj.Entries = append(adj.Entries, [2]int{row - 1, col - 1})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	if adj == nil {
		return nil, errors.New(errors.ErrCodeUnparsableHeader, "matrix has no dimension line")
	}
	return adj, nil
}

// ImportAdjacency reads the matrix file at path with [ReadAdjacency].
// A missing file carries the FILE_NOT_FOUND code.
func ImportAdjacency(path string) (*Adjacency, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	adj, err := ReadAdjacency(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return adj, nil
}

func parsePair(fields []string) (row, col int, ok bool) {
	if len(fields) < 2 {
		return 0, 0, false
	}
	row, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, false
	}
	col, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, false
	}
	return row, col, true
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "no such file: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
