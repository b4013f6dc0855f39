package mtx

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/matzehuels/mtxlayout/pkg/errors"
)

// DefaultCutoff is the similarity above which two items become neighbors.
const DefaultCutoff = 0.4

// ReadSimilarity turns a square similarity matrix in CSV form into an
// adjacency matrix. Row i is connected to every earlier column j whose
// value lies strictly between cutoff and 1; values of 1 mark identical
// items and are left out. Only the lower triangle is read, so rows may be
// ragged. The dimension is the number of rows.
func ReadSimilarity(r io.Reader, cutoff float64) (*Adjacency, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	adj := &Adjacency{}
	for i := 0; ; i++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "similarity row %d", i+1)
		}
		adj.N++
		for j := range min(i, len(row)) {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput,
					&errors.LineError{Line: i + 1, Err: err}, "similarity column %d", j+1)
			}
			if v > cutoff && v < 1 {
				adj.Entries = append(adj.Entries, [2]int{i, j})
			}
		}
	}
	return adj, nil
}

// ImportSimilarity reads the CSV file at path with [ReadSimilarity].
func ImportSimilarity(path string, cutoff float64) (*Adjacency, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	adj, err := ReadSimilarity(f, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return adj, nil
}

// WriteAdjacency writes adj in the format [ReadAdjacency] reads: the
// dimension, then one 1-based pair per line.
func WriteAdjacency(w io.Writer, adj *Adjacency) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", adj.N)
	for _, p := range adj.Entries {
		fmt.Fprintf(bw, "%d %d\n", p[0]+1, p[1]+1)
	}
	return bw.Flush()
}
