package mtx

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/mtxlayout/pkg/errors"
)

func TestReadSimilarity(t *testing.T) {
	// Upper triangle is ignored; 1 marks an identical item.
	in := "1,0.9,0.9\n0.5, 1\n0.3,1,1,0.99\n"
	adj, err := ReadSimilarity(strings.NewReader(in), DefaultCutoff)
	if err != nil {
		t.Fatal(err)
	}
	if adj.N != 3 {
		t.Errorf("N = %d, want 3", adj.N)
	}
	want := [][2]int{{1, 0}}
	if !slices.Equal(adj.Entries, want) {
		t.Errorf("Entries = %v, want %v", adj.Entries, want)
	}

	adj, err = ReadSimilarity(strings.NewReader(in), 0.2)
	if err != nil {
		t.Fatal(err)
	}
	want = [][2]int{{1, 0}, {2, 0}}
	if !slices.Equal(adj.Entries, want) {
		t.Errorf("Entries with cutoff 0.2 = %v, want %v", adj.Entries, want)
	}
}

func TestReadSimilarityErrors(t *testing.T) {
	_, err := ReadSimilarity(strings.NewReader("1\nx,1\n"), DefaultCutoff)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}

	adj, err := ReadSimilarity(strings.NewReader(""), DefaultCutoff)
	if err != nil || adj.N != 0 || len(adj.Entries) != 0 {
		t.Errorf("empty input = %+v, %v", adj, err)
	}
}

func TestWriteAdjacency(t *testing.T) {
	adj := &Adjacency{N: 3, Entries: [][2]int{{1, 0}, {2, 1}}}
	var buf bytes.Buffer
	if err := WriteAdjacency(&buf, adj); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "3\n2 1\n3 2\n"; got != want {
		t.Errorf("WriteAdjacency() = %q, want %q", got, want)
	}

	back, err := ReadAdjacency(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if back.N != adj.N || !slices.Equal(back.Entries, adj.Entries) {
		t.Errorf("ReadAdjacency(WriteAdjacency()) = %+v", back)
	}
}
