package mtx

import (
	"encoding/json"
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/graph"
)

type document struct {
	Nodes []node `json:"nodes"`
	Edges []edge `json:"edges"`
}

type node struct {
	Index int        `json:"index"`
	ID    int        `json:"id"`
	Pos   [3]float64 `json:"pos"`
}

type edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// WriteJSON encodes cp as a JSON document:
//
//	{
//	  "nodes": [{"index": 0, "id": 0, "pos": [0.5, -1.25, 0]}],
//	  "edges": [{"from": 0, "to": 1}]
//	}
//
// Coordinates are written at full precision.
func WriteJSON(w io.Writer, cp *Checkpoint) error {
	out := document{
		Nodes: make([]node, len(cp.Nodes)),
		Edges: make([]edge, len(cp.Edges)),
	}
	for i, p := range cp.Nodes {
		out.Nodes[i] = node{Index: p.Index, ID: p.ID, Pos: [3]float64{p.Position.X, p.Position.Y, p.Position.Z}}
	}
	for i, e := range cp.Edges {
		out.Edges[i] = edge{From: e[0], To: e[1]}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadJSON decodes a document written by [WriteJSON]. Edge references are
// checked when the checkpoint is turned into a graph.
func ReadJSON(r io.Reader) (*Checkpoint, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	cp := &Checkpoint{
		Nodes: make([]graph.Placement, len(doc.Nodes)),
		Edges: make([][2]int, len(doc.Edges)),
	}
	for i, n := range doc.Nodes {
		cp.Nodes[i] = graph.Placement{Index: n.Index, ID: n.ID, Position: r3.Vec{X: n.Pos[0], Y: n.Pos[1], Z: n.Pos[2]}}
	}
	for i, e := range doc.Edges {
		cp.Edges[i] = [2]int{e.From, e.To}
	}
	return cp, nil
}
