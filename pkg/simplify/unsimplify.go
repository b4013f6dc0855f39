package simplify

import "github.com/matzehuels/mtxlayout/pkg/graph"

// Unsimplifier dissolves the active aggregates of a graph a batch at a time.
type Unsimplifier struct {
	g         *graph.Graph
	batch     int
	next      int
	dissolved int
	pruned    int
	done      bool
}

// NewUnsimplifier creates an unsimplifier that dissolves up to batch
// aggregates per [Unsimplifier.Advance]. A batch below one is treated as one.
func NewUnsimplifier(g *graph.Graph, batch int) *Unsimplifier {
	return &Unsimplifier{g: g, batch: max(batch, 1)}
}

// Unsimplify dissolves every aggregate of g and prunes the synthetic edges.
// It returns the number of aggregates dissolved.
func Unsimplify(g *graph.Graph) int {
	u := NewUnsimplifier(g, g.AggregateCount())
	for !u.Advance() {
	}
	return u.Dissolved()
}

// Advance dissolves the next batch of active aggregates in creation order.
// Once none remain it prunes synthetic edges and reports true.
func (u *Unsimplifier) Advance() bool {
	if u.done {
		return true
	}

	aggs := u.g.Aggregates()
	count := 0
	for ; u.next < len(aggs) && count < u.batch; u.next++ {
		a := aggs[u.next]
		if !a.Body().Active {
			continue
		}
		a.Dissolve()
		u.dissolved++
		count++
	}
	if u.next < len(aggs) {
		return false
	}

	u.pruned = u.g.PruneSynthetic()
	u.done = true
	return true
}

// Done reports whether every aggregate has been dissolved.
func (u *Unsimplifier) Done() bool { return u.done }

// Dissolved returns the number of aggregates dissolved so far.
func (u *Unsimplifier) Dissolved() int { return u.dissolved }

// Pruned returns the number of synthetic edges removed on completion.
func (u *Unsimplifier) Pruned() int { return u.pruned }

// Remaining returns the number of aggregates not yet visited.
func (u *Unsimplifier) Remaining() int { return u.g.AggregateCount() - u.next }
