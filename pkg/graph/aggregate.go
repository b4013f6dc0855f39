package graph

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrAggregateFrozen is returned by [AggregateNode.Absorb] once the
// aggregate has entered simulation. Membership is fixed from [AggregateNode.BeginSim]
// until the aggregate is dissolved.
var ErrAggregateFrozen = errors.New("aggregate is frozen")

// ErrAlreadyOwned is returned by [AggregateNode.Absorb] when the node is
// already a member of an aggregate.
var ErrAlreadyOwned = errors.New("node already belongs to an aggregate")

// AggregateNode is a synthetic entity simulated in place of a cluster of
// structurally similar simple nodes.
//
// Members are absorbed one at a time while the aggregate is being formed.
// [AggregateNode.BeginSim] freezes the membership and activates the
// aggregate; [AggregateNode.Dissolve] reverses it, placing every member at
// the aggregate's position plus its stored offset.
type AggregateNode struct {
	Members []*SimpleNode
	Offsets []r3.Vec // Parallel to Members: member position minus centroid

	// Linked holds the indices of aggregates this one has an edge to.
	Linked map[int]bool

	index   int
	body    Body
	frozen  bool
	members map[int]struct{} // simple node indices
}

// Body implements [Entity].
func (a *AggregateNode) Body() *Body { return &a.body }

// Index implements [Entity].
func (a *AggregateNode) Index() int { return a.index }

// IsAggregate implements [Entity].
func (a *AggregateNode) IsAggregate() bool { return true }

// Frozen reports whether the aggregate has entered simulation.
func (a *AggregateNode) Frozen() bool { return a.frozen }

// MemberIDs returns the input identifiers of all members in absorption order.
func (a *AggregateNode) MemberIDs() []int {
	ids := make([]int, len(a.Members))
	for i, n := range a.Members {
		ids[i] = n.ID
	}
	return ids
}

// Contains reports whether the simple node at index is a member.
func (a *AggregateNode) Contains(index int) bool {
	_, ok := a.members[index]
	return ok
}

// Absorb adds n to the aggregate.
//
// The centroid moves to the running mean of the members' positions, the
// member's offset from the new centroid is recorded, and the mass grows by
// one up to massCap. The node is deactivated and tagged with the aggregate's
// index.
func (a *AggregateNode) Absorb(n *SimpleNode, massCap float64) error {
	if a.frozen {
		return ErrAggregateFrozen
	}
	if n.Owned() {
		return ErrAlreadyOwned
	}

	k := float64(len(a.Members))
	sum := r3.Add(r3.Scale(k, a.body.Position), n.body.Position)
	a.body.Position = r3.Scale(1/(k+1), sum)

	a.Members = append(a.Members, n)
	a.Offsets = append(a.Offsets, r3.Sub(n.body.Position, a.body.Position))
	a.members[n.index] = struct{}{}

	a.body.Mass = min(a.body.Mass+1, massCap)

	n.body.Active = false
	n.Owner = a.index
	return nil
}

// ExternalNeighbors returns the indices of simple nodes adjacent to some
// member but not members themselves, de-duplicated, in discovery order.
func (a *AggregateNode) ExternalNeighbors() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, m := range a.Members {
		for _, k := range m.Neighbors {
			if a.Contains(k) {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// BeginSim freezes the membership and makes the aggregate the active
// stand-in for its members. Offsets are re-measured against the final
// centroid.
func (a *AggregateNode) BeginSim() {
	a.frozen = true
	a.body.Active = true
	for i, m := range a.Members {
		m.body.Active = false
		a.Offsets[i] = r3.Sub(m.body.Position, a.body.Position)
	}
}

// Dissolve deactivates the aggregate and reactivates every member at the
// aggregate's current position plus the member's stored offset. Members are
// released from ownership and their convergence history is reset to the
// restored position.
func (a *AggregateNode) Dissolve() {
	a.body.Active = false
	a.body.ClearVelocity()
	for i, m := range a.Members {
		m.body.Position = r3.Add(a.body.Position, a.Offsets[i])
		m.body.Active = true
		m.body.RecordHistory()
		m.Owner = Unowned
	}
}
