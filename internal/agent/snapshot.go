package agent

import (
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/domain/label"
)

// ActiveState is the local view of the active pointer.
type ActiveState string

// Active pointer states.
const (
	Inactive        ActiveState = "inactive"
	ActiveLocal     ActiveState = "local"
	ActiveDelegated ActiveState = "delegated"
)

// SlotView is a read-only copy of one slot.
type SlotView struct {
	Position int
	Leaf     *hint.Leaf
	Child    hint.ContextID
	Detached bool
}

// Snapshot is a consistent copy of an agent's state.
type Snapshot struct {
	ID       hint.ContextID
	Parent   hint.ContextID
	Epoch    uint64
	Started  bool
	Strategy label.Strategy
	Query    string
	Filter   string
	Complete bool
	Total    int
	Next     int
	Active   int
	State    ActiveState
	Slots    []SlotView
	Err      error
}

// Snapshot copies the agent state. Leaves are copied by value.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		ID:     a.id,
		Parent: a.parent,
		Epoch:  a.epoch,
		Active: -1,
		State:  Inactive,
	}
	s := a.state
	if s == nil {
		return snap
	}

	snap.Started = true
	snap.Strategy = s.strategy
	snap.Query = s.query
	snap.Filter = s.filter
	snap.Complete = s.complete
	snap.Total = s.total
	snap.Next = s.next
	snap.Active = s.active
	snap.Err = s.err
	snap.Slots = make([]SlotView, len(s.slots))
	for i, sl := range s.slots {
		v := SlotView{Position: i}
		switch sl := sl.(type) {
		case *hint.Leaf:
			leaf := *sl
			v.Leaf = &leaf
		case *hint.Handle:
			v.Child = sl.Child
			v.Detached = sl.Detached
		}
		snap.Slots[i] = v
	}

	if s.active >= 0 {
		if snap.Slots[s.active].Leaf != nil {
			snap.State = ActiveLocal
		} else {
			snap.State = ActiveDelegated
		}
	}
	return snap
}

// Leaves returns the leaf views in slot order.
func (s Snapshot) Leaves() []*hint.Leaf {
	var out []*hint.Leaf
	for _, v := range s.Slots {
		if v.Leaf != nil {
			out = append(out, v.Leaf)
		}
	}
	return out
}
