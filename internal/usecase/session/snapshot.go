package session

import (
	"github.com/kailas-cloud/hintd/internal/agent"
	"github.com/kailas-cloud/hintd/internal/document"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/domain/label"
	"github.com/kailas-cloud/hintd/internal/report"
)

// Hint is one leaf hint as seen tree-wide.
type Hint struct {
	Frame   hint.ContextID
	Slot    int
	Index   int
	Label   string
	Visible bool
	Active  bool
	Kind    string
	Text    string
	URL     string
}

// Snapshot is the tree-wide state of a session after an operation settled.
type Snapshot struct {
	ID       string
	Started  bool
	Strategy label.Strategy
	Query    string
	Filter   string
	Total    int
	Complete bool
	Epoch    uint64
	Hints    []Hint
	Active   *Hint
	Events   []document.Event
	Reports  []report.Event
	Err      error
}

// snapshot walks the agents depth-first from the top, in slot order.
// Callers hold s.mu.
func (s *session) snapshot() Snapshot {
	top := s.agents[document.TopID].Snapshot()
	out := Snapshot{
		ID:       s.id,
		Started:  top.Started,
		Strategy: top.Strategy,
		Query:    top.Query,
		Filter:   top.Filter,
		Total:    top.Total,
		Complete: top.Complete,
		Epoch:    top.Epoch,
		Reports:  s.recorder.Events(),
	}

	var walk func(snap agent.Snapshot, onChain bool)
	walk = func(snap agent.Snapshot, onChain bool) {
		if snap.Err != nil && out.Err == nil {
			out.Err = snap.Err
		}
		for _, v := range snap.Slots {
			if v.Leaf == nil {
				if v.Detached {
					continue
				}
				child, ok := s.agents[v.Child]
				if !ok {
					continue
				}
				walk(child.Snapshot(), onChain && snap.State == agent.ActiveDelegated && snap.Active == v.Position)
				continue
			}
			h := Hint{
				Frame:   snap.ID,
				Slot:    v.Position,
				Index:   v.Leaf.Index,
				Label:   v.Leaf.Label,
				Visible: v.Leaf.Visible,
				Active:  onChain && snap.State == agent.ActiveLocal && snap.Active == v.Position,
				Kind:    v.Leaf.Element.Kind(),
				Text:    v.Leaf.Element.Text(),
				URL:     v.Leaf.Element.URL(),
			}
			out.Hints = append(out.Hints, h)
		}
	}
	walk(top, true)

	for i := range out.Hints {
		if out.Hints[i].Active {
			out.Active = &out.Hints[i]
			break
		}
	}
	for _, f := range s.page.Frames() {
		out.Events = append(out.Events, f.Events()...)
	}
	return out
}

// Visible returns the visible hints in global order.
func (s Snapshot) Visible() []Hint {
	var out []Hint
	for _, h := range s.Hints {
		if h.Visible {
			out = append(out, h)
		}
	}
	return out
}
