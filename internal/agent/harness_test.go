package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/bus"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
)

// --- Fakes ---

type fakeElement struct {
	text   string
	url    string
	hidden bool
}

func (e *fakeElement) Kind() string { return "A" }
func (e *fakeElement) Text() string { return e.text }
func (e *fakeElement) URL() string  { return e.url }

type fakeFrame struct {
	candidates []hint.Candidate
	err        error

	mu        sync.Mutex
	activated []string
}

func (f *fakeFrame) Discover(string) ([]hint.Candidate, error) {
	return f.candidates, f.err
}

func (f *fakeFrame) Visible(el hint.Element) bool {
	return !el.(*fakeElement).hidden
}

func (f *fakeFrame) Activate(_ context.Context, el hint.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, "mousedown:"+el.Text(), "click:"+el.Text(), "mouseup:"+el.Text())
	return nil
}

func (f *fakeFrame) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.activated...)
}

type recordingSink struct {
	mu       sync.Mutex
	created  []int
	selected []hint.Report
	followed []hint.Report
}

func (s *recordingSink) Created(_ context.Context, _ hint.ContextID, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, total)
}

func (s *recordingSink) Selected(_ context.Context, r hint.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append(s.selected, r)
}

func (s *recordingSink) Followed(_ context.Context, r hint.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followed = append(s.followed, r)
}

func (s *recordingSink) lastSelected() (hint.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.selected) == 0 {
		return hint.Report{}, false
	}
	return s.selected[len(s.selected)-1], true
}

// --- Tree harness ---

// node describes one context: items are either leaf texts or nested nodes.
// A leaf text starting with "~" is invisible at discovery time.
type node struct {
	items []any
}

func ctxNode(items ...any) node { return node{items: items} }

type harness struct {
	t      *testing.T
	bus    *bus.Local
	sink   *recordingSink
	agents map[hint.ContextID]*Agent
	frames map[hint.ContextID]*fakeFrame
	order  []hint.ContextID
}

func newHarness(t *testing.T, root node, opts ...bus.Option) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		bus:    bus.NewLocal(zap.NewNop(), opts...),
		sink:   &recordingSink{},
		agents: make(map[hint.ContextID]*Agent),
		frames: make(map[hint.ContextID]*fakeFrame),
	}
	t.Cleanup(h.bus.Close)
	h.build("top", "", root)
	return h
}

func (h *harness) build(id, parent hint.ContextID, n node) {
	frame := &fakeFrame{}
	h.frames[id] = frame
	h.order = append(h.order, id)

	a := New(Config{ID: id, Parent: parent, Alphabet: "ab"}, frame, h.bus, h.sink, zap.NewNop())
	h.agents[id] = a
	if err := h.bus.Register(id, a); err != nil {
		h.t.Fatalf("register %s: %v", id, err)
	}

	childN := 0
	for _, item := range n.items {
		switch v := item.(type) {
		case string:
			el := &fakeElement{text: v, url: "https://example.test/" + v}
			if len(v) > 0 && v[0] == '~' {
				el.hidden = true
			}
			frame.candidates = append(frame.candidates, hint.Candidate{Element: el})
		case node:
			childID := hint.ContextID(string(id) + "/" + string(rune('0'+childN)))
			childN++
			frame.candidates = append(frame.candidates, hint.Candidate{
				Element: &fakeElement{text: "iframe"},
				Child:   childID,
			})
			h.build(childID, id, v)
		}
	}
}

func (h *harness) cmd(msg bus.Message) {
	h.t.Helper()
	h.send("top", msg)
}

func (h *harness) send(to hint.ContextID, msg bus.Message) {
	h.t.Helper()
	if err := h.bus.Send(context.Background(), bus.Envelope{To: to, Msg: msg}); err != nil {
		h.t.Fatalf("send %s: %v", msg.Kind(), err)
	}
	h.settle()
}

func (h *harness) settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.bus.WaitIdle(ctx); err != nil {
		h.t.Fatalf("tree did not settle: %v", err)
	}
}

// leafView is one leaf as seen tree-wide.
type leafView struct {
	Context hint.ContextID
	Text    string
	Index   int
	Label   string
	Visible bool
}

// leaves walks the tree depth-first in slot order.
func (h *harness) leaves() []leafView {
	var out []leafView
	var walk func(id hint.ContextID)
	walk = func(id hint.ContextID) {
		a, ok := h.agents[id]
		if !ok {
			return
		}
		for _, v := range a.Snapshot().Slots {
			if v.Leaf != nil {
				out = append(out, leafView{
					Context: id,
					Text:    v.Leaf.Element.Text(),
					Index:   v.Leaf.Index,
					Label:   v.Leaf.Label,
					Visible: v.Leaf.Visible,
				})
				continue
			}
			if !v.Detached {
				walk(v.Child)
			}
		}
	}
	walk("top")
	return out
}

func (h *harness) visibleTexts() []string {
	var out []string
	for _, l := range h.leaves() {
		if l.Visible {
			out = append(out, l.Text)
		}
	}
	return out
}

// active follows the delegated chain from the top and returns the active
// leaf text, or "" when nothing is active.
func (h *harness) active() string {
	h.t.Helper()
	id := hint.ContextID("top")
	for {
		snap := h.agents[id].Snapshot()
		switch snap.State {
		case Inactive:
			return ""
		case ActiveLocal:
			return snap.Slots[snap.Active].Leaf.Element.Text()
		case ActiveDelegated:
			id = snap.Slots[snap.Active].Child
		}
	}
}

// localActives counts contexts that claim a leaf as active.
func (h *harness) localActives() int {
	n := 0
	for _, id := range h.order {
		a, ok := h.agents[id]
		if !ok {
			continue
		}
		if a.Snapshot().State == ActiveLocal {
			n++
		}
	}
	return n
}

func (h *harness) remove(id hint.ContextID) {
	h.bus.Remove(id)
	delete(h.agents, id)
}
