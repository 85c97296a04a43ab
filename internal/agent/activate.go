package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/bus"
	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
)

// activateNext scans slots in msg.Direction for the next eligible hint.
// Invisible leaves are skipped, handles always take the scan. A context that
// runs out of slots hands the scan back to its parent; the top context
// restarts once from the opposite boundary so traversal is cyclic.
func (a *Agent) activateNext(ctx context.Context, msg ActivateNext) {
	s := a.state
	if s == nil {
		return
	}
	dir := int(msg.Direction)

	index := msg.Index
	if !msg.HasIndex {
		switch {
		case s.active >= 0:
			index = s.active
			if _, ok := s.slots[index].(*hint.Leaf); ok {
				index += dir
			}
		default:
			index = a.boundary(msg.Direction)
			if a.isTop() {
				msg.Wrapped = true
			}
		}
	}

	for i := index; i >= 0 && i < len(s.slots); i += dir {
		switch sl := s.slots[i].(type) {
		case *hint.Leaf:
			if sl.Visible {
				a.setActive(ctx, msg.Path.Push(i))
				return
			}
		case *hint.Handle:
			down := ActivateNext{Direction: msg.Direction, Path: msg.Path.Push(i), Wrapped: msg.Wrapped}
			if a.delegate(ctx, sl, down) {
				return
			}
		}
	}

	if !a.isTop() {
		_ = a.send(ctx, a.parent, ActivateNext{
			Index:     msg.Path.Head() + dir,
			HasIndex:  true,
			Direction: msg.Direction,
			Path:      msg.Path.Tail(),
			Wrapped:   msg.Wrapped,
		})
		return
	}

	a.setActive(ctx, nil)
	if msg.Wrapped {
		a.logger.Debug("activation scan exhausted", zap.Error(domain.ErrNoCandidate))
		return
	}
	a.activateNext(ctx, ActivateNext{
		Index:     a.boundary(msg.Direction),
		HasIndex:  true,
		Direction: msg.Direction,
		Wrapped:   true,
	})
}

func (a *Agent) boundary(dir hint.Direction) int {
	if dir == hint.Backward {
		return len(a.state.slots) - 1
	}
	return 0
}

// setActive makes the slot at path the tree-wide active one and reports it.
// A nil path clears activation.
func (a *Agent) setActive(ctx context.Context, path hint.Path) {
	if path != nil && a.state.active == path.Head() {
		return
	}
	a.upActivate(ctx, path, bus.External)
	if path == nil {
		return
	}
	leaf := a.state.slots[path.Head()].(*hint.Leaf)
	a.sink.Selected(ctx, hint.NewReport(a.id, leaf))
}

// upActivate points this context at path.Head() (or nowhere for a nil path)
// and bubbles the change to the parent. from is the child the change came
// from; it already dropped its own state and is not told again.
func (a *Agent) upActivate(ctx context.Context, path hint.Path, from hint.ContextID) {
	s := a.state
	next := -1
	if path != nil {
		next = path.Head()
	}
	if next == s.active {
		return
	}

	a.clearActive(ctx, from)
	s.active = next

	if a.isTop() {
		return
	}
	if path == nil {
		_ = a.send(ctx, a.parent, SetActive{Clear: true})
		return
	}
	_ = a.send(ctx, a.parent, SetActive{Path: path.Tail()})
}

func (a *Agent) onSetActive(ctx context.Context, env bus.Envelope, msg SetActive) {
	s := a.state
	if s == nil {
		return
	}
	if msg.Clear {
		// Only the child currently holding activation may release it.
		if s.active < 0 {
			return
		}
		h, ok := s.slots[s.active].(*hint.Handle)
		if !ok || h.Child != env.From {
			return
		}
		a.upActivate(ctx, nil, env.From)
		return
	}
	if len(msg.Path) == 0 || msg.Path.Head() >= len(s.slots) {
		a.logger.Warn("set-active with invalid path", zap.Ints("path", msg.Path))
		return
	}
	a.upActivate(ctx, msg.Path, env.From)
}

// clearActive drops the local active pointer, telling the delegated child
// unless it is except.
func (a *Agent) clearActive(ctx context.Context, except hint.ContextID) {
	s := a.state
	if s == nil || s.active < 0 {
		return
	}
	prev := s.slots[s.active]
	s.active = -1

	if h, ok := prev.(*hint.Handle); ok && h.Child != except {
		a.delegate(ctx, h, ClearActive{})
	}
}

// followActive activates the element behind the active slot, wherever it is.
func (a *Agent) followActive(ctx context.Context) {
	s := a.state
	if s == nil || s.active < 0 {
		a.logger.Debug("nothing to follow", zap.Error(domain.ErrNoCandidate))
		return
	}

	switch sl := s.slots[s.active].(type) {
	case *hint.Handle:
		a.delegate(ctx, sl, FollowActive{})
	case *hint.Leaf:
		if err := a.frame.Activate(ctx, sl.Element); err != nil {
			a.logger.Error("activation failed", zap.Int("index", sl.Index), zap.Error(err))
			return
		}
		a.sink.Followed(ctx, hint.NewReport(a.id, sl))
	}
}
