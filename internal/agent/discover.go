package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/bus"
	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/domain/label"
)

func (a *Agent) onStart(ctx context.Context, msg Start) {
	if !a.isTop() {
		a.logger.Warn("start ignored outside the top context")
		return
	}
	// At most one discovery pass per tree: a running session is torn down
	// and the epoch bump invalidates its in-flight replies.
	a.teardown(ctx)
	a.epoch++
	a.begin(msg.Query, msg.Strategy)
	a.lookup(ctx, 0)
}

func (a *Agent) onDiscoverStart(ctx context.Context, env bus.Envelope, msg DiscoverStart) {
	if env.Epoch < a.epoch || (env.Epoch == a.epoch && a.state != nil) {
		a.dropStale(env)
		return
	}
	a.teardown(ctx)
	a.epoch = env.Epoch
	a.begin(msg.Query, msg.Strategy)
	a.lookup(ctx, msg.StartIndex)
}

func (a *Agent) begin(query string, strategy label.Strategy) {
	s := &session{query: query, strategy: strategy, active: -1}
	a.state = s

	candidates, err := a.frame.Discover(query)
	if err != nil {
		// The walk still completes so the parent is never left waiting.
		a.fail(fmt.Errorf("discover: %w", err))
		return
	}
	s.candidates = candidates
}

func (a *Agent) onDiscoverEnd(ctx context.Context, env bus.Envelope, msg DiscoverEnd) {
	s := a.state
	if s == nil || s.waiting == "" || env.From != s.waiting {
		a.dropStale(env)
		return
	}
	s.waiting = ""
	a.lookup(ctx, msg.NextIndex)
}

// lookup resumes enumeration at the candidate cursor with the running
// global index, suspending at the first nested context.
func (a *Agent) lookup(ctx context.Context, index int) {
	s := a.state
	for s.cursor < len(s.candidates) {
		c := s.candidates[s.cursor]
		s.cursor++

		if !a.frame.Visible(c.Element) {
			continue
		}

		if c.Nested() {
			h := &hint.Handle{Child: c.Child}
			s.slots = append(s.slots, h)
			start := DiscoverStart{Query: s.query, Strategy: s.strategy, StartIndex: index}
			if a.delegate(ctx, h, start) {
				s.waiting = c.Child
				return
			}
			continue
		}

		index++
		leaf := &hint.Leaf{Element: c.Element, Index: index}
		if s.strategy == label.Sequential {
			leaf.Label = label.Rank(index)
			leaf.Visible = true
		}
		s.slots = append(s.slots, leaf)
	}

	s.next = index
	if !a.isTop() {
		_ = a.send(ctx, a.parent, DiscoverEnd{NextIndex: index})
		return
	}
	a.discoveryComplete(ctx, index)
}

func (a *Agent) discoveryComplete(ctx context.Context, total int) {
	s := a.state
	s.complete = true
	s.total = total
	a.logger.Info("hints created",
		zap.Int("total", total),
		zap.String("strategy", string(s.strategy)),
		zap.Uint64("epoch", a.epoch),
	)
	a.sink.Created(ctx, a.id, total)

	switch s.strategy {
	case label.Prefix:
		codes, err := label.PrefixCodes(total, a.alphabet)
		if err != nil {
			a.fail(err)
			return
		}
		a.configureLabels(ctx, 0, codes, nil)
	case label.Sequential:
		a.activateNext(ctx, ActivateNext{Direction: hint.Forward})
	}
}

// configureLabels hands out prefix codes in global order starting at slot
// index. Codes are only assigned once the tree-wide total is known, so a
// label never changes after it is shown.
func (a *Agent) configureLabels(ctx context.Context, index int, labels []string, path hint.Path) {
	s := a.state
	if s == nil {
		return
	}

	used := 0
	for i := index; i < len(s.slots); i++ {
		switch sl := s.slots[i].(type) {
		case *hint.Handle:
			msg := ConfigureLabels{Labels: labels[used:], Path: path.Push(i)}
			if a.delegate(ctx, sl, msg) {
				return
			}
		case *hint.Leaf:
			if used >= len(labels) {
				a.fail(fmt.Errorf("%w: no code left for hint %d", domain.ErrLabelCollision, sl.Index))
				return
			}
			sl.Label = labels[used]
			sl.Visible = true
			used++
		}
	}

	if !a.isTop() {
		_ = a.send(ctx, a.parent, ConfigureLabels{
			Index:  path.Head() + 1,
			Labels: labels[used:],
			Path:   path.Tail(),
		})
	}
}
