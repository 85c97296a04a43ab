package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/domain/label"
)

func (a *Agent) predicate(text string) hint.Predicate {
	if text == "" {
		return hint.MatchAll
	}
	if a.state.strategy == label.Prefix {
		return hint.CodePredicate(text)
	}
	return hint.TextPredicate(text)
}

// applyFilter re-evaluates visibility from slot msg.Index on, numbering
// survivors after msg.Rank visible hints seen earlier in the walk. Slots are
// never added or removed, only shown, hidden and relabelled.
func (a *Agent) applyFilter(ctx context.Context, msg Filter) {
	s := a.state
	if s == nil {
		return
	}
	s.filter = msg.Text
	match := a.predicate(msg.Text)
	rank := msg.Rank

	for i := msg.Index; i < len(s.slots); i++ {
		switch sl := s.slots[i].(type) {
		case *hint.Handle:
			down := Filter{Text: msg.Text, Rank: rank, Path: msg.Path.Push(i)}
			if a.delegate(ctx, sl, down) {
				return
			}
		case *hint.Leaf:
			if s.strategy == label.Prefix && sl.Label == "" {
				continue
			}

			visible := match(sl)
			sl.Visible = visible
			if !visible {
				if i == s.active {
					a.setActive(ctx, nil)
				}
				continue
			}

			rank++
			switch s.strategy {
			case label.Sequential:
				sl.Label = label.Rank(rank)
			case label.Prefix:
				if sl.Label == msg.Text {
					a.setActive(ctx, msg.Path.Push(i))
				}
			}
		}
	}

	if !a.isTop() {
		_ = a.send(ctx, a.parent, Filter{
			Text:  msg.Text,
			Index: msg.Path.Head() + 1,
			Rank:  rank,
			Path:  msg.Path.Tail(),
		})
		return
	}

	a.logger.Debug("filter applied", zap.String("text", msg.Text), zap.Int("visible", rank))
	if s.active < 0 && s.strategy == label.Sequential {
		a.activateNext(ctx, ActivateNext{Direction: hint.Forward})
	}
}

// selectByLabel activates the visible hint whose sequential label is
// msg.Label. Labels grow in walk order, so the walk stops at the first larger
// label and then tries the handles before it, last first. A context that
// cannot hold the label reports a miss to its parent, which moves on to the
// previous handle.
func (a *Agent) selectByLabel(ctx context.Context, msg SelectByLabel) {
	s := a.state
	if s == nil {
		return
	}
	if s.strategy != label.Sequential {
		a.logger.Warn("select-by-label needs sequential labels", zap.String("strategy", string(s.strategy)))
		return
	}
	if msg.Miss {
		a.selectBefore(ctx, msg.Label, msg.Path, msg.Index)
		return
	}

	end := len(s.slots)
scan:
	for i, sl := range s.slots {
		leaf, ok := sl.(*hint.Leaf)
		if !ok || !leaf.Visible {
			continue
		}
		n, ok := label.ParseRank(leaf.Label)
		if !ok {
			continue
		}
		switch {
		case n == msg.Label:
			a.setActive(ctx, msg.Path.Push(i))
			return
		case n > msg.Label:
			end = i
			break scan
		}
	}
	a.selectBefore(ctx, msg.Label, msg.Path, end)
}

// selectBefore delegates the lookup into the nearest handle before slot end.
// A visible labelled leaf ends the search: every handle before it holds only
// smaller labels.
func (a *Agent) selectBefore(ctx context.Context, lbl int, path hint.Path, end int) {
	s := a.state
search:
	for i := min(end, len(s.slots)) - 1; i >= 0; i-- {
		switch sl := s.slots[i].(type) {
		case *hint.Handle:
			if a.delegate(ctx, sl, SelectByLabel{Label: lbl, Path: path.Push(i)}) {
				return
			}
		case *hint.Leaf:
			if _, ok := label.ParseRank(sl.Label); ok && sl.Visible {
				break search
			}
		}
	}

	if !a.isTop() {
		_ = a.send(ctx, a.parent, SelectByLabel{
			Label: lbl,
			Miss:  true,
			Index: path.Head(),
			Path:  path.Tail(),
		})
		return
	}
	a.logger.Debug("no hint carries label", zap.Int("label", lbl), zap.Error(domain.ErrNoCandidate))
}
