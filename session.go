package hintd

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/hintd/internal/domain/hint"
	sessionuc "github.com/kailas-cloud/hintd/internal/usecase/session"
)

// Session is one page in hint mode. Methods are safe for concurrent use;
// operations on one session are serialized.
type Session struct {
	id  string
	svc sessionUseCase
	obs *observer
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State(ctx context.Context) (State, error) {
	return s.run("state", func() (sessionuc.Snapshot, error) {
		return s.svc.Get(ctx, s.id)
	})
}

// Start enters hint mode, replacing any running hint session on the page.
func (s *Session) Start(ctx context.Context, opts StartOptions) (State, error) {
	return s.run("start", func() (sessionuc.Snapshot, error) {
		return s.svc.Start(ctx, s.id, sessionuc.StartRequest{
			Query:    opts.Query,
			Strategy: string(opts.Strategy),
		})
	})
}

// Next activates the next visible hint, cycling past the last one.
func (s *Session) Next(ctx context.Context) (State, error) {
	return s.run("next", func() (sessionuc.Snapshot, error) {
		return s.svc.Next(ctx, s.id)
	})
}

// Prev activates the previous visible hint, cycling past the first one.
func (s *Session) Prev(ctx context.Context) (State, error) {
	return s.run("prev", func() (sessionuc.Snapshot, error) {
		return s.svc.Prev(ctx, s.id)
	})
}

// Filter narrows the visible hints to those matching text: display text
// under Sequential, code prefix under Prefix.
func (s *Session) Filter(ctx context.Context, text string) (State, error) {
	return s.run("filter", func() (sessionuc.Snapshot, error) {
		return s.svc.Filter(ctx, s.id, text)
	})
}

// Select activates the hint carrying label.
func (s *Session) Select(ctx context.Context, label string) (State, error) {
	return s.run("select", func() (sessionuc.Snapshot, error) {
		return s.svc.Select(ctx, s.id, label)
	})
}

// Follow activates the element behind the active hint.
func (s *Session) Follow(ctx context.Context) (State, error) {
	return s.run("follow", func() (sessionuc.Snapshot, error) {
		return s.svc.Follow(ctx, s.id)
	})
}

// Clear leaves hint mode.
func (s *Session) Clear(ctx context.Context) (State, error) {
	return s.run("clear", func() (sessionuc.Snapshot, error) {
		return s.svc.Clear(ctx, s.id)
	})
}

// Abort leaves hint mode on behalf of the nested frame with the given id.
func (s *Session) Abort(ctx context.Context, frame string) (State, error) {
	return s.run("abort", func() (sessionuc.Snapshot, error) {
		return s.svc.Abort(ctx, s.id, hint.ContextID(frame))
	})
}

// RemoveFrame detaches a nested frame and everything inside it.
func (s *Session) RemoveFrame(ctx context.Context, frame string) (State, error) {
	return s.run("remove_frame", func() (sessionuc.Snapshot, error) {
		return s.svc.RemoveFrame(ctx, s.id, hint.ContextID(frame))
	})
}

// Close ends the session.
func (s *Session) Close(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("close", start, err) }()

	if err = s.svc.Delete(ctx, s.id); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (s *Session) run(op string, fn func() (sessionuc.Snapshot, error)) (st State, err error) {
	start := time.Now()
	defer func() { s.obs.observe(op, start, err) }()

	snap, err := fn()
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", op, err)
	}
	return stateFromSnapshot(snap), nil
}
