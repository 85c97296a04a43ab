// Package agent implements the per-context hint agent. One Agent runs in
// every document context; agents share nothing and cooperate only through
// bus messages. Each cross-context walk (discovery, label distribution,
// activation scan, filtering) is depth-first: an agent hands control to a
// child at a subtree handle and resumes only when the child hands it back.
package agent

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/bus"
	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/domain/label"
	"github.com/kailas-cloud/hintd/internal/metrics"
)

// Config identifies an agent within the context tree.
type Config struct {
	ID       hint.ContextID
	Parent   hint.ContextID // empty for the top context
	Alphabet string
}

// Agent owns the hint state of one document context.
type Agent struct {
	id       hint.ContextID
	parent   hint.ContextID
	alphabet string

	frame     Frame
	transport Transport
	sink      Sink
	logger    *zap.Logger

	mu    sync.Mutex
	epoch uint64
	state *session
}

// session is the hint state of one epoch. nil when hint mode is off.
type session struct {
	query      string
	strategy   label.Strategy
	candidates []hint.Candidate
	cursor     int
	slots      []hint.Slot
	active     int
	waiting    hint.ContextID
	next       int
	complete   bool
	total      int
	filter     string
	err        error
}

// New creates an agent.
func New(cfg Config, frame Frame, transport Transport, sink Sink, logger *zap.Logger) *Agent {
	alphabet := cfg.Alphabet
	if alphabet == "" {
		alphabet = label.DefaultAlphabet
	}
	return &Agent{
		id:        cfg.ID,
		parent:    cfg.Parent,
		alphabet:  alphabet,
		frame:     frame,
		transport: transport,
		sink:      sink,
		logger:    logger.With(zap.String("context", string(cfg.ID))),
	}
}

// ID returns the context id.
func (a *Agent) ID() hint.ContextID { return a.id }

func (a *Agent) isTop() bool { return a.parent == "" }

// Handle processes one message. It implements bus.Handler.
func (a *Agent) Handle(ctx context.Context, env bus.Envelope) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if msg, ok := env.Msg.(DiscoverStart); ok {
		a.onDiscoverStart(ctx, env, msg)
		return
	}
	if env.From != bus.External && env.Epoch != a.epoch {
		a.dropStale(env)
		return
	}

	switch msg := env.Msg.(type) {
	case Start:
		a.onStart(ctx, msg)
	case DiscoverEnd:
		a.onDiscoverEnd(ctx, env, msg)
	case ConfigureLabels:
		a.configureLabels(ctx, msg.Index, msg.Labels, msg.Path)
	case Clear:
		a.onClear(ctx, msg)
	case ClearActive:
		a.clearActive(ctx, bus.External)
	case ActivateNext:
		a.activateNext(ctx, msg)
	case SetActive:
		a.onSetActive(ctx, env, msg)
	case Filter:
		a.applyFilter(ctx, msg)
	case FollowActive:
		a.followActive(ctx)
	case SelectByLabel:
		a.selectByLabel(ctx, msg)
	default:
		a.logger.Warn("unknown message", zap.String("kind", env.Msg.Kind()))
	}
}

func (a *Agent) dropStale(env bus.Envelope) {
	metrics.MessagesTotal.WithLabelValues(env.Msg.Kind(), metrics.OutcomeStale).Inc()
	a.logger.Debug("dropped message",
		zap.String("kind", env.Msg.Kind()),
		zap.String("from", string(env.From)),
		zap.Uint64("epoch", env.Epoch),
		zap.Uint64("current_epoch", a.epoch),
		zap.Error(domain.ErrStaleMessage),
	)
}

// send delivers msg stamped with the current epoch.
func (a *Agent) send(ctx context.Context, to hint.ContextID, msg bus.Message) error {
	err := a.transport.Send(ctx, bus.Envelope{From: a.id, To: to, Epoch: a.epoch, Msg: msg})
	if err != nil {
		a.logger.Warn("send failed",
			zap.String("kind", msg.Kind()),
			zap.String("to", string(to)),
			zap.Error(err),
		)
	}
	return err
}

// delegate sends msg into the child behind h. An unreachable child detaches
// the handle so later walks skip it.
func (a *Agent) delegate(ctx context.Context, h *hint.Handle, msg bus.Message) bool {
	if h.Detached {
		return false
	}
	if err := a.send(ctx, h.Child, msg); err != nil {
		if errors.Is(err, domain.ErrMissingDelivery) {
			h.Detached = true
		}
		return false
	}
	return true
}

func (a *Agent) onClear(ctx context.Context, msg Clear) {
	if msg.Up && !a.isTop() {
		_ = a.send(ctx, a.parent, Clear{Up: true})
		return
	}
	a.teardown(ctx)
}

// teardown ends hint mode here and in every reachable child.
func (a *Agent) teardown(ctx context.Context) {
	s := a.state
	if s == nil {
		return
	}
	for _, sl := range s.slots {
		if h, ok := sl.(*hint.Handle); ok {
			a.delegate(ctx, h, Clear{})
		}
	}
	a.state = nil
	a.logger.Debug("hint mode cleared", zap.Uint64("epoch", a.epoch))
}

func (a *Agent) fail(err error) {
	err = domain.NewContextError(string(a.id), err)
	if a.state != nil {
		a.state.err = err
	}
	a.logger.Error("hint session failed", zap.Error(err))
}
