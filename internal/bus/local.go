package bus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/metrics"
)

// Option configures a Local bus.
type Option func(*Local)

// WithInterceptor installs an interceptor consulted before every send.
func WithInterceptor(fn Interceptor) Option {
	return func(b *Local) { b.intercept = fn }
}

// Local is an in-process bus with one goroutine per registered context.
type Local struct {
	logger    *zap.Logger
	intercept Interceptor

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.Mutex
	boxes   map[hint.ContextID]*mailbox
	pending int
	idle    chan struct{}
	closed  bool
}

type mailbox struct {
	id      hint.ContextID
	handler Handler
	queue   []Envelope
	wake    chan struct{}
	removed bool
}

// NewLocal creates a bus. Close must be called to stop its goroutines.
func NewLocal(logger *zap.Logger, opts ...Option) *Local {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	idle := make(chan struct{})
	close(idle)

	b := &Local{
		logger: logger,
		ctx:    gctx,
		cancel: cancel,
		group:  g,
		boxes:  make(map[hint.ContextID]*mailbox),
		idle:   idle,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register attaches a handler to id and starts its mailbox goroutine.
func (b *Local) Register(id hint.ContextID, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("register %s: bus closed", id)
	}
	if _, ok := b.boxes[id]; ok {
		return fmt.Errorf("register %s: already registered", id)
	}

	box := &mailbox{id: id, handler: h, wake: make(chan struct{}, 1)}
	b.boxes[id] = box
	b.group.Go(func() error {
		b.drain(box)
		return nil
	})
	return nil
}

// Send queues env for its recipient.
func (b *Local) Send(_ context.Context, env Envelope) error {
	kind := env.Msg.Kind()

	if b.intercept != nil && !b.intercept(env) {
		metrics.MessagesTotal.WithLabelValues(kind, metrics.OutcomeDropped).Inc()
		return nil
	}

	b.mu.Lock()
	box, ok := b.boxes[env.To]
	if !ok || b.closed {
		b.mu.Unlock()
		metrics.MessagesTotal.WithLabelValues(kind, metrics.OutcomeUndeliverable).Inc()
		return fmt.Errorf("%w: %s to %s", domain.ErrMissingDelivery, kind, env.To)
	}
	box.queue = append(box.queue, env)
	if b.pending == 0 {
		b.idle = make(chan struct{})
	}
	b.pending++
	b.mu.Unlock()

	select {
	case box.wake <- struct{}{}:
	default:
	}
	return nil
}

// Remove detaches id from the bus. Queued messages for it are discarded and
// later sends to it fail with domain.ErrMissingDelivery.
func (b *Local) Remove(id hint.ContextID) {
	b.mu.Lock()
	box, ok := b.boxes[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.boxes, id)
	box.removed = true
	discarded := len(box.queue)
	box.queue = nil
	b.settle(discarded)
	b.mu.Unlock()

	if discarded > 0 {
		b.logger.Debug("discarded queued messages",
			zap.String("context", string(id)),
			zap.Int("count", discarded),
		)
	}
	select {
	case box.wake <- struct{}{}:
	default:
	}
}

// WaitIdle blocks until no message is queued or being handled.
func (b *Local) WaitIdle(ctx context.Context) error {
	b.mu.Lock()
	idle := b.idle
	b.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for idle bus: %w", ctx.Err())
	}
}

// Close stops every mailbox goroutine and waits for them to exit.
func (b *Local) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	_ = b.group.Wait()
}

func (b *Local) drain(box *mailbox) {
	for {
		b.mu.Lock()
		if box.removed {
			b.mu.Unlock()
			return
		}
		if len(box.queue) == 0 {
			b.mu.Unlock()
			select {
			case <-b.ctx.Done():
				return
			case <-box.wake:
			}
			continue
		}
		env := box.queue[0]
		box.queue = box.queue[1:]
		b.mu.Unlock()

		box.handler.Handle(b.ctx, env)
		metrics.MessagesTotal.WithLabelValues(env.Msg.Kind(), metrics.OutcomeDelivered).Inc()

		b.mu.Lock()
		b.settle(1)
		b.mu.Unlock()
	}
}

// settle marks n messages as finished. Callers hold b.mu.
func (b *Local) settle(n int) {
	if n == 0 {
		return
	}
	b.pending -= n
	if b.pending == 0 {
		close(b.idle)
	}
}
