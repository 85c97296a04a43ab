// Package session runs hint sessions: one loaded page, one agent per frame,
// all connected by an in-process bus. Every operation enters the top agent
// as a message and returns once the whole context tree is quiescent.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/agent"
	"github.com/kailas-cloud/hintd/internal/bus"
	"github.com/kailas-cloud/hintd/internal/document"
	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/domain/label"
	"github.com/kailas-cloud/hintd/internal/metrics"
	"github.com/kailas-cloud/hintd/internal/report"
)

var tracer = otel.Tracer("github.com/kailas-cloud/hintd/internal/usecase/session")

const defaultSettleTimeout = 5 * time.Second

// Config holds session defaults and limits.
type Config struct {
	DefaultQuery    string
	DefaultStrategy label.Strategy
	Alphabet        string
	ViewportWidth   float64
	ViewportHeight  float64
	MaxSessions     int // 0 = unlimited
	MaxFrameDepth   int // 0 = unlimited
	SettleTimeout   time.Duration
}

// CreateRequest describes the page a session runs on.
type CreateRequest struct {
	HTML      string
	URL       string
	Resources map[string]string // nested documents by absolute URL
	Fetcher   document.Fetcher  // overrides Resources when set
}

// StartRequest parameterizes hint mode.
type StartRequest struct {
	Query    string
	Strategy string
}

// Service manages hint sessions.
type Service struct {
	cfg        Config
	logger     *zap.Logger
	publishers []Publisher
	newID      func() string

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id       string
	page     *document.Page
	bus      *bus.Local
	recorder *report.Recorder

	mu     sync.Mutex
	agents map[hint.ContextID]*agent.Agent
}

// New creates a session service.
func New(cfg Config, logger *zap.Logger, publishers ...Publisher) *Service {
	if cfg.Alphabet == "" {
		cfg.Alphabet = label.DefaultAlphabet
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = label.Sequential
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = defaultSettleTimeout
	}
	return &Service{
		cfg:        cfg,
		logger:     logger,
		publishers: publishers,
		newID:      uuid.NewString,
		sessions:   make(map[string]*session),
	}
}

// Create loads a page and attaches one agent per frame.
func (s *Service) Create(ctx context.Context, req CreateRequest) (snap Snapshot, err error) {
	_, end := s.trace(ctx, "create", "")
	defer func() { end(err) }()
	start := time.Now()

	fetcher := req.Fetcher
	if fetcher == nil && len(req.Resources) > 0 {
		fetcher = document.MapFetcher(req.Resources)
	}
	page, err := document.Load(req.HTML, document.Options{
		URL:            req.URL,
		Fetcher:        fetcher,
		ViewportWidth:  s.cfg.ViewportWidth,
		ViewportHeight: s.cfg.ViewportHeight,
		MaxDepth:       s.cfg.MaxFrameDepth,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("load page: %w", err)
	}

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("create session: %w (limit %d)", domain.ErrTooManySessions, s.cfg.MaxSessions)
	}
	id := s.newID()
	sess, err := s.attach(id, page)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	metrics.SessionsActive.Inc()
	metrics.OperationDuration.WithLabelValues("create").Observe(time.Since(start).Seconds())
	s.logger.Info("session created",
		zap.String("session", id),
		zap.Int("frames", len(sess.agents)),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

func (s *Service) attach(id string, page *document.Page) (*session, error) {
	log := s.logger.With(zap.String("session", id))
	recorder := report.NewRecorder()

	pubs := make([]report.Publisher, 0, len(s.publishers)+1)
	pubs = append(pubs, recorder)
	for _, p := range s.publishers {
		pubs = append(pubs, p)
	}
	sink := report.NewSink(id, log, pubs...)

	sess := &session{
		id:       id,
		page:     page,
		bus:      bus.NewLocal(log),
		recorder: recorder,
		agents:   make(map[hint.ContextID]*agent.Agent),
	}
	for _, f := range page.Frames() {
		a := agent.New(agent.Config{ID: f.ID(), Parent: f.Parent(), Alphabet: s.cfg.Alphabet}, f, sess.bus, sink, log)
		if err := sess.bus.Register(f.ID(), a); err != nil {
			sess.bus.Close()
			return nil, fmt.Errorf("attach frame %s: %w", f.ID(), err)
		}
		sess.agents[f.ID()] = a
	}
	return sess, nil
}

// Get returns the current state of a session.
func (s *Service) Get(ctx context.Context, id string) (Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.settle(ctx, s.cfg.SettleTimeout); err != nil {
		return Snapshot{}, err
	}
	return sess.snapshot(), nil
}

// Delete stops a session and releases its goroutines.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	_, end := s.trace(ctx, "delete", id)
	defer func() { end(err) }()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("delete session %s: %w", id, domain.ErrSessionNotFound)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.bus.Close()
	metrics.SessionsActive.Dec()
	s.logger.Info("session deleted", zap.String("session", id))
	return nil
}

// Close stops every session.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		sess.bus.Close()
		sess.mu.Unlock()
		metrics.SessionsActive.Dec()
	}
}

// Start enters hint mode, replacing any running hint session on the page.
func (s *Service) Start(ctx context.Context, id string, req StartRequest) (Snapshot, error) {
	strategy, err := label.Parse(req.Strategy, s.cfg.DefaultStrategy)
	if err != nil {
		return Snapshot{}, fmt.Errorf("start: %w", err)
	}
	query := req.Query
	if query == "" {
		query = s.cfg.DefaultQuery
	}
	if _, err := document.CompileQuery(query); err != nil {
		return Snapshot{}, fmt.Errorf("start: %w", err)
	}
	return s.command(ctx, id, "start", false, agent.Start{Query: query, Strategy: strategy})
}

// Next activates the next visible hint, cycling past the last one.
func (s *Service) Next(ctx context.Context, id string) (Snapshot, error) {
	return s.command(ctx, id, "next", true, agent.ActivateNext{Direction: hint.Forward})
}

// Prev activates the previous visible hint, cycling past the first one.
func (s *Service) Prev(ctx context.Context, id string) (Snapshot, error) {
	return s.command(ctx, id, "prev", true, agent.ActivateNext{Direction: hint.Backward})
}

// Filter narrows the visible hints. Under the prefix strategy text is the
// typed code prefix; typing a complete code activates its hint.
func (s *Service) Filter(ctx context.Context, id, text string) (Snapshot, error) {
	return s.command(ctx, id, "filter", true, agent.Filter{Text: text})
}

// Select activates the hint carrying lbl.
func (s *Service) Select(ctx context.Context, id, lbl string) (Snapshot, error) {
	return s.commandFor(ctx, id, "select", true, func(top agent.Snapshot) (bus.Message, error) {
		if top.Strategy == label.Prefix {
			if lbl == "" {
				return nil, fmt.Errorf("select: %w: empty code", domain.ErrInvalidLabel)
			}
			return agent.Filter{Text: lbl}, nil
		}
		n, ok := label.ParseRank(lbl)
		if !ok {
			return nil, fmt.Errorf("select: %w: %q", domain.ErrInvalidLabel, lbl)
		}
		return agent.SelectByLabel{Label: n}, nil
	})
}

// Follow activates the element behind the active hint.
func (s *Service) Follow(ctx context.Context, id string) (Snapshot, error) {
	return s.command(ctx, id, "follow", true, agent.FollowActive{})
}

// Clear leaves hint mode.
func (s *Service) Clear(ctx context.Context, id string) (Snapshot, error) {
	return s.command(ctx, id, "clear", false, agent.Clear{})
}

// Abort leaves hint mode on behalf of a nested frame: the request travels
// up to the top context, which clears the whole tree.
func (s *Service) Abort(ctx context.Context, id string, frame hint.ContextID) (snap Snapshot, err error) {
	ctx, end := s.trace(ctx, "abort", id)
	defer func() { end(err) }()

	sess, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, ok := sess.agents[frame]; !ok {
		return Snapshot{}, fmt.Errorf("abort from %s: %w", frame, domain.ErrFrameNotFound)
	}
	return s.dispatch(ctx, sess, "abort", frame, agent.Clear{Up: true})
}

// RemoveFrame detaches a nested frame and everything inside it. Walks that
// reach its handle afterwards skip it; a walk already suspended on it stays
// suspended until the next start.
func (s *Service) RemoveFrame(ctx context.Context, id string, frame hint.ContextID) (snap Snapshot, err error) {
	ctx, end := s.trace(ctx, "remove_frame", id)
	defer func() { end(err) }()

	sess, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	removed, err := sess.page.Remove(frame)
	if err != nil {
		return Snapshot{}, fmt.Errorf("remove frame: %w", err)
	}
	for _, fid := range removed {
		sess.bus.Remove(fid)
		delete(sess.agents, fid)
	}
	s.logger.Info("frame removed",
		zap.String("session", id),
		zap.String("frame", string(frame)),
		zap.Int("contexts", len(removed)),
	)

	if err := sess.settle(ctx, s.cfg.SettleTimeout); err != nil {
		return Snapshot{}, err
	}
	return sess.snapshot(), nil
}

func (s *Service) command(ctx context.Context, id, op string, needStarted bool, msg bus.Message) (Snapshot, error) {
	return s.commandFor(ctx, id, op, needStarted, func(agent.Snapshot) (bus.Message, error) {
		return msg, nil
	})
}

// commandFor sends the message built by build to the top agent.
func (s *Service) commandFor(
	ctx context.Context,
	id, op string,
	needStarted bool,
	build func(top agent.Snapshot) (bus.Message, error),
) (snap Snapshot, err error) {
	ctx, end := s.trace(ctx, op, id)
	defer func() { end(err) }()

	sess, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	top := sess.agents[document.TopID].Snapshot()
	if needStarted && !top.Started {
		return Snapshot{}, fmt.Errorf("%s: %w", op, domain.ErrNotStarted)
	}
	msg, err := build(top)
	if err != nil {
		return Snapshot{}, err
	}
	return s.dispatch(ctx, sess, op, document.TopID, msg)
}

// dispatch sends msg to one agent and waits for the tree to settle.
// Callers hold sess.mu.
func (s *Service) dispatch(ctx context.Context, sess *session, op string, to hint.ContextID, msg bus.Message) (Snapshot, error) {
	start := time.Now()
	if err := sess.bus.Send(ctx, bus.Envelope{To: to, Msg: msg}); err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := sess.settle(ctx, s.cfg.SettleTimeout); err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return sess.snapshot(), nil
}

func (sess *session) settle(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sess.bus.WaitIdle(ctx)
}

func (s *Service) lookup(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return sess, nil
}

// trace starts a span for op. The returned func ends it, recording err.
func (s *Service) trace(ctx context.Context, op, id string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "session."+op, trace.WithAttributes(
		attribute.String("hintd.operation", op),
		attribute.String("hintd.session", id),
	))
	return ctx, func(err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Count returns the number of open sessions.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
