// Package report delivers hint reports (created, selected, followed) to
// the outside world.
package report

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/metrics"
)

// Type is the report kind.
type Type string

// Report kinds.
const (
	TypeCreated  Type = "created"
	TypeSelected Type = "selected"
	TypeFollowed Type = "followed"
)

// Event is one report as published.
type Event struct {
	Type    Type           `json:"type"`
	Session string         `json:"session"`
	Context hint.ContextID `json:"context"`
	Total   int            `json:"total,omitempty"`
	Hint    *hint.Report   `json:"hint,omitempty"`
	Time    time.Time      `json:"time"`
}

// Publisher delivers events to one destination.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Sink turns agent callbacks into events for one session and fans them out
// to publishers. A failing publisher is logged and does not stop the others.
type Sink struct {
	session    string
	publishers []Publisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewSink creates a sink for session.
func NewSink(session string, logger *zap.Logger, publishers ...Publisher) *Sink {
	return &Sink{
		session:    session,
		publishers: publishers,
		logger:     logger,
		now:        time.Now,
	}
}

// Created reports the tree-wide hint total once discovery finished.
func (s *Sink) Created(ctx context.Context, ctxID hint.ContextID, total int) {
	s.publish(ctx, Event{Type: TypeCreated, Context: ctxID, Total: total})
}

// Selected reports a newly active hint.
func (s *Sink) Selected(ctx context.Context, r hint.Report) {
	s.publish(ctx, Event{Type: TypeSelected, Context: r.Context, Hint: &r})
}

// Followed reports an activated hint.
func (s *Sink) Followed(ctx context.Context, r hint.Report) {
	s.publish(ctx, Event{Type: TypeFollowed, Context: r.Context, Hint: &r})
}

func (s *Sink) publish(ctx context.Context, ev Event) {
	ev.Session = s.session
	ev.Time = s.now()
	metrics.ReportsTotal.WithLabelValues(string(ev.Type)).Inc()

	for _, p := range s.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			s.logger.Warn("publish report failed",
				zap.String("session", s.session),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}

// LogPublisher writes events to a zap logger.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("session", ev.Session),
		zap.String("context", string(ev.Context)),
	}
	if ev.Hint != nil {
		fields = append(fields,
			zap.Int("index", ev.Hint.Index),
			zap.String("label", ev.Hint.Label),
			zap.String("text", ev.Hint.Text),
			zap.String("url", ev.Hint.URL),
		)
	} else {
		fields = append(fields, zap.Int("total", ev.Total))
	}
	p.logger.Info("hint "+string(ev.Type), fields...)
	return nil
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Last returns the most recent event of type t.
func (r *Recorder) Last(t Type) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return Event{}, false
}
