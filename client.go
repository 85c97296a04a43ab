package hintd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/domain/label"
	reportRedis "github.com/kailas-cloud/hintd/internal/report/redis"
	healthuc "github.com/kailas-cloud/hintd/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/hintd/internal/usecase/session"
)

const defaultReadinessTimeout = 10 * time.Second

// sessionUseCase is the internal interface of the session service.
type sessionUseCase interface {
	Create(ctx context.Context, req sessionuc.CreateRequest) (sessionuc.Snapshot, error)
	Get(ctx context.Context, id string) (sessionuc.Snapshot, error)
	Delete(ctx context.Context, id string) error
	Start(ctx context.Context, id string, req sessionuc.StartRequest) (sessionuc.Snapshot, error)
	Next(ctx context.Context, id string) (sessionuc.Snapshot, error)
	Prev(ctx context.Context, id string) (sessionuc.Snapshot, error)
	Filter(ctx context.Context, id, text string) (sessionuc.Snapshot, error)
	Select(ctx context.Context, id, lbl string) (sessionuc.Snapshot, error)
	Follow(ctx context.Context, id string) (sessionuc.Snapshot, error)
	Clear(ctx context.Context, id string) (sessionuc.Snapshot, error)
	Abort(ctx context.Context, id string, frame hint.ContextID) (sessionuc.Snapshot, error)
	RemoveFrame(ctx context.Context, id string, frame hint.ContextID) (sessionuc.Snapshot, error)
	Count() int
	Close()
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the hintd entry point.
type Client struct {
	sessions  sessionUseCase
	healthSvc healthUseCase
	reports   *reportRedis.Publisher
	obs       *observer
}

// New creates a Client. With WithRedisReports the provided context bounds
// the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	strategy, err := label.Parse(string(cfg.strategy), label.Sequential)
	if err != nil {
		return nil, fmt.Errorf("hintd: %w", err)
	}
	if cfg.alphabet == "" {
		cfg.alphabet = label.DefaultAlphabet
	}
	if err := label.ValidateAlphabet(cfg.alphabet); err != nil {
		return nil, fmt.Errorf("hintd: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var pubs []sessionuc.Publisher
	for _, p := range cfg.publishers {
		pubs = append(pubs, publisherAdapter{inner: p})
	}

	var reports *reportRedis.Publisher
	if len(cfg.redisAddrs) > 0 {
		reports, err = connectReports(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, reports)
	}

	sessions := sessionuc.New(sessionuc.Config{
		DefaultQuery:    cfg.query,
		DefaultStrategy: strategy,
		Alphabet:        cfg.alphabet,
		ViewportWidth:   cfg.viewportW,
		ViewportHeight:  cfg.viewportH,
		MaxSessions:     cfg.maxSessions,
		MaxFrameDepth:   cfg.maxFrameDepth,
	}, logger, pubs...)

	// Pass a nil interface, not a typed nil pointer, when reports are off.
	var pinger healthuc.ReportPinger
	if reports != nil {
		pinger = reports
	}

	return &Client{
		sessions:  sessions,
		healthSvc: healthuc.New(sessions, pinger),
		reports:   reports,
		obs:       obs,
	}, nil
}

func connectReports(ctx context.Context, cfg *clientConfig) (*reportRedis.Publisher, error) {
	pub, err := reportRedis.NewPublisher(reportRedis.Config{
		Addrs:    cfg.redisAddrs,
		Password: cfg.redisPassword,
		Channel:  cfg.redisChannel,
	})
	if err != nil {
		return nil, fmt.Errorf("hintd: create report publisher: %w", err)
	}
	if err := pub.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		pub.Close()
		return nil, fmt.Errorf("hintd: report channel not ready: %w", err)
	}
	return pub, nil
}

// Close ends every session and releases all resources.
func (c *Client) Close() {
	c.sessions.Close()
	if c.reports != nil {
		c.reports.Close()
	}
}

// Sessions returns the number of open sessions.
func (c *Client) Sessions() int {
	return c.sessions.Count()
}

// Open loads a page and returns a session on it. Hint mode is off until
// Start.
func (c *Client) Open(ctx context.Context, page Page) (s *Session, err error) {
	start := time.Now()
	defer func() { c.obs.observe("open", start, err) }()

	req := sessionuc.CreateRequest{
		HTML:      page.HTML,
		URL:       page.URL,
		Resources: page.Resources,
	}
	if page.Fetcher != nil {
		req.Fetcher = page.Fetcher
	}

	snap, err := c.sessions.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return &Session{id: snap.ID, svc: c.sessions, obs: c.obs}, nil
}

// HealthStatus represents the aggregated client health.
type HealthStatus struct {
	Status   string            // "ok", "degraded"
	Checks   map[string]string // component → "ok"/"error"
	Sessions int
}

// Health checks the report channel, when configured, and counts sessions.
func (c *Client) Health(ctx context.Context) HealthStatus {
	rep := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(rep.Checks))
	for k, v := range rep.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:   string(rep.Status),
		Checks:   checks,
		Sessions: rep.Sessions,
	}
}
