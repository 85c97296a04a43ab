package hintd

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	strategy      Strategy
	query         string
	alphabet      string
	viewportW     float64
	viewportH     float64
	maxSessions   int
	maxFrameDepth int

	redisAddrs    []string
	redisPassword string
	redisChannel  string
	publishers    []Publisher

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithStrategy sets the labelling strategy used when Start does not name one.
// Default: Sequential.
func WithStrategy(s Strategy) Option {
	return optionFunc(func(c *clientConfig) {
		c.strategy = s
	})
}

// WithQuery sets the CSS selector used when Start does not pass one.
func WithQuery(query string) Option {
	return optionFunc(func(c *clientConfig) {
		c.query = query
	})
}

// WithAlphabet sets the prefix code alphabet. It needs at least two distinct
// characters. Default: "auie,ctsrn".
func WithAlphabet(alphabet string) Option {
	return optionFunc(func(c *clientConfig) {
		c.alphabet = alphabet
	})
}

// WithViewport sets the viewport elements must intersect to get a hint.
// Zero disables the geometry check.
func WithViewport(width, height float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.viewportW = width
		c.viewportH = height
	})
}

// WithMaxSessions caps the number of open sessions. 0 means unlimited.
func WithMaxSessions(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxSessions = n
	})
}

// WithMaxFrameDepth stops loading iframes below depth n. 0 means unlimited.
func WithMaxFrameDepth(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxFrameDepth = n
	})
}

// WithRedisReports publishes every report to a Redis channel.
// An empty channel uses "hintd:reports".
func WithRedisReports(addr, password, channel string) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
		c.redisChannel = channel
	})
}

// WithPublisher adds a report publisher. May be given more than once.
func WithPublisher(p Publisher) Option {
	return optionFunc(func(c *clientConfig) {
		c.publishers = append(c.publishers, p)
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
