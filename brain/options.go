package brain

import (
	"time"

	"github.com/corebrain/robobrain/brain/emit"
	"github.com/corebrain/robobrain/brain/store"
)

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine := brain.New(reducer, store, emitter,
//	    brain.WithMaxSteps(200),
//	    brain.WithDefaultNodeTimeout(5*time.Second),
//	)
type Option func(*engineConfig) error

// engineConfig collects options before they are applied to an Engine.
type engineConfig struct {
	opts Options
}

// Options configures Engine execution behavior. Zero values are valid.
type Options struct {
	// MaxSteps is the engine-level step ceiling, a backstop distinct from
	// R8's own MAX_ITER exit. If 0, no limit is enforced.
	MaxSteps int

	// DefaultNodeTimeout bounds node execution when the node's own
	// NodePolicy.Timeout is unset. 0 means no timeout.
	DefaultNodeTimeout time.Duration

	// RunWallClockBudget bounds the entire Run() call. 0 disables it.
	RunWallClockBudget time.Duration

	// Metrics enables Prometheus metrics collection. Nil disables it.
	Metrics *PrometheusMetrics

	// CostTracker enables LLM cost tracking for R2 oracle calls. Nil
	// disables it.
	CostTracker *CostTracker
}

// New creates a new Engine.
//
// options may be an Options struct (applied first, as a base) followed by
// any number of functional Options (applied in order, overriding the base):
//
//	engine := brain.New(reducer, store, emitter, brain.Options{MaxSteps: 100})
//	engine := brain.New(reducer, store, emitter, brain.WithMaxSteps(100))
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, options ...interface{}) *Engine[S] {
	cfg := &engineConfig{}

	for _, opt := range options {
		switch v := opt.(type) {
		case Options:
			cfg.opts = v
		case Option:
			_ = v(cfg)
		}
	}

	return &Engine[S]{
		reducer:      reducer,
		nodes:        make(map[string]Node[S]),
		nodePolicies: make(map[string]*NodePolicy),
		edges:        make([]Edge[S], 0),
		store:        st,
		emitter:      emitter,
		metrics:      cfg.opts.Metrics,
		costTracker:  cfg.opts.CostTracker,
		opts:         cfg.opts,
	}
}

// WithMaxSteps sets the engine-level step ceiling.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.MaxSteps = n
		return nil
	}
}

// WithDefaultNodeTimeout sets the default per-node timeout.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.DefaultNodeTimeout = d
		return nil
	}
}

// WithRunWallClockBudget bounds total Run() execution time.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.RunWallClockBudget = d
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Metrics = m
		return nil
	}
}

// WithCostTracker enables LLM cost tracking.
func WithCostTracker(ct *CostTracker) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.CostTracker = ct
		return nil
	}
}
