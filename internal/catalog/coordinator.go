package catalog

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Runner performs one load cycle.
type Runner interface {
	Run(ctx context.Context) error
}

// Coordinator reruns load cycles on an interval, the way a page reload
// would re-run the loader.
type Coordinator struct {
	runner   Runner
	interval time.Duration
	jitter   time.Duration
	logger   *slog.Logger

	trigger chan struct{}

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithJitter spreads reloads by up to ±jitter.
func WithJitter(jitter time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.jitter = jitter
	}
}

// WithCoordinatorLogger sets the coordinator's logger.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator returns a Coordinator running runner every interval. With a
// zero interval cycles after the first only run when triggered.
func NewCoordinator(runner Runner, interval time.Duration, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		runner:   runner,
		interval: interval,
		logger:   slog.Default(),
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) nextInterval() time.Duration {
	if c.jitter <= 0 {
		return c.interval
	}
	//nolint:gosec // G404: jitter does not need cryptographic randomness
	offset := time.Duration(rand.Int64N(int64(2*c.jitter))) - c.jitter
	return max(c.interval+offset, time.Second)
}

// Trigger asks for an extra cycle. Requests made while one is pending
// collapse into it.
func (c *Coordinator) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Start runs a cycle immediately, then on every tick and Trigger until ctx
// is cancelled or Stop is called. Cycle errors are logged, never returned.
func (c *Coordinator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
	}()

	c.runOnce(runCtx)

	var tick <-chan time.Time
	var ticker *time.Ticker
	if c.interval > 0 {
		c.logger.Info("Scheduling DataSource reloads", "interval", c.interval, "jitter", c.jitter)
		ticker = time.NewTicker(c.nextInterval())
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			c.runOnce(runCtx)
			ticker.Reset(c.nextInterval())
		case <-c.trigger:
			c.runOnce(runCtx)
		case <-runCtx.Done():
			c.logger.Info("Load coordinator stopping")
			return nil
		}
	}
}

func (c *Coordinator) runOnce(ctx context.Context) {
	if err := c.runner.Run(ctx); err != nil {
		c.logger.Warn("Load cycle failed", "error", err)
	}
}

// Stop cancels the loop started by Start and waits for it to return.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-c.done
	}
	return nil
}
