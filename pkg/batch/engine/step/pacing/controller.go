// Package pacing decides the delay before each outbound request and rotates the
// request identity on a fixed cadence.
package pacing

import (
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
)

// Decision is the pacing outcome for one request.
type Decision struct {
	// Index is the 1-based request number within this controller.
	Index int64
	// Delay is how long the caller waits before issuing the request.
	Delay time.Duration
	// Identity is the outbound identity token (User-Agent) to use.
	Identity string
}

// Controller holds the request counter and per-minute window of one session. It performs no I/O.
type Controller struct {
	mu          sync.Mutex
	minDelay    time.Duration
	maxDelay    time.Duration
	rotateEvery int64
	identities  []string
	requests    int64
	rnd         *rand.Rand
	window      *rate.Limiter
	clock       clock.Clock
}

// Option configures a Controller.
type Option func(*Controller)

// WithRand sets the random source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rnd = r }
}

// WithClock sets the clock the per-minute window is measured against.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// NewController creates a Controller from the pacing configuration.
func NewController(cfg config.PacingConfig, opts ...Option) *Controller {
	c := &Controller{
		minDelay:    cfg.MinDelay(),
		maxDelay:    cfg.MaxDelay(),
		rotateEvery: int64(cfg.RotateIdentityEvery),
		identities:  append([]string(nil), cfg.UserAgents...),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		window:      rate.NewLimiter(rate.Inf, 1),
		clock:       clock.Real(),
	}
	if cfg.RequestsPerMinute > 0 {
		c.window = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	if c.rotateEvery <= 0 {
		c.rotateEvery = 1
	}
	if c.maxDelay < c.minDelay {
		c.maxDelay = c.minDelay
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeforeRequest advances the counter and returns the delay and identity for the next request.
// The delay is the random pacing delay, stretched when needed so that no two requests of
// the session are closer than one per-minute slot.
// Requests 1..N use identity 0, N+1..2N identity 1, and so on, cycling through the pool.
func (c *Controller) BeforeRequest() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++
	d := Decision{Index: c.requests, Delay: c.minDelay}
	if span := c.maxDelay - c.minDelay; span > 0 {
		d.Delay += time.Duration(c.rnd.Int63n(int64(span) + 1))
	}
	at := c.clock.Now().Add(d.Delay)
	d.Delay += c.window.ReserveN(at, 1).DelayFrom(at)
	if len(c.identities) > 0 {
		slot := (c.requests - 1) / c.rotateEvery
		d.Identity = c.identities[slot%int64(len(c.identities))]
	}
	return d
}

// Requests returns the number of requests paced so far.
func (c *Controller) Requests() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}
