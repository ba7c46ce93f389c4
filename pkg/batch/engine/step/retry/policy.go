// Package retry classifies outbound call results and decides, per work item, whether to
// retry and how long to back off.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

var (
	// ErrSoftLimited marks an explicit rate-limit signal from the source.
	ErrSoftLimited = errors.New("rate limited by source")
	// ErrHardError marks a malformed or unexpected response.
	ErrHardError = errors.New("unexpected response from source")
	// ErrNetworkError marks a connection failure or timeout.
	ErrNetworkError = errors.New("network error")
)

func init() {
	exception.RegisterErrorType("retry.ErrSoftLimited", ErrSoftLimited)
	exception.RegisterErrorType("retry.ErrHardError", ErrHardError)
	exception.RegisterErrorType("retry.ErrNetworkError", ErrNetworkError)
}

// Classify maps a fetch result to a classification. A nil error is a success; deadline
// expiry and net.Error count as network errors; unknown errors count as hard errors.
func Classify(err error) model.Classification {
	if err == nil {
		return model.ClassSuccess
	}
	var netErr net.Error
	switch {
	case errors.Is(err, ErrSoftLimited):
		return model.ClassSoftLimited
	case errors.Is(err, ErrNetworkError), errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return model.ClassNetworkError
	default:
		return model.ClassHardError
	}
}

// Action is the decision taken after a classified call.
type Action int

const (
	ActionSucceed Action = iota
	ActionRetry
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionSucceed:
		return "succeed"
	case ActionRetry:
		return "retry"
	default:
		return "fail"
	}
}

// Decision is returned by NextAction. Delay is set for ActionRetry only.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// RetryState is the per-item retry bookkeeping. It lives for one item's processing.
type RetryState struct {
	// Attempts is the number of retries consumed.
	Attempts           int
	LastClassification model.Classification
	NextAttemptAt      time.Time
}

// BackoffPolicy decides retries with exponential backoff and jitter. Soft limits and
// errors share the schedule but use separate ceilings and budgets. Every classification
// passed to NextAction is tallied into the session's RequestStats.
type BackoffPolicy struct {
	cfg   config.BackoffConfig
	stats *model.RequestStats

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a BackoffPolicy.
type Option func(*BackoffPolicy)

// WithRand sets the jitter source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(p *BackoffPolicy) { p.rnd = r }
}

// NewBackoffPolicy creates a policy tallying into stats. stats may be nil.
func NewBackoffPolicy(cfg config.BackoffConfig, stats *model.RequestStats, opts ...Option) *BackoffPolicy {
	p := &BackoffPolicy{
		cfg:   cfg,
		stats: stats,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts returns the retry budget for a classification.
func (p *BackoffPolicy) MaxAttempts(c model.Classification) int {
	switch c {
	case model.ClassSoftLimited:
		return p.cfg.SoftLimitMaxAttempts
	case model.ClassHardError, model.ClassNetworkError:
		return p.cfg.ErrorMaxAttempts
	default:
		return 0
	}
}

// Ceiling returns the delay cap for a classification.
func (p *BackoffPolicy) Ceiling(c model.Classification) time.Duration {
	if c == model.ClassSoftLimited {
		return p.cfg.SoftLimitCeiling()
	}
	return p.cfg.ErrorCeiling()
}

// BaseDelay returns the un-jittered delay for the retry following attempts retries:
// min(base * 2^attempts, ceiling).
func (p *BackoffPolicy) BaseDelay(c model.Classification, attempts int) time.Duration {
	ceiling := p.Ceiling(c)
	d := float64(p.cfg.BaseDelay()) * math.Pow(2, float64(attempts))
	if d >= float64(ceiling) {
		return ceiling
	}
	return time.Duration(d)
}

// NextAction records c and decides what to do next. On ActionRetry the state's attempt
// counter is incremented and NextAttemptAt is set relative to now.
func (p *BackoffPolicy) NextAction(state *RetryState, c model.Classification, now time.Time) Decision {
	if p.stats != nil {
		p.stats.Record(c)
	}
	state.LastClassification = c

	if c == model.ClassSuccess {
		return Decision{Action: ActionSucceed}
	}
	if state.Attempts >= p.MaxAttempts(c) {
		return Decision{Action: ActionFail}
	}

	delay := p.jitter(p.BaseDelay(c, state.Attempts), p.Ceiling(c))
	state.Attempts++
	state.NextAttemptAt = now.Add(delay)
	return Decision{Action: ActionRetry, Delay: delay}
}

// jitter scales d by a uniform factor in [1-j, 1+j] and clamps it to ceiling.
func (p *BackoffPolicy) jitter(d, ceiling time.Duration) time.Duration {
	j := p.cfg.JitterFraction
	if j <= 0 || d <= 0 {
		return d
	}
	p.mu.Lock()
	factor := 1 + j*(2*p.rnd.Float64()-1)
	p.mu.Unlock()

	out := time.Duration(float64(d) * factor)
	if out > ceiling {
		return ceiling
	}
	if out < 0 {
		return 0
	}
	return out
}
