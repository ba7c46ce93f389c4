package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

func testBackoffConfig() config.BackoffConfig {
	return config.BackoffConfig{
		BaseDelayMs:          2000,
		SoftLimitCeilingMs:   60000,
		SoftLimitMaxAttempts: 3,
		ErrorCeilingMs:       15000,
		ErrorMaxAttempts:     2,
		JitterFraction:       0.2,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.Classification
	}{
		{"nil", nil, model.ClassSuccess},
		{"soft", fmt.Errorf("GET /x: %w", ErrSoftLimited), model.ClassSoftLimited},
		{"hard", fmt.Errorf("decode: %w", ErrHardError), model.ClassHardError},
		{"network sentinel", fmt.Errorf("dial: %w", ErrNetworkError), model.ClassNetworkError},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), model.ClassNetworkError},
		{"net.Error", &net.DNSError{Err: "no such host", Name: "api.example", IsTimeout: true}, model.ClassNetworkError},
		{"unknown", errors.New("boom"), model.ClassHardError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestNextAction_SoftLimitedTwiceThenSuccess(t *testing.T) {
	stats := model.NewRequestStats()
	p := NewBackoffPolicy(testBackoffConfig(), stats, WithRand(rand.New(rand.NewSource(7))))
	now := time.Date(2024, 10, 12, 9, 0, 0, 0, time.UTC)
	state := &RetryState{}

	d := p.NextAction(state, model.ClassSoftLimited, now)
	require.Equal(t, ActionRetry, d.Action)
	d = p.NextAction(state, model.ClassSoftLimited, now)
	require.Equal(t, ActionRetry, d.Action)
	assert.Equal(t, now.Add(d.Delay), state.NextAttemptAt)

	d = p.NextAction(state, model.ClassSuccess, now)
	assert.Equal(t, ActionSucceed, d.Action)
	assert.Equal(t, 2, state.Attempts)
	assert.Equal(t, model.ClassSuccess, state.LastClassification)

	assert.Equal(t, 2, stats.Counts[model.ClassSoftLimited])
	assert.Equal(t, 1, stats.Counts[model.ClassSuccess])
}

func TestNextAction_BudgetBoundsFetches(t *testing.T) {
	p := NewBackoffPolicy(testBackoffConfig(), nil)

	for _, c := range []model.Classification{model.ClassSoftLimited, model.ClassHardError, model.ClassNetworkError} {
		t.Run(string(c), func(t *testing.T) {
			state := &RetryState{}
			fetches := 0
			for {
				fetches++
				if p.NextAction(state, c, time.Now()).Action == ActionFail {
					break
				}
				require.LessOrEqual(t, fetches, 10)
			}
			assert.Equal(t, 1+p.MaxAttempts(c), fetches)
		})
	}
}

func TestBaseDelay_MonotonicAndCapped(t *testing.T) {
	p := NewBackoffPolicy(testBackoffConfig(), nil)

	prev := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		d := p.BaseDelay(model.ClassSoftLimited, attempt)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, 60*time.Second)
		prev = d
	}
	assert.Equal(t, 2*time.Second, p.BaseDelay(model.ClassSoftLimited, 0))
	assert.Equal(t, 8*time.Second, p.BaseDelay(model.ClassSoftLimited, 2))
	assert.Equal(t, 15*time.Second, p.BaseDelay(model.ClassHardError, 3))
}

func TestNextAction_JitterWithinBandAndCeiling(t *testing.T) {
	p := NewBackoffPolicy(testBackoffConfig(), nil, WithRand(rand.New(rand.NewSource(42))))

	for i := 0; i < 200; i++ {
		state := &RetryState{Attempts: 1}
		d := p.NextAction(state, model.ClassNetworkError, time.Now())
		require.Equal(t, ActionRetry, d.Action)
		assert.GreaterOrEqual(t, d.Delay, time.Duration(float64(4*time.Second)*0.8))
		assert.LessOrEqual(t, d.Delay, time.Duration(float64(4*time.Second)*1.2))
	}

	for i := 0; i < 200; i++ {
		state := &RetryState{Attempts: 2}
		d := p.NextAction(state, model.ClassSoftLimited, time.Now())
		require.Equal(t, ActionRetry, d.Action)
		assert.LessOrEqual(t, d.Delay, 60*time.Second)
	}
}

func TestNextAction_NoJitter(t *testing.T) {
	cfg := testBackoffConfig()
	cfg.JitterFraction = 0
	p := NewBackoffPolicy(cfg, nil)

	state := &RetryState{}
	assert.Equal(t, 2*time.Second, p.NextAction(state, model.ClassHardError, time.Now()).Delay)
	assert.Equal(t, 4*time.Second, p.NextAction(state, model.ClassHardError, time.Now()).Delay)
	assert.Equal(t, ActionFail, p.NextAction(state, model.ClassHardError, time.Now()).Action)
}
