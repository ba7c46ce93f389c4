// Package skip holds the session-level failure-rate policy: individual item failures are
// tolerated, but sustained batch failure rates abort the session.
package skip

import "fmt"

// FailureRatePolicy aborts after Consecutive batches in a row whose failure rate exceeds Threshold.
type FailureRatePolicy struct {
	threshold   float64
	consecutive int
	streak      int
}

// NewFailureRatePolicy creates the policy. consecutive below 1 is treated as 1.
func NewFailureRatePolicy(threshold float64, consecutive int) *FailureRatePolicy {
	if consecutive < 1 {
		consecutive = 1
	}
	return &FailureRatePolicy{threshold: threshold, consecutive: consecutive}
}

// ObserveBatch records one finished batch and reports whether the session must abort.
// Empty batches leave the streak unchanged.
func (p *FailureRatePolicy) ObserveBatch(failed, total int) bool {
	if total <= 0 {
		return p.streak >= p.consecutive
	}
	if float64(failed)/float64(total) > p.threshold {
		p.streak++
	} else {
		p.streak = 0
	}
	return p.streak >= p.consecutive
}

// Streak returns the number of consecutive offending batches observed.
func (p *FailureRatePolicy) Streak() int {
	return p.streak
}

// Reason describes the abort condition for session notes.
func (p *FailureRatePolicy) Reason() string {
	return fmt.Sprintf("failure rate above %.0f%% in %d consecutive batches", p.threshold*100, p.streak)
}
