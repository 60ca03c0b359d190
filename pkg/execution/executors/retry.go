package executors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

// Default retry backoff.
const (
	DefaultRetryInitialDelay = 100 * time.Millisecond
	DefaultRetryMaxDelay     = 10 * time.Second
	DefaultRetryMultiplier   = 2.0
)

// RetryPolicy configures how failed node executions are retried.
type RetryPolicy struct {
	// MaxAttempts is the number of retries after the first attempt. Zero
	// disables retrying.
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// NonRetryable lists error patterns (regular expressions or
	// case-insensitive substrings) that fail immediately.
	NonRetryable []string
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultRetryInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryMaxDelay
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = DefaultRetryMultiplier
	}
	return p
}

// RetryError is returned when every attempt failed.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%v (after %d attempts)", e.Err, e.Attempts)
}

func (e *RetryError) Unwrap() error { return e.Err }

// WithRetry returns an executor that retries failed executions of next with
// exponential backoff and jitter. Context errors and missing executors are
// never retried.
func WithRetry(policy RetryPolicy, next Executor) Executor {
	if policy.MaxAttempts <= 0 {
		return next
	}
	p := policy.withDefaults()
	return ExecutorFunc(func(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
		var lastErr error
		for attempt := 0; attempt <= p.MaxAttempts; attempt++ {
			result, err := next.Execute(ctx, node, input.Clone())
			if err == nil {
				return result, nil
			}
			lastErr = err

			if !p.shouldRetry(err) || ctx.Err() != nil {
				return nil, err
			}
			if attempt == p.MaxAttempts {
				break
			}

			timer := time.NewTimer(p.delay(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, &RetryError{Attempts: attempt + 1, Err: ctx.Err()}
			}
		}
		return nil, &RetryError{Attempts: p.MaxAttempts + 1, Err: lastErr}
	})
}

// delay computes the wait before the next attempt: InitialDelay times
// BackoffMultiplier^attempt, ±25% jitter, capped at MaxDelay.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if math.IsInf(d, 0) || math.IsNaN(d) {
		d = float64(p.MaxDelay)
	}
	d += d * 0.25 * (rand.Float64()*2 - 1)
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNoExecutor) {
		return false
	}
	return !matchesErrorPatterns(err, p.NonRetryable)
}

// matchesErrorPatterns reports whether the error message matches any pattern
// as a regular expression or as a case-insensitive substring.
func matchesErrorPatterns(err error, patterns []string) bool {
	msg := err.Error()
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, msg); matched {
			return true
		}
		if strings.Contains(strings.ToLower(msg), strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
