package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/common"
	"github.com/AtlasMeridia/living-archive/internal/policy"
)

// RetryPolicy is the shared bounded-backoff schedule applied to every
// provider. Each attempt is a discrete step: its own timeout, its own
// metadata. Retryable failures are exactly the ErrProviderTransient class
// (timeout, rate limit, transient process/network error); schema and auth
// failures propagate immediately.
type RetryPolicy struct {
	Attempts       int           // total attempts, >= 1
	BaseDelay      time.Duration // first backoff delay
	MaxDelay       time.Duration // backoff cap
	AttemptTimeout time.Duration // per individual call attempt, not per chunk
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = 5 * time.Minute
	}
	return p
}

// retrying decorates an AnalysisProvider with the shared retry policy.
// The wrapped provider's metadata is passed through with Attempts set to
// the number of calls actually made.
type retrying struct {
	inner  AnalysisProvider
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps p with the shared bounded-backoff retry policy.
func WithRetry(p AnalysisProvider, pol RetryPolicy, logger *slog.Logger) AnalysisProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{inner: p, policy: pol.withDefaults(), logger: logger}
}

func (r *retrying) Name() string        { return r.inner.Name() }
func (r *retrying) Trust() policy.Trust { return r.inner.Trust() }

func (r *retrying) Analyze(ctx context.Context, text string, docCtx DocumentContext) (analysis.PartialAnalysis, analysis.InferenceMetadata, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.AttemptTimeout)
		a, meta, err := r.inner.Analyze(attemptCtx, text, docCtx)
		cancel()

		if err == nil {
			meta.Attempts = attempt
			return a, meta, nil
		}

		// An attempt that hit its own deadline is transient; a cancelled
		// parent context is not ours to retry.
		if ctx.Err() != nil {
			return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: attempt timeout: %v", common.ErrProviderTransient, err)
		}

		lastErr = err
		if !errors.Is(err, common.ErrProviderTransient) {
			return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, err
		}
		if attempt == r.policy.Attempts {
			break
		}

		delay := r.policy.BaseDelay << (attempt - 1)
		if delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
		r.logger.Warn("provider.retry",
			"provider", r.inner.Name(),
			"attempt", attempt,
			"max_attempts", r.policy.Attempts,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return analysis.PartialAnalysis{}, analysis.InferenceMetadata{},
		fmt.Errorf("retries exhausted after %d attempts: %w", r.policy.Attempts, lastErr)
}
