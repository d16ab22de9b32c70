package resilience

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/retry"
)

// Policy composes a circuit breaker with a retry schedule into one
// injectable strategy for external service calls. Each external dependency
// (embedding provider, enrichment provider, store) gets its own Policy so
// failures in one do not trip the others.
type Policy struct {
	breaker  *CircuitBreaker
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewPolicy creates a resilience policy around the given breaker and retry config.
// A nil retryCfg uses retry.DefaultConfig().
func NewPolicy(breaker *CircuitBreaker, retryCfg *retry.Config, logger *zap.Logger) *Policy {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	return &Policy{
		breaker:  breaker,
		retryCfg: retryCfg,
		logger:   logger.Named("resilience"),
	}
}

// Execute runs fn under the policy: the call is rejected fast with
// apperrors.ErrUnavailable while the circuit is open, transient failures are
// retried with backoff, and the breaker records the final outcome.
// Validation-class errors are never retried (retry.IsRetryable).
func (p *Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	allowed, reason := p.breaker.Allow()
	if !allowed {
		p.logger.Warn("Call rejected by open circuit", zap.Error(reason))
		return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, reason)
	}

	err := retry.DoIfRetryable(ctx, p.retryCfg, func() error {
		return fn(ctx)
	})
	if err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// ExecuteWithResult runs fn under the policy and returns its result.
func ExecuteWithResult[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		r, err := fn(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// State exposes the breaker state for health reporting.
func (p *Policy) State() CircuitState {
	return p.breaker.State()
}
