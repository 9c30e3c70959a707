package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	alexerrors "paperpost-orchestrator/internal/errors"
	"paperpost-orchestrator/internal/domain/ports"
	"paperpost-orchestrator/internal/logging"
)

// RetryClient wraps an inner ports.LLMClient with a circuit breaker and
// jittered exponential backoff, grounded on the teacher's
// internal/infra/llm/retry_client.go. Timeout and transient Unavailable
// errors are retried up to 2 times (spec §5: "Timeout is treated as a
// retriable error up to 2 retries with exponential backoff (base 500ms,
// factor 2, jitter +-20%)"); the circuit breaker is the teacher's own
// internal/errors.CircuitBreaker, composed with cenkalti/backoff/v5 for the
// inter-attempt delay instead of the teacher's hand-rolled calculateBackoff,
// to put a second pack dependency to real use.
type RetryClient struct {
	inner   ports.LLMClient
	breaker *alexerrors.CircuitBreaker
	logger  logging.Logger
	name    string
}

// NewRetryClient wraps inner with retry + circuit-breaker protection under
// the named breaker (one breaker per logical provider, matching the
// teacher's CircuitBreakerManager.Get(name) memoization).
func NewRetryClient(name string, inner ports.LLMClient, manager *alexerrors.CircuitBreakerManager, logger logging.Logger) *RetryClient {
	return &RetryClient{
		inner:   inner,
		breaker: manager.Get(name),
		logger:  logging.OrNop(logger),
		name:    name,
	}
}

var _ ports.LLMClient = (*RetryClient)(nil)

// Healthy reports whether the breaker currently allows calls through,
// i.e. the provider has not been tripped open by repeated failures. Used
// by the /health endpoint's services.llm flag.
func (c *RetryClient) Healthy() bool {
	return c.breaker.State() != alexerrors.StateOpen
}

// Complete retries Timeout/transient-Unavailable failures up to twice,
// honoring cancellation, before giving up with the last classified error.
func (c *RetryClient) Complete(ctx context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	operation := func() (ports.CompletionResponse, error) {
		resp, err := alexerrors.ExecuteFunc(c.breaker, ctx, func(ctx context.Context) (ports.CompletionResponse, error) {
			return c.inner.Complete(ctx, req)
		})
		if err != nil {
			if alexerrors.IsPermanent(err) {
				return resp, backoff.Permanent(err)
			}
			c.logger.Warn("[%s] llm call failed, will retry if transient: %v", c.name, alexerrors.FormatForLLM(err))
			return resp, err
		}
		return resp, nil
	}

	backoffPolicy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.2),
		backoff.WithMaxInterval(5*time.Second),
	)

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(3), // initial attempt + 2 retries, per spec §5
	)
	if err != nil {
		c.logger.Error("[%s] llm call exhausted retries: %v", c.name, alexerrors.FormatForLLM(err))
		return ports.CompletionResponse{}, err
	}
	return resp, nil
}
