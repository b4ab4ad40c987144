package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Retry and rate limit defaults.
const (
	defaultAttemptTimeout = 60 * time.Second
	defaultMaxRetries     = 3
	defaultBaseBackoff    = 1 * time.Second
	defaultRateLimit      = 50.0 / 60.0 // ~0.83 requests per second
	defaultBurst          = 5
)

// ResilientConfig configures Resilient.
type ResilientConfig struct {
	// AttemptTimeout bounds each attempt.
	// Default: 60s
	AttemptTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Negative disables retries. Default: 3
	MaxRetries int

	// BaseBackoff is the wait before the first retry; it doubles each retry.
	// Default: 1s
	BaseBackoff time.Duration

	// RateLimit is the sustained request rate per second. Default: 50/min
	RateLimit float64

	// Burst is the token bucket size. Default: 5
	Burst int
}

// ApplyDefaults sets default values for unset fields.
func (c *ResilientConfig) ApplyDefaults() {
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = defaultAttemptTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseBackoff == 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst == 0 {
		c.Burst = defaultBurst
	}
}

// Resilient wraps a Generator with a token-bucket rate limit, a per-attempt
// timeout and exponential backoff on transient failures. Cancellation of the
// caller's context is never retried.
type Resilient struct {
	next    Generator
	config  ResilientConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewResilient wraps next.
func NewResilient(next Generator, config ResilientConfig, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	return &Resilient{
		next:    next,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		logger:  logger,
	}
}

// Generate calls the wrapped Generator, retrying transient failures. The
// returned error always matches ErrGenerationFailed.
func (r *Resilient) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.config.BaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ctx.Err())
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limiter: %w", ErrGenerationFailed, err)
		}

		text, err := r.attempt(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		reason, ok := retryReason(err)
		if !ok || ctx.Err() != nil {
			break
		}
		if attempt < r.config.MaxRetries {
			RetriesTotal.WithLabelValues(reason).Inc()
			r.logger.Warn("retrying generation",
				zap.Int("attempt", attempt+1),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
	}

	FailuresTotal.Inc()
	if !errors.Is(lastErr, ErrGenerationFailed) {
		lastErr = fmt.Errorf("%w: %w", ErrGenerationFailed, lastErr)
	}
	return "", lastErr
}

func (r *Resilient) attempt(ctx context.Context, req Request) (string, error) {
	actx, cancel := context.WithTimeout(ctx, r.config.AttemptTimeout)
	defer cancel()
	return r.next.Generate(actx, req)
}

// retryReason classifies err as transient and names why.
func retryReason(err error) (string, bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return "", false
	case llms.IsRateLimitError(err):
		return "rate_limit", true
	case llms.IsProviderUnavailableError(err):
		return "unavailable", true
	case llms.IsTimeoutError(err), errors.Is(err, context.DeadlineExceeded):
		return "timeout", true
	default:
		return "", false
	}
}

var _ Generator = (*Resilient)(nil)
