package generation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func fastConfig() ResilientConfig {
	return ResilientConfig{
		AttemptTimeout: time.Second,
		MaxRetries:     2,
		BaseBackoff:    time.Millisecond,
		RateLimit:      1000,
		Burst:          100,
	}
}

func TestResilient_RetriesTransientFailures(t *testing.T) {
	m := &scriptedModel{
		errs: []error{
			errors.New("API returned unexpected status code: 503"),
			errors.New("too many requests"),
		},
		text: "Melbourne.",
	}
	r := NewResilient(NewModelGenerator(m, "openai/test", 0.5, nil), fastConfig(), nil)

	out, err := r.Generate(context.Background(), Request{UserMessage: "Where?"})
	require.NoError(t, err)
	assert.Equal(t, "Melbourne.", out)
	assert.Equal(t, 3, m.calls)
}

func TestResilient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	next := GeneratorFunc(func(context.Context, Request) (string, error) {
		calls.Add(1)
		return "", llms.NewError(llms.ErrCodeProviderUnavailable, "openai", "down")
	})
	r := NewResilient(next, fastConfig(), nil)

	_, err := r.Generate(context.Background(), Request{UserMessage: "hi"})
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResilient_DoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	next := GeneratorFunc(func(context.Context, Request) (string, error) {
		calls.Add(1)
		return "", llms.NewError(llms.ErrCodeAuthentication, "openai", "bad key")
	})
	r := NewResilient(next, fastConfig(), nil)

	_, err := r.Generate(context.Background(), Request{UserMessage: "hi"})
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.True(t, llms.IsAuthenticationError(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestResilient_AttemptTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	next := GeneratorFunc(func(ctx context.Context, _ Request) (string, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "ok", nil
	})
	cfg := fastConfig()
	cfg.AttemptTimeout = 20 * time.Millisecond
	r := NewResilient(next, cfg, nil)

	out, err := r.Generate(context.Background(), Request{UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResilient_CallerCancellationIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	next := GeneratorFunc(func(ctx context.Context, _ Request) (string, error) {
		calls.Add(1)
		cancel()
		return "", ctx.Err()
	})
	r := NewResilient(next, fastConfig(), nil)

	_, err := r.Generate(ctx, Request{UserMessage: "hi"})
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResilientConfig_Defaults(t *testing.T) {
	var c ResilientConfig
	c.ApplyDefaults()
	assert.Equal(t, 60*time.Second, c.AttemptTimeout)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, time.Second, c.BaseBackoff)
	assert.Equal(t, 5, c.Burst)

	c = ResilientConfig{MaxRetries: -1}
	c.ApplyDefaults()
	assert.Zero(t, c.MaxRetries)
}
