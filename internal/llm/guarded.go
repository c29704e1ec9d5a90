package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"

	"github.com/zombor/superclaims/internal/metrics"
	"github.com/zombor/superclaims/internal/resilience"
)

// GuardConfig bounds every call made through a Guarded client.
type GuardConfig struct {
	// Timeout applies to each attempt. Zero disables it.
	Timeout time.Duration
	// RequestsPerSecond is the client-side rate limit. Zero disables it.
	RequestsPerSecond float64
	Burst             int
}

// Guarded wraps a Client with a per-attempt timeout, a rate limiter, retries
// and a circuit breaker, and reports each call to the metrics pipeline.
type Guarded struct {
	next     Client
	cfg      GuardConfig
	limiter  *rate.Limiter
	executor *resilience.Executor
	metrics  *metrics.Pipeline
}

// NewGuarded wraps next. executor and m may be nil.
func NewGuarded(next Client, cfg GuardConfig, executor *resilience.Executor, m *metrics.Pipeline) *Guarded {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Guarded{
		next:     next,
		cfg:      cfg,
		limiter:  limiter,
		executor: executor,
		metrics:  m,
	}
}

func (g *Guarded) Name() string {
	return g.next.Name()
}

func (g *Guarded) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.do(ctx, "complete", func(ctx context.Context) error {
		text, err := g.next.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (g *Guarded) CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	var out string
	err := g.do(ctx, "complete_with_image", func(ctx context.Context) error {
		text, err := g.next.CompleteWithImage(ctx, prompt, image, mimeType)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (g *Guarded) Close() error {
	return g.next.Close()
}

func (g *Guarded) do(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()

	attempt := func(ctx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()
		}
		return fn(ctx)
	}

	var err error
	if g.executor != nil {
		err = g.executor.Execute(ctx, "llm."+g.next.Name()+"."+operation, attempt, ClassifyError)
	} else {
		err = attempt(ctx)
	}

	g.metrics.ObserveModelCall(g.next.Name(), operation, err, time.Since(start))
	return err
}

// ClassifyError decides whether a failed model call is worth retrying and
// whether it counts against the circuit breaker.
func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, ErrEmptyResponse) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: false}
	}

	if code, ok := statusCode(err); ok {
		transient := code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		return resilience.ErrorClassification{Retryable: transient, RecordFailure: transient}
	}

	// Network errors and anything unrecognised.
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func statusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code, true
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return coded.HTTPCode(), true
	}
	return 0, false
}
