package provider

import (
	"context"
	"log/slog"

	"github.com/aqlhr/askaql/internal/log"
)

// Chain tries providers in order until one succeeds. There is no retry
// loop beyond the single pass: one attempt per provider, then the
// caller's canned fallback.
type Chain struct {
	providers []Completer
	logger    log.Logger
}

// NewChain creates a fallback chain. Order matters: the first provider
// is primary and the only one used for streaming.
func NewChain(logger log.Logger, providers ...Completer) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{providers: providers, logger: logger}
}

// Generate returns the first successful completion and the name of the
// provider that produced it. If every provider fails the returned error
// is an *ExhaustedError carrying each attempt's reason.
func (c *Chain) Generate(ctx context.Context, system, user string) (string, string, error) {
	var attempts []Attempt
	for _, p := range c.providers {
		answer, err := p.Complete(ctx, system, user)
		if err == nil {
			return answer, p.Name(), nil
		}
		c.logger.Warn("provider attempt failed", "provider", p.Name(), "error", err)
		attempts = append(attempts, Attempt{Provider: p.Name(), Err: err})
	}
	return "", "", &ExhaustedError{Attempts: attempts}
}

// GenerateStream streams from the primary provider only; fallback for a
// failed stream is the caller's concern (it degrades to synchronous
// generation plus simulated streaming).
func (c *Chain) GenerateStream(ctx context.Context, system, user string, fn func(delta string) error) (string, error) {
	if len(c.providers) == 0 {
		return "", &ExhaustedError{}
	}
	primary := c.providers[0]
	if err := primary.Stream(ctx, system, user, fn); err != nil {
		return "", err
	}
	return primary.Name(), nil
}
