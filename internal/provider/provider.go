// Package provider wraps the AI vendor chat-completion APIs behind a
// small interface and an ordered fallback chain. Both configured vendors
// speak the OpenAI wire protocol, so a single client type covers them
// with different base URLs.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Completer is one provider in the fallback chain.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
	Stream(ctx context.Context, system, user string, fn func(delta string) error) error
}

// Attempt records the outcome of one failed provider attempt.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError reports that every provider in the chain failed, with
// the per-provider reasons. Callers substitute a canned answer rather
// than surfacing this to end users.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no providers configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}
