package backend

import (
	"context"
	"fmt"
)

// Generator turns a rendered prompt into text.
type Generator interface {
	// Generate runs one generation call. Errors are *GenerationError.
	Generate(ctx context.Context, req Request) (string, error)

	// Name identifies the backend in logs, errors and circuit breakers.
	Name() string
}

// New creates a generator based on the provided configuration.
// This factory function switches on cfg.Type and returns the appropriate adapter.
func New(cfg Config, pm *ProcessManager) (Generator, error) {
	switch cfg.Type {
	case "claude":
		return NewClaudeAdapter(cfg, pm)
	case "codex":
		return NewCodexAdapter(cfg, pm)
	case "goose":
		return NewGooseAdapter(cfg, pm)
	case "gemini":
		return NewGeminiAdapter(cfg)
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// call applies the request deadline to ctx, runs fn and wraps any failure.
func call(ctx context.Context, name string, req Request, fn func(ctx context.Context) (string, error)) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	out, err := fn(ctx)
	if err != nil {
		return "", wrapError(ctx, name, err)
	}
	return out, nil
}
