package backend

import (
	"context"
	"fmt"
)

// MockAdapter returns a deterministic response without calling any model.
// It is selected by SCAFFOLD_TESTING and used in tests.
type MockAdapter struct{}

// NewMockAdapter creates a MockAdapter.
func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

// Name implements Generator.
func (m *MockAdapter) Name() string { return "mock" }

// Generate echoes the first 30 characters of the prompt.
func (m *MockAdapter) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrapError(ctx, m.Name(), err)
	}

	prefix := []rune(req.Prompt)
	if len(prefix) > 30 {
		prefix = prefix[:30]
	}
	return fmt.Sprintf("Test response for prompt: %s...", string(prefix)), nil
}
