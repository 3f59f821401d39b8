package backend

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFactory_CreatesAdapters(t *testing.T) {
	pm := NewProcessManager()

	tests := []struct {
		cfg  Config
		name string
	}{
		{Config{Type: "claude", WorkDir: "/tmp/test"}, "claude"},
		{Config{Type: "codex", WorkDir: "/tmp/test"}, "codex"},
		{Config{Type: "goose", Provider: "ollama"}, "goose"},
		{Config{Type: "mock"}, "mock"},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			gen, err := New(tt.cfg, pm)
			if err != nil {
				t.Fatalf("Expected no error creating %s adapter, got: %v", tt.cfg.Type, err)
			}
			if gen == nil {
				t.Fatal("Expected non-nil generator, got nil")
			}
			if gen.Name() != tt.name {
				t.Errorf("Expected name %q, got %q", tt.name, gen.Name())
			}
		})
	}
}

func TestFactory_UnknownType(t *testing.T) {
	_, err := New(Config{Type: "unknown"}, NewProcessManager())
	if err == nil {
		t.Fatal("Expected error for unknown backend type, got nil")
	}
	if !strings.Contains(err.Error(), "unknown backend type") {
		t.Errorf("Expected 'unknown backend type' error, got: %v", err)
	}
}

func TestFactory_GeminiRequiresKey(t *testing.T) {
	_, err := New(Config{Type: "gemini"}, nil)
	if err == nil {
		t.Fatal("Expected error for gemini without API key")
	}
}

func TestGeminiAdapter_ContentConfig(t *testing.T) {
	adapter := &GeminiAdapter{model: defaultGeminiModel, systemPrompt: "sys"}

	cfg := adapter.contentConfig(Request{Format: "json"})
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("Expected JSON mime type, got %q", cfg.ResponseMIMEType)
	}
	if cfg.SystemInstruction == nil {
		t.Error("Expected system instruction to be set")
	}

	cfg = adapter.contentConfig(Request{Format: "text"})
	if cfg.ResponseMIMEType != "" {
		t.Errorf("Expected no mime type for text, got %q", cfg.ResponseMIMEType)
	}
}

func TestMockAdapter(t *testing.T) {
	gen := NewMockAdapter()

	out, err := gen.Generate(context.Background(), Request{Prompt: "Create a detailed development plan for a todo app"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	want := "Test response for prompt: Create a detailed development ..."
	if out != want {
		t.Errorf("Expected %q, got %q", want, out)
	}

	out, _ = gen.Generate(context.Background(), Request{Prompt: "short"})
	if out != "Test response for prompt: short..." {
		t.Errorf("Unexpected short prompt output %q", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Generate(ctx, Request{Prompt: "x"}); !errors.Is(err, ErrGeneration) {
		t.Errorf("Expected ErrGeneration on cancelled context, got %v", err)
	}
}

func TestGenerationError_Matching(t *testing.T) {
	timeout := &GenerationError{Backend: "claude", Err: context.DeadlineExceeded, Timeout: true}
	if !errors.Is(timeout, ErrGeneration) || !errors.Is(timeout, ErrGenerationTimeout) {
		t.Error("timeout error should match both sentinels")
	}
	if !errors.Is(timeout, context.DeadlineExceeded) {
		t.Error("timeout error should unwrap to the cause")
	}

	plain := &GenerationError{Backend: "claude", Err: errors.New("boom")}
	if errors.Is(plain, ErrGenerationTimeout) {
		t.Error("plain failure should not match ErrGenerationTimeout")
	}
	if !strings.Contains(plain.Error(), "claude") {
		t.Errorf("error should name the backend: %q", plain.Error())
	}
}
