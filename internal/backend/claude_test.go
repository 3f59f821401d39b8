package backend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestClaudeAdapter_BuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected []string
	}{
		{
			name:     "prompt only",
			cfg:      Config{Type: "claude"},
			expected: []string{"-p", "Hello", "--output-format", "json"},
		},
		{
			name:     "with model",
			cfg:      Config{Type: "claude", Model: "sonnet"},
			expected: []string{"-p", "Hello", "--output-format", "json", "--model", "sonnet"},
		},
		{
			name:     "with system prompt",
			cfg:      Config{Type: "claude", SystemPrompt: "Be terse."},
			expected: []string{"-p", "Hello", "--output-format", "json", "--system-prompt", "Be terse."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewClaudeAdapter(tt.cfg, nil)
			if err != nil {
				t.Fatalf("NewClaudeAdapter failed: %v", err)
			}

			args := adapter.buildArgs(Request{Prompt: "Hello"})
			if !sliceEqual(args, tt.expected) {
				t.Errorf("Expected args %v, got %v", tt.expected, args)
			}
			if containsString(args, "--resume") || containsString(args, "--session-id") {
				t.Error("Calls must not carry session flags")
			}
		})
	}
}

func TestClaudeAdapter_ParsesJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "string result",
			input:    `{"type":"result","is_error":false,"result":"Hello, world!"}`,
			expected: "Hello, world!",
		},
		{
			name:     "nested content",
			input:    `{"result":{"content":[{"type":"text","text":"Part 1"},{"type":"tool_use","text":"skip"},{"type":"text","text":" Part 2"}]}}`,
			expected: "Part 1 Part 2",
		},
		{
			name:    "error result",
			input:   `{"type":"result","is_error":true,"result":"rate limited"}`,
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			input:   `{not valid`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := parseClaudeResponse([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseClaudeResponse failed: %v", err)
			}
			if text != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, text)
			}
		})
	}
}

func TestClaudeAdapter_Generate(t *testing.T) {
	adapter, err := NewClaudeAdapter(Config{Command: fakeCLI(t, "--claude", "generated plan")}, nil)
	if err != nil {
		t.Fatalf("NewClaudeAdapter failed: %v", err)
	}

	out, err := adapter.Generate(context.Background(), Request{Prompt: "Plan it"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "generated plan" {
		t.Errorf("Expected %q, got %q", "generated plan", out)
	}
}

func TestClaudeAdapter_GenerateFailure(t *testing.T) {
	adapter, _ := NewClaudeAdapter(Config{Command: fakeCLI(t, "--stderr", "not logged in", "--exit-code", "2")}, nil)

	_, err := adapter.Generate(context.Background(), Request{Prompt: "Plan it"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("Expected ErrGeneration, got %v", err)
	}
	if errors.Is(err, ErrGenerationTimeout) {
		t.Error("Exit failure must not be reported as a timeout")
	}
	if !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("Expected stderr in error, got %v", err)
	}
}

func TestClaudeAdapter_GenerateTimeout(t *testing.T) {
	adapter, _ := NewClaudeAdapter(Config{Command: fakeCLI(t, "--sleep", "30")}, nil)

	_, err := adapter.Generate(context.Background(), Request{Prompt: "slow", Timeout: 200 * time.Millisecond})
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Fatalf("Expected ErrGenerationTimeout, got %v", err)
	}

	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Backend != "claude" {
		t.Errorf("Expected *GenerationError from claude, got %T: %v", err, err)
	}
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsString(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
