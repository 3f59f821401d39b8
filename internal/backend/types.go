package backend

import "time"

// Request is one generation call.
type Request struct {
	Prompt  string
	Format  string        // "text", "json", "markdown" or "yaml"
	Tier    string        // Tier that issued the call, for logging
	Timeout time.Duration // Per-call deadline, 0 means none
}

// Config selects and configures a generator.
type Config struct {
	Type         string // "claude", "codex", "goose", "gemini" or "mock"
	Command      string // Binary override for CLI backends
	WorkDir      string
	Model        string
	Provider     string // For Goose local LLMs (e.g., "ollama", "lmstudio", "llama.cpp")
	APIKey       string // Gemini only
	SystemPrompt string
}
