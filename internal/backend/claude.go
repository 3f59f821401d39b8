package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ClaudeAdapter generates text with the Claude Code CLI. Every call is a
// fresh, non-interactive invocation.
type ClaudeAdapter struct {
	command      string
	workDir      string
	model        string
	systemPrompt string
	procMgr      *ProcessManager
}

// claudeResponse is the JSON printed by `claude -p --output-format json`.
// Older releases nest the text under result.content, newer ones print it
// as a plain string.
type claudeResponse struct {
	Type    string          `json:"type"`
	IsError bool            `json:"is_error"`
	Result  json.RawMessage `json:"result"`
}

type claudeContent struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClaudeAdapter creates a Claude Code adapter.
// The ProcessManager is optional - if nil, subprocesses won't be tracked.
func NewClaudeAdapter(cfg Config, procMgr *ProcessManager) (*ClaudeAdapter, error) {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}

	return &ClaudeAdapter{
		command:      command,
		workDir:      cfg.WorkDir,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		procMgr:      procMgr,
	}, nil
}

// Name implements Generator.
func (a *ClaudeAdapter) Name() string { return "claude" }

// Generate implements Generator.
func (a *ClaudeAdapter) Generate(ctx context.Context, req Request) (string, error) {
	return call(ctx, a.Name(), req, func(ctx context.Context) (string, error) {
		cmd := newCommand(ctx, a.command, a.buildArgs(req)...)
		cmd.Dir = a.workDir

		stdout, stderr, err := executeCommand(ctx, cmd, a.procMgr)
		if err != nil {
			return "", err
		}

		text, err := parseClaudeResponse(stdout)
		if err != nil {
			return "", fmt.Errorf("%w (stderr: %s)", err, strings.TrimSpace(string(stderr)))
		}
		return text, nil
	})
}

// buildArgs constructs the command-line arguments for the claude CLI.
func (a *ClaudeAdapter) buildArgs(req Request) []string {
	args := []string{"-p", req.Prompt, "--output-format", "json"}

	if a.model != "" {
		args = append(args, "--model", a.model)
	}

	if a.systemPrompt != "" {
		args = append(args, "--system-prompt", a.systemPrompt)
	}

	return args
}

// parseClaudeResponse extracts the generated text from the CLI's JSON output.
func parseClaudeResponse(data []byte) (string, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("failed to unmarshal claude output: %w", err)
	}

	var text string
	if err := json.Unmarshal(cr.Result, &text); err != nil {
		var nested claudeContent
		if err := json.Unmarshal(cr.Result, &nested); err != nil {
			return "", fmt.Errorf("unexpected claude result: %s", cr.Result)
		}
		var b strings.Builder
		for _, item := range nested.Content {
			if item.Type == "text" {
				b.WriteString(item.Text)
			}
		}
		text = b.String()
	}

	if cr.IsError {
		return "", fmt.Errorf("claude reported an error: %s", text)
	}

	return text, nil
}
