package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CodexAdapter generates text with `codex exec`.
type CodexAdapter struct {
	command string
	workDir string
	model   string
	procMgr *ProcessManager
}

// codexEvent is one line of the `codex exec --json` event stream. Both the
// legacy TurnCompleted event and item.completed agent messages are read.
type codexEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Item    struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item"`
	Message string `json:"message"`
}

// NewCodexAdapter creates a Codex CLI adapter.
func NewCodexAdapter(cfg Config, procMgr *ProcessManager) (*CodexAdapter, error) {
	command := cfg.Command
	if command == "" {
		command = "codex"
	}

	return &CodexAdapter{
		command: command,
		workDir: cfg.WorkDir,
		model:   cfg.Model,
		procMgr: procMgr,
	}, nil
}

// Name implements Generator.
func (c *CodexAdapter) Name() string { return "codex" }

// Generate implements Generator.
func (c *CodexAdapter) Generate(ctx context.Context, req Request) (string, error) {
	return call(ctx, c.Name(), req, func(ctx context.Context) (string, error) {
		cmd := newCommand(ctx, c.command, c.buildArgs(req)...)
		cmd.Dir = c.workDir

		stdout, _, err := executeCommand(ctx, cmd, c.procMgr)
		if err != nil {
			return "", err
		}

		return parseCodexEvents(stdout)
	})
}

// buildArgs returns ["exec", prompt, "--json"] plus an optional model.
func (c *CodexAdapter) buildArgs(req Request) []string {
	args := []string{"exec", req.Prompt, "--json"}

	if c.model != "" {
		args = append(args, "--model", c.model)
	}

	return args
}

// parseCodexEvents reads newline-delimited JSON events and returns the last
// agent message. An error event fails the call.
func parseCodexEvents(data []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var content string
	found := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var evt codexEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return "", fmt.Errorf("failed to parse codex event: %w", err)
		}

		switch evt.Type {
		case "TurnCompleted":
			content, found = evt.Content, true
		case "item.completed":
			if evt.Item.Type == "agent_message" {
				content, found = evt.Item.Text, true
			}
		case "error", "turn.failed":
			return "", fmt.Errorf("codex reported an error: %s", evt.Message)
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading codex events: %w", err)
	}
	if !found {
		return "", fmt.Errorf("codex produced no agent message")
	}

	return content, nil
}
