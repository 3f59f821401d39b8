package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// GooseAdapter generates text with `goose run`.
// Goose supports local LLM providers (Ollama, LM Studio, llama.cpp) via --provider and --model flags.
type GooseAdapter struct {
	command      string
	workDir      string
	model        string
	provider     string
	systemPrompt string
	procMgr      *ProcessManager
}

// gooseResponse is one JSON object from Goose's output. The format is
// loosely documented, so only content is read.
type gooseResponse struct {
	Content string `json:"content"`
}

// NewGooseAdapter creates a Goose CLI adapter.
func NewGooseAdapter(cfg Config, procMgr *ProcessManager) (*GooseAdapter, error) {
	command := cfg.Command
	if command == "" {
		command = "goose"
	}

	return &GooseAdapter{
		command:      command,
		workDir:      cfg.WorkDir,
		model:        cfg.Model,
		provider:     cfg.Provider,
		systemPrompt: cfg.SystemPrompt,
		procMgr:      procMgr,
	}, nil
}

// Name implements Generator.
func (g *GooseAdapter) Name() string { return "goose" }

// Generate implements Generator. Output that is not JSON is returned as
// plain text.
func (g *GooseAdapter) Generate(ctx context.Context, req Request) (string, error) {
	return call(ctx, g.Name(), req, func(ctx context.Context) (string, error) {
		cmd := newCommand(ctx, g.command, g.buildArgs(req)...)
		cmd.Dir = g.workDir

		stdout, _, err := executeCommand(ctx, cmd, g.procMgr)
		if err != nil {
			return "", err
		}

		text, err := parseGooseResponse(stdout)
		if err != nil {
			return strings.TrimSpace(string(stdout)), nil
		}
		return text, nil
	})
}

// buildArgs constructs the command-line arguments for the Goose CLI.
// Sessions are never persisted: each tier is an independent call.
func (g *GooseAdapter) buildArgs(req Request) []string {
	args := []string{"run", "--no-session", "--text", req.Prompt, "--output-format", "json"}

	if g.provider != "" {
		args = append(args, "--provider", g.provider)
	}
	if g.model != "" {
		args = append(args, "--model", g.model)
	}

	if g.systemPrompt != "" {
		args = append(args, "--system", g.systemPrompt)
	}

	return args
}

// parseGooseResponse parses a single JSON object, or newline-delimited
// JSON objects whose contents are joined.
func parseGooseResponse(data []byte) (string, error) {
	var resp gooseResponse
	if err := json.Unmarshal(data, &resp); err == nil {
		return resp.Content, nil
	}

	var contents []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var lineResp gooseResponse
		if err := json.Unmarshal([]byte(line), &lineResp); err == nil && lineResp.Content != "" {
			contents = append(contents, lineResp.Content)
		}
	}

	if len(contents) > 0 {
		return strings.Join(contents, "\n"), nil
	}

	return "", fmt.Errorf("failed to parse goose JSON response")
}
