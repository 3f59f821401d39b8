package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFileNames(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			name:   "json strings",
			output: `{"files": ["main.go", "internal/app/app.go"]}`,
			want:   []string{"main.go", "internal/app/app.go"},
		},
		{
			name:   "json objects",
			output: `{"files": [{"name": "a.py", "purpose": "entry"}, {"path": "b.py"}, {"file_name": "c.py"}]}`,
			want:   []string{"a.py", "b.py", "c.py"},
		},
		{
			name:   "fenced json",
			output: "```json\n{\"files\": [\"main.go\"]}\n```",
			want:   []string{"main.go"},
		},
		{
			name:   "labelled lines",
			output: "# Plan\nFile name: main.py\nPurpose: entry point\n- File: utils/io.py\nVersion: 1.2",
			want:   []string{"main.py", "utils/io.py"},
		},
		{
			name:   "markdown decorations",
			output: "1. **File:** `server.go`\n2. File: \"client.go\"",
			want:   []string{"server.go", "client.go"},
		},
		{
			name:   "duplicates and unsafe paths",
			output: "File: a.go\nFile: a.go\nFile: /etc/passwd.txt\nFile: ../escape.go\nFile: ./b.go",
			want:   []string{"a.go", "b.go"},
		},
		{
			name:   "nothing",
			output: "Just prose without names.",
			want:   nil,
		},
		{
			name:   "json without files key",
			output: `{"plan": "short"}`,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFileNames(tt.output))
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", stripCodeFence("  plain  "))
}

func TestJoinFiles(t *testing.T) {
	files := []File{{Name: "a", Content: "1"}, {Name: "b", Content: "2"}}
	assert.Equal(t, "### a\n\n1\n\n### b\n\n2", joinFiles(files, func(f File) string { return f.Content }))
	assert.Empty(t, joinFiles(nil, func(f File) string { return f.Content }))
}
