package output

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/scaffold/internal/config"
	"github.com/aristath/scaffold/internal/pipeline"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWrite_TierFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir)

	require.NoError(t, w.Write(pipeline.TierResult{Tier: "plan", Format: config.FormatText, Output: "the plan"}))
	require.NoError(t, w.Write(pipeline.TierResult{Tier: "spec", Format: config.FormatMarkdown, Output: "# Spec"}))
	require.NoError(t, w.Write(pipeline.TierResult{Tier: "data", Format: config.FormatJSON, Output: `{"a":[1,2]}`}))
	require.NoError(t, w.Write(pipeline.TierResult{Tier: "raw", Format: config.FormatJSON, Output: "not json"}))
	require.NoError(t, w.Write(pipeline.TierResult{Tier: "cfg", Format: config.FormatYAML, Output: "a: 1"}))

	assert.Equal(t, "the plan", readFile(t, filepath.Join(dir, "plan.txt")))
	assert.Equal(t, "# Spec", readFile(t, filepath.Join(dir, "spec.md")))
	assert.Equal(t, "{\n  \"a\": [\n    1,\n    2\n  ]\n}\n", readFile(t, filepath.Join(dir, "data.json")))
	assert.Equal(t, "not json", readFile(t, filepath.Join(dir, "raw.json")))
	assert.Equal(t, "a: 1", readFile(t, filepath.Join(dir, "cfg.yaml")))
}

func TestWrite_FailedTierWritesNothing(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	require.NoError(t, w.Write(pipeline.TierResult{Tier: "broken", Format: config.FormatText, Failed: true}))

	_, err := os.Stat(filepath.Join(dir, "broken.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestWrite_GeneratedFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	result := pipeline.TierResult{
		Tier:   "file_generation",
		Format: config.FormatText,
		Output: "joined",
		Files: []pipeline.File{
			{Name: "main.go", Content: "package main"},
			{Name: "internal/app/app.go", Content: "package app"},
		},
	}
	require.NoError(t, w.Write(result))

	assert.Equal(t, "package main", readFile(t, filepath.Join(dir, FilesDir, "main.go")))
	assert.Equal(t, "package app", readFile(t, filepath.Join(dir, FilesDir, "internal", "app", "app.go")))
}

func TestWrite_RejectsEscapingFileNames(t *testing.T) {
	w := NewWriter(t.TempDir())

	for _, name := range []string{"../evil.go", "/etc/evil.go", "."} {
		err := w.Write(pipeline.TierResult{
			Tier:   "files",
			Format: config.FormatText,
			Files:  []pipeline.File{{Name: name, Content: "x"}},
		})
		assert.ErrorIs(t, err, ErrIOWrite, name)
	}
}

func TestWrite_RejectsEscapingTierNames(t *testing.T) {
	parent := t.TempDir()
	w := NewWriter(filepath.Join(parent, "out"))

	for _, name := range []string{"../x", "a/b", `a\b`, "..", ""} {
		err := w.Write(pipeline.TierResult{Tier: name, Format: config.FormatText, Output: "x"})
		assert.ErrorIs(t, err, ErrIOWrite, name)
	}

	_, err := os.Stat(filepath.Join(parent, "x.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestWrite_ErrorsAreIOWriteErrors(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not dir"), 0644))

	w := NewWriter(filepath.Join(blocker, "out"))
	err := w.Write(pipeline.TierResult{Tier: "t", Format: config.FormatText, Output: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIOWrite)

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.Contains(t, werr.Path, "blocker")
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	report := &pipeline.Report{
		RunID:   "run-1",
		Project: "demo",
		Status:  pipeline.StatusPartial,
		Results: []pipeline.TierResult{
			{Tier: "plan", Format: config.FormatText, RenderedPrompt: "Plan it", Output: "PLAN", Optimized: true, Duration: 1500 * time.Millisecond},
			{Tier: "broken", Format: config.FormatText, Failed: true, Err: &pipeline.TierError{Tier: "broken", Kind: pipeline.KindTimeout, Err: errors.New("too slow")}},
			{Tier: "files", Format: config.FormatText, Output: "x", Files: []pipeline.File{{Name: "a.go", Content: "package a"}}},
		},
	}
	require.NoError(t, w.WriteManifest(report))

	var m manifest
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, TierResultsFile))), &m))
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, pipeline.StatusPartial, m.Status)
	require.Len(t, m.Tiers, 3)
	assert.Equal(t, "plan", m.Tiers[0].Tier)
	assert.Equal(t, int64(1500), m.Tiers[0].DurationMillis)
	assert.True(t, m.Tiers[0].Optimized)
	assert.Equal(t, "failed", m.Tiers[1].Status)
	assert.Equal(t, "timeout", m.Tiers[1].ErrorKind)
	assert.Equal(t, "too slow", m.Tiers[1].Error)
	assert.Equal(t, []string{"a.go"}, m.Tiers[2].Files)

	var files []fileEntry
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, FileOutputsFile))), &files))
	assert.Equal(t, []fileEntry{{Tier: "files", Name: "a.go", Content: "package a"}}, files)
}

func TestWriteManifest_FailedTierListsNoFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	report := &pipeline.Report{
		RunID:  "run-2",
		Status: pipeline.StatusPartial,
		Results: []pipeline.TierResult{{
			Tier:   "files",
			Format: config.FormatText,
			Failed: true,
			Err:    &pipeline.TierError{Tier: "files", Kind: pipeline.KindGeneration, Err: errors.New("file b.go: boom")},
			Files:  []pipeline.File{{Name: "a.go", Content: "package a"}},
		}},
	}
	require.NoError(t, w.WriteManifest(report))
	require.NoError(t, w.Write(report.Results[0]))

	var m manifest
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, TierResultsFile))), &m))
	require.Len(t, m.Tiers, 1)
	assert.Equal(t, "failed", m.Tiers[0].Status)
	assert.Empty(t, m.Tiers[0].Files)

	_, err := os.Stat(filepath.Join(dir, FileOutputsFile))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, FilesDir, "a.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteManifest_NoFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewWriter(dir).WriteManifest(&pipeline.Report{RunID: "r", Status: pipeline.StatusCompleted}))

	_, err := os.Stat(filepath.Join(dir, FileOutputsFile))
	assert.True(t, os.IsNotExist(err))
}
