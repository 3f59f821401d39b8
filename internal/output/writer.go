// Package output persists tier results to a directory.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aristath/scaffold/internal/config"
	"github.com/aristath/scaffold/internal/pipeline"
)

// Manifest file names.
const (
	TierResultsFile = "tier_results.json"
	FileOutputsFile = "file_outputs.json"
	FilesDir        = "files"
)

// ErrIOWrite is matched by every error the Writer returns.
var ErrIOWrite = errors.New("output write failed")

// WriteError reports a failed filesystem operation.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrIOWrite }

// Writer stores results under Dir:
//
//	<Dir>/<tier><ext>        output of each successful tier
//	<Dir>/files/<name>       files produced by fan-out tiers
//	<Dir>/tier_results.json  manifest of every executed tier
//	<Dir>/file_outputs.json  generated files, when there are any
type Writer struct {
	Dir string
}

// NewWriter returns a Writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// RecordTier implements pipeline.Sink.
func (w *Writer) RecordTier(ctx context.Context, runID string, result pipeline.TierResult) error {
	return w.Write(result)
}

// Write persists one tier result. Failed tiers produce no file.
func (w *Writer) Write(result pipeline.TierResult) error {
	if result.Failed {
		return nil
	}

	if err := w.mkdir(w.Dir); err != nil {
		return err
	}

	path, err := w.tierPath(result)
	if err != nil {
		return err
	}
	if err := w.writeFile(path, formatOutput(result.Output, result.Format)); err != nil {
		return err
	}

	for _, f := range result.Files {
		target, err := w.filePath(f.Name)
		if err != nil {
			return err
		}
		if err := w.mkdir(filepath.Dir(target)); err != nil {
			return err
		}
		if err := w.writeFile(target, []byte(f.Content)); err != nil {
			return err
		}
	}

	return nil
}

// tierPath resolves <Dir>/<tier><ext>. The tier name must be a single
// path element.
func (w *Writer) tierPath(result pipeline.TierResult) (string, error) {
	name := result.Tier
	path := filepath.Join(w.Dir, name+result.Format.Extension())
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", &WriteError{Path: path, Err: fmt.Errorf("tier name %q escapes the output directory", name)}
	}
	return path, nil
}

// filePath resolves a generated file name inside <Dir>/files.
func (w *Writer) filePath(name string) (string, error) {
	root := filepath.Join(w.Dir, FilesDir)
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(name) {
		return "", &WriteError{Path: target, Err: fmt.Errorf("file name %q escapes the output directory", name)}
	}
	return target, nil
}

type manifestEntry struct {
	Tier           string   `json:"tier"`
	Format         string   `json:"format"`
	Status         string   `json:"status"`
	Optimized      bool     `json:"optimized"`
	DurationMillis int64    `json:"duration_ms"`
	RenderedPrompt string   `json:"rendered_prompt"`
	Output         string   `json:"output"`
	Files          []string `json:"files,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Error          string   `json:"error,omitempty"`
	ErrorKind      string   `json:"error_kind,omitempty"`
}

type manifest struct {
	RunID   string          `json:"run_id"`
	Project string          `json:"project"`
	Status  string          `json:"status"`
	Tiers   []manifestEntry `json:"tiers"`
}

type fileEntry struct {
	Tier    string `json:"tier"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// WriteManifest writes tier_results.json, and file_outputs.json when any
// tier generated files.
func (w *Writer) WriteManifest(report *pipeline.Report) error {
	if err := w.mkdir(w.Dir); err != nil {
		return err
	}

	m := manifest{RunID: report.RunID, Project: report.Project, Status: report.Status}
	var files []fileEntry
	for _, res := range report.Results {
		entry := manifestEntry{
			Tier:           res.Tier,
			Format:         string(res.Format),
			Status:         "completed",
			Optimized:      res.Optimized,
			DurationMillis: res.Duration.Milliseconds(),
			RenderedPrompt: res.RenderedPrompt,
			Output:         res.Output,
			Warnings:       res.Warnings,
		}
		if res.Failed {
			entry.Status = "failed"
			if res.Err != nil {
				entry.Error = res.Err.Err.Error()
				entry.ErrorKind = string(res.Err.Kind)
			}
			m.Tiers = append(m.Tiers, entry)
			continue
		}
		for _, f := range res.Files {
			entry.Files = append(entry.Files, f.Name)
			files = append(files, fileEntry{Tier: res.Tier, Name: f.Name, Content: f.Content})
		}
		m.Tiers = append(m.Tiers, entry)
	}

	if err := w.writeJSON(filepath.Join(w.Dir, TierResultsFile), m); err != nil {
		return err
	}
	if len(files) > 0 {
		if err := w.writeJSON(filepath.Join(w.Dir, FileOutputsFile), files); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return w.writeFile(path, append(data, '\n'))
}

func (w *Writer) writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func (w *Writer) mkdir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &WriteError{Path: dir, Err: err}
	}
	return nil
}

// formatOutput pretty-prints valid JSON output and returns anything else as is.
func formatOutput(out string, format config.OutputFormat) []byte {
	if format == config.FormatJSON && json.Valid([]byte(out)) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(out), "", "  "); err == nil {
			buf.WriteByte('\n')
			return buf.Bytes()
		}
	}
	return []byte(out)
}
