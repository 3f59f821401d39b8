package config

import (
	"fmt"
	"strings"
)

// OutputFormat is the format a tier asks the generator to produce.
type OutputFormat string

const (
	FormatText     OutputFormat = "text"
	FormatJSON     OutputFormat = "json"
	FormatMarkdown OutputFormat = "markdown"
	FormatYAML     OutputFormat = "yaml"
)

// Valid reports whether f is a known format.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatText, FormatJSON, FormatMarkdown, FormatYAML:
		return true
	default:
		return false
	}
}

// Extension returns the file extension used when persisting output in f.
func (f OutputFormat) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatMarkdown:
		return ".md"
	case FormatYAML:
		return ".yaml"
	default:
		return ".txt"
	}
}

// FailurePolicy decides what the pipeline does when a tier fails.
type FailurePolicy string

const (
	PolicyFailFast   FailurePolicy = "fail_fast"   // Abort the remaining tiers
	PolicyBestEffort FailurePolicy = "best_effort" // Record the failure and keep going
)

// DefaultFailurePolicy applies when neither the caller nor the project config picks one.
const DefaultFailurePolicy = PolicyFailFast

// ParseFailurePolicy accepts "fail_fast", "fail-fast", "best_effort" and "best-effort".
// An empty string returns an empty policy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "":
		return "", nil
	case string(PolicyFailFast):
		return PolicyFailFast, nil
	case string(PolicyBestEffort):
		return PolicyBestEffort, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want fail_fast or best_effort)", s)
	}
}

// PromptTemplate is a tier's template text plus tier-local variables.
// Tier-local variables override the run context on key collision.
type PromptTemplate struct {
	Content   string         `json:"content" yaml:"content"`
	Variables map[string]any `json:"variables" yaml:"variables"`
}

// TierDefinition configures one stage of the pipeline.
type TierDefinition struct {
	Enabled        bool           `json:"enabled" yaml:"enabled"`
	PromptTemplate PromptTemplate `json:"prompt_template" yaml:"prompt_template"`
	UseSystemInfo  bool           `json:"use_system_info" yaml:"use_system_info"`
	OutputFormat   OutputFormat   `json:"output_format" yaml:"output_format"`
	Optimize       bool           `json:"optimize" yaml:"optimize"`

	// EachFileFrom names an earlier tier whose output lists files. When set,
	// this tier runs once per file with $file_name and $plan bound.
	EachFileFrom string `json:"each_file_from,omitempty" yaml:"each_file_from,omitempty"`
}

// NewTierDefinition returns an enabled text tier with the given template.
func NewTierDefinition(content string) TierDefinition {
	return TierDefinition{
		Enabled:        true,
		PromptTemplate: PromptTemplate{Content: content, Variables: map[string]any{}},
		OutputFormat:   FormatText,
	}
}

// ProjectConfig is the top-level pipeline configuration.
type ProjectConfig struct {
	ProjectName string         `json:"project_name" yaml:"project_name"`
	Description string         `json:"description" yaml:"description"`
	Variables   map[string]any `json:"variables" yaml:"variables"`
	Tiers       TierSet        `json:"tiers" yaml:"tiers"`

	FailurePolicy    FailurePolicy `json:"failure_policy,omitempty" yaml:"failure_policy,omitempty"`
	StrictVariables  bool          `json:"strict_variables,omitempty" yaml:"strict_variables,omitempty"`
	OptimizeTemplate string        `json:"optimize_template,omitempty" yaml:"optimize_template,omitempty"`
}

// Clone returns a copy that can be modified without affecting cfg.
// Variable maps are copied one level deep.
func (c *ProjectConfig) Clone() *ProjectConfig {
	cp := *c
	cp.Variables = cloneVars(c.Variables)
	cp.Tiers = c.Tiers.Clone()
	return &cp
}

func cloneVars(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
