package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad_JSONPreservesTierOrder(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{
		"project_name": "demo",
		"variables": {"concept": "X"},
		"tiers": {
			"zeta":  {"prompt_template": {"content": "first"}},
			"alpha": {"prompt_template": {"content": "second"}},
			"mid":   {"prompt_template": {"content": "third"}}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"zeta", "alpha", "mid"}
	if got := cfg.Tiers.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("tier order = %v, want %v", got, want)
	}
}

func TestLoad_TierDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{
		"project_name": "demo",
		"tiers": {"t1": {"prompt_template": {"content": "Plan"}}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tier, ok := cfg.Tiers.Get("t1")
	if !ok {
		t.Fatal("tier t1 not found")
	}
	if !tier.Enabled {
		t.Error("tier should default to enabled")
	}
	if tier.OutputFormat != FormatText {
		t.Errorf("output format = %q, want %q", tier.OutputFormat, FormatText)
	}
	if tier.PromptTemplate.Variables == nil {
		t.Error("tier variables should default to an empty map")
	}
}

func TestLoad_IgnoresUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{
		"project_name": "demo",
		"future_option": true,
		"tiers": {"t1": {"prompt_template": {"content": "Plan", "engine": "v2"}, "priority": 3}}
	}`)

	if _, err := Load(path); err != nil {
		t.Fatalf("unknown keys should be ignored, got: %v", err)
	}
}

func TestLoad_SpecExample(t *testing.T) {
	const doc = `{"variables":{"concept":"X"},"tiers":{"t1":{"enabled":true,"prompt_template":{"content":"Plan for $concept","variables":{}},"use_system_info":false,"output_format":"text","optimize":false}}}`

	cfg, err := Parse([]byte(doc), SyntaxJSON)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if cfg.Tiers.Len() != 1 {
		t.Fatalf("tiers = %d, want 1", cfg.Tiers.Len())
	}
	if cfg.Variables["concept"] != "X" {
		t.Errorf("concept = %v, want X", cfg.Variables["concept"])
	}

	// project_name is required, so the bare document does not load.
	_, err = Load(writeFile(t, t.TempDir(), "config.json", doc))
	if !errors.Is(err, ErrConfigValidation) {
		t.Fatalf("expected ErrConfigValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "project_name is required") {
		t.Errorf("error %q does not mention project_name", err.Error())
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
project_name: demo
failure_policy: best-effort
variables:
  concept: X
  count: 3
tiers:
  plan:
    prompt_template:
      content: Plan for $concept
  files:
    enabled: false
    output_format: json
    prompt_template:
      content: Files for $plan
      variables:
        plan: override
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cfg.Tiers.Names(); !reflect.DeepEqual(got, []string{"plan", "files"}) {
		t.Errorf("tier order = %v", got)
	}
	if cfg.FailurePolicy != PolicyBestEffort {
		t.Errorf("failure policy = %q, want %q", cfg.FailurePolicy, PolicyBestEffort)
	}
	files, _ := cfg.Tiers.Get("files")
	if files.Enabled {
		t.Error("files tier should be disabled")
	}
	if files.OutputFormat != FormatJSON {
		t.Errorf("files output format = %q", files.OutputFormat)
	}
	if files.PromptTemplate.Variables["plan"] != "override" {
		t.Errorf("files local variable = %v", files.PromptTemplate.Variables["plan"])
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", "{invalid json")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
	if !errors.Is(err, ErrConfigParse) {
		t.Errorf("expected ErrConfigParse, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error should mention the file, got %q", err.Error())
	}
}

func TestLoad_DuplicateTier(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{
		"project_name": "demo",
		"tiers": {
			"a": {"prompt_template": {"content": "one"}},
			"a": {"prompt_template": {"content": "two"}}
		}
	}`)

	_, err := Load(path)
	if !errors.Is(err, ErrConfigParse) {
		t.Fatalf("expected parse error for duplicate tier, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		strict  bool
		problem string
	}{
		{
			name:    "missing project name",
			doc:     `{"tiers": {"a": {"prompt_template": {"content": "x"}}}}`,
			problem: "project_name is required",
		},
		{
			name:    "missing template content",
			doc:     `{"project_name": "p", "tiers": {"a": {"prompt_template": {"content": ""}}}}`,
			problem: `tier "a": prompt_template.content is required`,
		},
		{
			name:    "unknown output format",
			doc:     `{"project_name": "p", "tiers": {"a": {"output_format": "xml", "prompt_template": {"content": "x"}}}}`,
			problem: `unknown output_format "xml"`,
		},
		{
			name:    "unknown failure policy",
			doc:     `{"project_name": "p", "failure_policy": "sometimes", "tiers": {}}`,
			problem: "unknown failure policy",
		},
		{
			name:    "tier name with path separator",
			doc:     `{"project_name": "p", "tiers": {"../x": {"prompt_template": {"content": "x"}}}}`,
			problem: `tier "../x": name must be a plain file name`,
		},
		{
			name: "fan-out from later tier",
			doc: `{"project_name": "p", "tiers": {
				"files": {"each_file_from": "plan", "prompt_template": {"content": "$file_name"}},
				"plan": {"prompt_template": {"content": "plan"}}
			}}`,
			problem: "each_file_from must name an earlier tier",
		},
		{
			name:    "strict unknown variable",
			doc:     `{"project_name": "p", "tiers": {"a": {"prompt_template": {"content": "Plan for $concept"}}}}`,
			strict:  true,
			problem: `tier "a": $concept is not defined`,
		},
		{
			name: "strict forward reference",
			doc: `{"project_name": "p", "tiers": {
				"a": {"prompt_template": {"content": "after $b"}},
				"b": {"prompt_template": {"content": "plain"}}
			}}`,
			strict:  true,
			problem: "refers to a tier that runs later",
		},
		{
			name: "strict disabled tier reference",
			doc: `{"project_name": "p", "tiers": {
				"a": {"enabled": false, "prompt_template": {"content": "plain"}},
				"b": {"prompt_template": {"content": "after $a"}}
			}}`,
			strict:  true,
			problem: "refers to a disabled tier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.json", tt.doc)

			_, err := LoadWithOptions(path, LoadOptions{StrictVariables: tt.strict})
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrConfigValidation) {
				t.Fatalf("expected ErrConfigValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.problem) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.problem)
			}
		})
	}
}

func TestLoad_StrictAcceptsResolvableTemplates(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{
		"project_name": "p",
		"variables": {"concept": "X"},
		"tiers": {
			"initial": {"use_system_info": true, "prompt_template": {"content": "Plan $concept on $system"}},
			"skipped": {"enabled": false, "prompt_template": {"content": "$nothing"}},
			"file_generation": {"each_file_from": "initial", "prompt_template": {"content": "$file_name from $plan, see $initial, $input, $tone", "variables": {"tone": "dry"}}}
		}
	}`)

	_, err := LoadWithOptions(path, LoadOptions{StrictVariables: true, Known: []string{VarInput}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_ForwardReferencesAreNotCycles(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		strict bool
	}{
		{
			name: "permissive mutual references",
			doc: `{"project_name": "p", "tiers": {
				"plan": {"prompt_template": {"content": "Outline for $code"}},
				"code": {"prompt_template": {"content": "Implement $plan"}}
			}}`,
		},
		{
			name: "strict reference satisfied by a global",
			doc: `{"project_name": "p", "variables": {"code": "main.go"}, "tiers": {
				"plan": {"prompt_template": {"content": "Outline for $code"}},
				"code": {"prompt_template": {"content": "Implement $plan"}}
			}}`,
			strict: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.json", tt.doc)

			cfg, err := LoadWithOptions(path, LoadOptions{StrictVariables: tt.strict})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if deps := Dependencies(cfg, "plan"); len(deps) != 0 {
				t.Errorf("plan dependencies = %v, want none", deps)
			}
			if deps := Dependencies(cfg, "code"); !reflect.DeepEqual(deps, []string{"plan"}) {
				t.Errorf("code dependencies = %v, want [plan]", deps)
			}
			order, err := DependencyOrder(cfg)
			if err != nil {
				t.Fatalf("unexpected order error: %v", err)
			}
			if !reflect.DeepEqual(order, []string{"plan", "code"}) {
				t.Errorf("order = %v, want [plan code]", order)
			}
		})
	}
}

func TestDependencyOrder(t *testing.T) {
	cfg := DefaultConfig(ProjectOptions{ProjectName: "p", Concept: "c"})
	cfg.Tiers.SetEnabled("file_generation", true)
	cfg.Tiers.SetEnabled("optimization", true)

	order, err := DependencyOrder(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	if len(pos) != 3 {
		t.Fatalf("order = %v, want all three tiers", order)
	}
	if pos["initial"] > pos["file_generation"] || pos["file_generation"] > pos["optimization"] {
		t.Errorf("order = %v, want initial < file_generation < optimization", order)
	}
}

func TestDependencies_SkipsShadowedAndDisabled(t *testing.T) {
	cfg := &ProjectConfig{ProjectName: "p", Tiers: NewTierSet()}
	cfg.Tiers.Set("a", NewTierDefinition("a"))
	off := NewTierDefinition("off")
	off.Enabled = false
	cfg.Tiers.Set("off", off)
	c := NewTierDefinition("$a $off $b")
	c.PromptTemplate.Variables = map[string]any{"b": "local"}
	cfg.Tiers.Set("b", NewTierDefinition("b"))
	cfg.Tiers.Set("c", c)

	got := Dependencies(cfg, "c")
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("dependencies = %v, want [a]", got)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	tests := map[string]FailurePolicy{
		"":            "",
		"fail_fast":   PolicyFailFast,
		"fail-fast":   PolicyFailFast,
		"Best-Effort": PolicyBestEffort,
	}
	for in, want := range tests {
		got, err := ParseFailurePolicy(in)
		if err != nil {
			t.Errorf("ParseFailurePolicy(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseFailurePolicy(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseFailurePolicy("retry"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestOutputFormatExtension(t *testing.T) {
	tests := map[OutputFormat]string{
		FormatText:     ".txt",
		FormatJSON:     ".json",
		FormatMarkdown: ".md",
		FormatYAML:     ".yaml",
	}
	for f, want := range tests {
		if got := f.Extension(); got != want {
			t.Errorf("%q.Extension() = %q, want %q", f, got, want)
		}
	}
}

func TestClone_IsIndependent(t *testing.T) {
	cfg := DefaultConfig(ProjectOptions{ProjectName: "p", Concept: "c"})
	cp := cfg.Clone()

	cp.Tiers.SetEnabled("file_generation", true)
	cp.Variables["concept"] = "changed"

	orig, _ := cfg.Tiers.Get("file_generation")
	if orig.Enabled {
		t.Error("toggling the clone changed the original tier")
	}
	if cfg.Variables["concept"] != "c" {
		t.Error("changing clone variables changed the original")
	}
}
