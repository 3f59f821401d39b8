package config

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/aristath/scaffold/internal/template"
)

// Variable names bound by the pipeline itself.
const (
	VarSystem   = "system"
	VarFileName = "file_name"
	VarPlan     = "plan"
	VarInput    = "input"
)

// ValidateOptions tunes Validate.
type ValidateOptions struct {
	// Strict reports placeholders that nothing can satisfy.
	Strict bool

	// Known lists extra variable names available at run time.
	Known []string
}

// Validate checks required fields, formats, fan-out sources and tier
// dependencies. All problems are collected into one *ValidationError.
func Validate(cfg *ProjectConfig, opts ValidateOptions) error {
	var problems []string

	if strings.TrimSpace(cfg.ProjectName) == "" {
		problems = append(problems, "project_name is required")
	}

	if _, err := ParseFailurePolicy(string(cfg.FailurePolicy)); err != nil {
		problems = append(problems, err.Error())
	}

	for i, name := range cfg.Tiers.names {
		def := cfg.Tiers.defs[name]

		if strings.TrimSpace(name) == "" {
			problems = append(problems, fmt.Sprintf("tier #%d has an empty name", i+1))
		} else if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			problems = append(problems, fmt.Sprintf("tier %q: name must be a plain file name", name))
		}
		if strings.TrimSpace(def.PromptTemplate.Content) == "" {
			problems = append(problems, fmt.Sprintf("tier %q: prompt_template.content is required", name))
		}
		if !def.OutputFormat.Valid() {
			problems = append(problems, fmt.Sprintf("tier %q: unknown output_format %q", name, def.OutputFormat))
		}
		if src := def.EachFileFrom; src != "" {
			switch idx := cfg.Tiers.Index(src); {
			case idx < 0:
				problems = append(problems, fmt.Sprintf("tier %q: each_file_from names unknown tier %q", name, src))
			case idx >= i:
				problems = append(problems, fmt.Sprintf("tier %q: each_file_from must name an earlier tier, got %q", name, src))
			}
		}
	}

	if _, err := DependencyOrder(cfg); err != nil {
		problems = append(problems, err.Error())
	}

	if opts.Strict {
		problems = append(problems, unresolvedPlaceholders(cfg, opts.Known)...)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Dependencies returns the enabled tiers whose output the named tier reads,
// either through a $<tier> placeholder or each_file_from. Tiers run in
// declaration order, so only earlier tiers count: a reference to a later
// tier is an unresolved placeholder, not an edge. Placeholders shadowed by
// tier-local variables are not dependencies.
func Dependencies(cfg *ProjectConfig, name string) []string {
	def, ok := cfg.Tiers.Get(name)
	if !ok {
		return nil
	}
	self := cfg.Tiers.Index(name)

	var deps []string
	seen := map[string]bool{name: true}
	add := func(dep string) {
		if seen[dep] {
			return
		}
		other, ok := cfg.Tiers.Get(dep)
		if !ok || !other.Enabled || cfg.Tiers.Index(dep) > self {
			return
		}
		seen[dep] = true
		deps = append(deps, dep)
	}

	if def.EachFileFrom != "" {
		add(def.EachFileFrom)
	}
	for _, ref := range template.Placeholders(def.PromptTemplate.Content) {
		if _, local := def.PromptTemplate.Variables[ref]; local {
			continue
		}
		add(ref)
	}
	return deps
}

// DependencyOrder topologically sorts the enabled tiers by their output
// dependencies. Edges only point at earlier tiers, so the order agrees with
// declaration order; the cycle error guards the graph itself.
func DependencyOrder(cfg *ProjectConfig) ([]string, error) {
	var edges []toposort.Edge
	enabled := 0
	for _, name := range cfg.Tiers.names {
		if !cfg.Tiers.defs[name].Enabled {
			continue
		}
		enabled++
		deps := Dependencies(cfg, name)
		if len(deps) == 0 {
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		for _, dep := range deps {
			edges = append(edges, toposort.Edge{dep, name})
		}
	}

	if enabled == 0 {
		return nil, nil
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("tier dependency cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// unresolvedPlaceholders walks enabled tiers in order and reports any
// placeholder that is not a global, tier-local, pipeline-bound or known
// variable and not the output of an enabled tier declared earlier.
func unresolvedPlaceholders(cfg *ProjectConfig, known []string) []string {
	available := make(map[string]bool, len(cfg.Variables)+len(known))
	for k := range cfg.Variables {
		available[k] = true
	}
	for _, k := range known {
		available[k] = true
	}

	var problems []string
	for _, name := range cfg.Tiers.names {
		def := cfg.Tiers.defs[name]
		if !def.Enabled {
			continue
		}

		for _, ref := range template.Placeholders(def.PromptTemplate.Content) {
			if available[ref] {
				continue
			}
			if _, local := def.PromptTemplate.Variables[ref]; local {
				continue
			}
			if def.UseSystemInfo && ref == VarSystem {
				continue
			}
			if def.EachFileFrom != "" && (ref == VarFileName || ref == VarPlan) {
				continue
			}

			reason := "is not defined by variables or an earlier tier"
			if ref == name {
				reason = "refers to its own output"
			} else if idx := cfg.Tiers.Index(ref); idx >= 0 {
				if other := cfg.Tiers.defs[ref]; !other.Enabled {
					reason = "refers to a disabled tier"
				} else {
					reason = "refers to a tier that runs later"
				}
			}
			problems = append(problems, fmt.Sprintf("tier %q: $%s %s", name, ref, reason))
		}

		available[name] = true
	}
	return problems
}
