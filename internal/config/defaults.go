package config

const defaultInitialTemplate = `Create a detailed development plan for $concept using $language.

Consider the following when creating the plan:
1. System info: $system
2. Best practices for $language
3. Project structure

For each file, include:
- File name
- Purpose
- Key components/functions

Output the plan as a structured document with clear sections.`

const defaultFileGenerationTemplate = `Generate the file $file_name based on the following plan:

$plan

Follow best practices for $language and ensure the code is:
1. Well-documented
2. Properly structured
3. Following idiomatic patterns for $language

Output only the file content, ready to be saved.`

const defaultOptimizationTemplate = `Review and optimize the following code:

$file_generation

Consider:
1. Performance improvements
2. Code cleanliness
3. Best practices for $language
4. Error handling

Output the improved code without additional comments.`

// DefaultOptimizeTemplate is the meta-prompt for the optimize pass.
// $prompt is the tier's rendered prompt and $draft its first output.
const DefaultOptimizeTemplate = `You are reviewing a draft answer before it is used.

Original request:
$prompt

Draft answer:
$draft

Improve the draft: fix mistakes, fill gaps and tighten the wording.
Keep the same output format as the draft. Output only the improved answer.`

// ProjectOptions seeds DefaultConfig.
type ProjectOptions struct {
	ProjectName string
	Description string
	Concept     string
	Language    string
	Extra       map[string]any
}

// DefaultConfig returns the standard three-tier pipeline: an enabled
// planning tier, a disabled per-file generation tier fed by the plan, and a
// disabled optimization tier.
func DefaultConfig(opts ProjectOptions) *ProjectConfig {
	language := opts.Language
	if language == "" {
		language = "go"
	}

	vars := map[string]any{
		"concept":  opts.Concept,
		"language": language,
	}
	for k, v := range opts.Extra {
		vars[k] = v
	}

	initial := NewTierDefinition(defaultInitialTemplate)
	initial.UseSystemInfo = true
	initial.Optimize = true

	fileGen := NewTierDefinition(defaultFileGenerationTemplate)
	fileGen.Enabled = false
	fileGen.EachFileFrom = "initial"

	optimization := NewTierDefinition(defaultOptimizationTemplate)
	optimization.Enabled = false

	cfg := &ProjectConfig{
		ProjectName: opts.ProjectName,
		Description: opts.Description,
		Variables:   vars,
		Tiers:       NewTierSet(),
	}
	cfg.Tiers.Set("initial", initial)
	cfg.Tiers.Set("file_generation", fileGen)
	cfg.Tiers.Set("optimization", optimization)

	return cfg
}

// AddTier appends a tier, or replaces an existing one in place.
func AddTier(cfg *ProjectConfig, name string, def TierDefinition) *ProjectConfig {
	if def.OutputFormat == "" {
		def.OutputFormat = FormatText
	}
	cfg.Tiers.Set(name, def)
	return cfg
}
