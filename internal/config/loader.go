package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Syntax is the document syntax of a configuration file.
type Syntax int

const (
	SyntaxJSON Syntax = iota
	SyntaxYAML
)

// SyntaxForPath picks the syntax from the file extension. Anything that is
// not .yaml or .yml is read as JSON.
func SyntaxForPath(path string) Syntax {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SyntaxYAML
	default:
		return SyntaxJSON
	}
}

// LoadOptions tunes Load.
type LoadOptions struct {
	// StrictVariables rejects placeholders that no variable or earlier tier can satisfy.
	StrictVariables bool

	// Known lists extra variable names supplied at run time (e.g. "input").
	Known []string
}

// Load reads, parses and validates the project configuration at path.
// Unknown keys are ignored. Malformed documents return a *ParseError,
// invalid ones a *ValidationError.
func Load(path string) (*ProjectConfig, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions is Load with validation options.
func LoadWithOptions(path string, opts LoadOptions) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := Parse(data, SyntaxForPath(path))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}

	if err := Validate(cfg, ValidateOptions{
		Strict: opts.StrictVariables || cfg.StrictVariables,
		Known:  opts.Known,
	}); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Path = path
		}
		return nil, err
	}

	return cfg, nil
}

// Parse decodes a configuration document without validating it.
func Parse(data []byte, syntax Syntax) (*ProjectConfig, error) {
	var cfg ProjectConfig

	switch syntax {
	case SyntaxYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &ParseError{Err: err}
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, &ParseError{Err: err}
		}
	}

	if cfg.Variables == nil {
		cfg.Variables = map[string]any{}
	}
	if p, err := ParseFailurePolicy(string(cfg.FailurePolicy)); err == nil {
		cfg.FailurePolicy = p
	}
	if cfg.Tiers.defs == nil {
		cfg.Tiers = NewTierSet()
	}

	return &cfg, nil
}
