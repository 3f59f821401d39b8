package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigParse is matched by errors for malformed configuration documents.
	ErrConfigParse = errors.New("config parse error")

	// ErrConfigValidation is matched by errors for well-formed but invalid configurations.
	ErrConfigValidation = errors.New("config validation error")
)

// ParseError reports a document that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing config: %v", e.Err)
	}
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrConfigParse }

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	prefix := "invalid config"
	if e.Path != "" {
		prefix = "invalid config " + e.Path
	}
	if len(e.Problems) == 1 {
		return prefix + ": " + e.Problems[0]
	}
	return prefix + ":\n  - " + strings.Join(e.Problems, "\n  - ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrConfigValidation }
