// Package template substitutes $identifier placeholders in prompt templates.
package template

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolvedVariable is matched by errors returned from strict rendering
// when a placeholder has no value.
var ErrUnresolvedVariable = errors.New("unresolved variable")

// UnresolvedVariableError lists the placeholders that had no value.
type UnresolvedVariableError struct {
	Names []string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved variable(s): %s", strings.Join(e.Names, ", "))
}

func (e *UnresolvedVariableError) Is(target error) bool {
	return target == ErrUnresolvedVariable
}

// Renderer renders templates. The zero value is permissive: unknown
// placeholders are left in the output unchanged.
type Renderer struct {
	// Strict makes unknown placeholders an error.
	Strict bool
}

// Render renders tpl with vars using a permissive Renderer.
func Render(tpl string, vars Vars) string {
	out, _ := Renderer{}.Render(tpl, vars)
	return out
}

// Render scans tpl once and replaces every $name or ${name} token found in
// vars. Substituted text is never scanned again.
func (r Renderer) Render(tpl string, vars Vars) (string, error) {
	if !strings.Contains(tpl, "$") {
		return tpl, nil
	}

	var b strings.Builder
	b.Grow(len(tpl))

	var missing []string
	seen := make(map[string]bool)

	i := 0
	for i < len(tpl) {
		tok, ok := scanToken(tpl, i)
		if !ok {
			b.WriteByte(tpl[i])
			i++
			continue
		}

		if v, found := vars[tok.name]; found {
			b.WriteString(v.String())
		} else {
			b.WriteString(tpl[tok.start:tok.end])
			if !seen[tok.name] {
				seen[tok.name] = true
				missing = append(missing, tok.name)
			}
		}
		i = tok.end
	}

	if r.Strict && len(missing) > 0 {
		return "", &UnresolvedVariableError{Names: missing}
	}
	return b.String(), nil
}

// Placeholders returns the identifiers referenced by tpl in order of first
// appearance.
func Placeholders(tpl string) []string {
	var names []string
	seen := make(map[string]bool)
	i := 0
	for i < len(tpl) {
		tok, ok := scanToken(tpl, i)
		if !ok {
			i++
			continue
		}
		if !seen[tok.name] {
			seen[tok.name] = true
			names = append(names, tok.name)
		}
		i = tok.end
	}
	return names
}

type token struct {
	name       string
	start, end int
}

// scanToken reports whether a placeholder starts at tpl[i].
func scanToken(tpl string, i int) (token, bool) {
	if tpl[i] != '$' || i+1 >= len(tpl) {
		return token{}, false
	}

	if tpl[i+1] == '{' {
		j := i + 2
		if j >= len(tpl) || !isIdentStart(tpl[j]) {
			return token{}, false
		}
		k := j + 1
		for k < len(tpl) && isIdentPart(tpl[k]) {
			k++
		}
		if k >= len(tpl) || tpl[k] != '}' {
			return token{}, false
		}
		return token{name: tpl[j:k], start: i, end: k + 1}, true
	}

	if !isIdentStart(tpl[i+1]) {
		return token{}, false
	}
	k := i + 2
	for k < len(tpl) && isIdentPart(tpl[k]) {
		k++
	}
	return token{name: tpl[i+1 : k], start: i, end: k}, true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
