package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// TierSet is an ordered collection of named tiers. Order is the order in
// which tiers were declared in the configuration document.
type TierSet struct {
	names []string
	defs  map[string]TierDefinition
}

// NewTierSet returns an empty set.
func NewTierSet() TierSet {
	return TierSet{defs: make(map[string]TierDefinition)}
}

// Set adds a tier at the end, or replaces an existing tier in place.
func (s *TierSet) Set(name string, def TierDefinition) {
	if s.defs == nil {
		s.defs = make(map[string]TierDefinition)
	}
	if _, exists := s.defs[name]; !exists {
		s.names = append(s.names, name)
	}
	s.defs[name] = def
}

// Get returns the tier with the given name.
func (s TierSet) Get(name string) (TierDefinition, bool) {
	def, ok := s.defs[name]
	return def, ok
}

// Has reports whether a tier with the given name exists.
func (s TierSet) Has(name string) bool {
	_, ok := s.defs[name]
	return ok
}

// Names returns tier names in declaration order.
func (s TierSet) Names() []string {
	cp := make([]string, len(s.names))
	copy(cp, s.names)
	return cp
}

// Index returns the declaration position of name, or -1.
func (s TierSet) Index(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Len returns the number of tiers.
func (s TierSet) Len() int {
	return len(s.names)
}

// SetEnabled toggles a tier. Returns false if the tier does not exist.
func (s *TierSet) SetEnabled(name string, enabled bool) bool {
	def, ok := s.defs[name]
	if !ok {
		return false
	}
	def.Enabled = enabled
	s.defs[name] = def
	return true
}

// Clone returns an independent copy.
func (s TierSet) Clone() TierSet {
	cp := TierSet{
		names: make([]string, len(s.names)),
		defs:  make(map[string]TierDefinition, len(s.defs)),
	}
	copy(cp.names, s.names)
	for k, def := range s.defs {
		def.PromptTemplate.Variables = cloneVars(def.PromptTemplate.Variables)
		cp.defs[k] = def
	}
	return cp
}

// MarshalJSON writes tiers as an object in declaration order.
func (s TierSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.defs[name])
		if err != nil {
			return nil, fmt.Errorf("marshaling tier %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a tiers object keeping document order.
// Duplicate tier names are rejected.
func (s *TierSet) UnmarshalJSON(data []byte) error {
	*s = NewTierSet()

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("tiers must be an object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected tier key %v", tok)
		}
		if s.Has(name) {
			return fmt.Errorf("duplicate tier %q", name)
		}

		var def TierDefinition
		if err := dec.Decode(&def); err != nil {
			return fmt.Errorf("tier %q: %w", name, err)
		}
		s.Set(name, def)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalYAML writes tiers as a mapping in declaration order.
func (s TierSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range s.names {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
		val := &yaml.Node{}
		if err := val.Encode(s.defs[name]); err != nil {
			return nil, fmt.Errorf("encoding tier %q: %w", name, err)
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// UnmarshalYAML reads a tiers mapping keeping document order.
func (s *TierSet) UnmarshalYAML(value *yaml.Node) error {
	*s = NewTierSet()

	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: tiers must be a mapping", value.Line)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		if s.Has(name) {
			return fmt.Errorf("line %d: duplicate tier %q", value.Content[i].Line, name)
		}
		var def TierDefinition
		if err := value.Content[i+1].Decode(&def); err != nil {
			return fmt.Errorf("tier %q: %w", name, err)
		}
		s.Set(name, def)
	}
	return nil
}

// UnmarshalJSON applies tier defaults (enabled, text output) before decoding.
func (t *TierDefinition) UnmarshalJSON(data []byte) error {
	type plain TierDefinition
	def := plain(NewTierDefinition(""))
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*t = TierDefinition(def)
	t.normalize()
	return nil
}

// UnmarshalYAML applies tier defaults (enabled, text output) before decoding.
func (t *TierDefinition) UnmarshalYAML(value *yaml.Node) error {
	type plain TierDefinition
	def := plain(NewTierDefinition(""))
	if err := value.Decode(&def); err != nil {
		return err
	}
	*t = TierDefinition(def)
	t.normalize()
	return nil
}

func (t *TierDefinition) normalize() {
	if t.OutputFormat == "" {
		t.OutputFormat = FormatText
	}
	if t.PromptTemplate.Variables == nil {
		t.PromptTemplate.Variables = map[string]any{}
	}
}
