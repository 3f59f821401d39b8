package template

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindString Kind = iota // Plain text
	KindList               // Ordered list of strings
	KindMap                // String keys to string values
)

// Value is a template variable. It is one of a closed set of kinds so that
// rendering any value to text is always defined.
type Value struct {
	kind Kind
	str  string
	list []string
	m    map[string]string
}

// Vars maps variable names to values.
type Vars map[string]Value

// String creates a string value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// List creates a list value. The items are copied.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Map creates a mapping value. The map is copied.
func Map(m map[string]string) Value {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// Items returns a copy of the list items. Nil for non-list values.
func (v Value) Items() []string {
	if v.kind != KindList {
		return nil
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp
}

// Entries returns a copy of the map entries. Nil for non-map values.
func (v Value) Entries() map[string]string {
	if v.kind != KindMap {
		return nil
	}
	cp := make(map[string]string, len(v.m))
	for k, val := range v.m {
		cp[k] = val
	}
	return cp
}

// String returns the textual form substituted into templates.
// Lists render as "- item" lines, maps as "key: value" lines sorted by key.
func (v Value) String() string {
	switch v.kind {
	case KindList:
		lines := make([]string, len(v.list))
		for i, item := range v.list {
			lines[i] = "- " + item
		}
		return strings.Join(lines, "\n")
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, len(keys))
		for i, k := range keys {
			lines[i] = k + ": " + v.m[k]
		}
		return strings.Join(lines, "\n")
	default:
		return v.str
	}
}

// FromAny converts a decoded JSON or YAML value into a Value.
// Scalars become strings, arrays become lists and objects become maps.
// Nested arrays and objects are flattened to compact JSON text.
func FromAny(x any) Value {
	switch t := x.(type) {
	case Value:
		return t
	case []any:
		items := make([]string, len(t))
		for i, item := range t {
			items[i] = scalarText(item)
		}
		return List(items...)
	case []string:
		return List(t...)
	case map[string]any:
		m := make(map[string]string, len(t))
		for k, item := range t {
			m[k] = scalarText(item)
		}
		return Map(m)
	case map[string]string:
		return Map(t)
	default:
		return String(scalarText(x))
	}
}

// FromMap converts a decoded variables object into Vars.
func FromMap(m map[string]any) Vars {
	vars := make(Vars, len(m))
	for k, v := range m {
		vars[k] = FromAny(v)
	}
	return vars
}

func scalarText(x any) string {
	switch t := x.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// Clone returns a shallow copy of vars. Values are immutable, so this is
// sufficient to freeze a snapshot.
func (vars Vars) Clone() Vars {
	cp := make(Vars, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	return cp
}

// Merge returns a new Vars with the entries of each layer applied in order.
// Later layers win on key collision.
func Merge(layers ...Vars) Vars {
	size := 0
	for _, l := range layers {
		size += len(l)
	}
	out := make(Vars, size)
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}
