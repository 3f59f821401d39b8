package pipeline

import (
	"github.com/aristath/scaffold/internal/template"
)

// runContext accumulates the variables visible to later tiers: global
// variables first, then one entry per executed tier. Tiers only ever see a
// snapshot, so nothing a tier does can change what an earlier tier saw.
type runContext struct {
	vars template.Vars
}

func newRunContext(layers ...template.Vars) *runContext {
	return &runContext{vars: template.Merge(layers...)}
}

// snapshot returns a frozen copy of the current variables.
func (c *runContext) snapshot() template.Vars {
	return c.vars.Clone()
}

func (c *runContext) set(name string, v template.Value) {
	c.vars[name] = v
}
