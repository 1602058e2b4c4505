package execution

import (
	"maps"
	"strconv"
	"strings"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	"github.com/mrz1836/tabula/internal/flowcontrol"
	"github.com/mrz1836/tabula/internal/iteration"
	"github.com/mrz1836/tabula/internal/step"
)

// Context is the mutable state of one script execution. It is owned by a
// single worker and never shared.
type Context struct {
	vars          map[string]string
	failImmediate bool
	endImmediate  bool
	tracker       *flowcontrol.TimeTracker
}

// NewContext creates a Context seeded with data carried from the previous script.
func NewContext(intra domain.IntraExecutionData, tracker *flowcontrol.TimeTracker) *Context {
	vars := make(map[string]string, len(intra)+16)
	maps.Copy(vars, intra)
	return &Context{vars: vars, tracker: tracker}
}

// Lookup implements flowcontrol.Resolver.
func (c *Context) Lookup(name string) (string, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Set implements step.Variables.
func (c *Context) Set(name, value string) {
	c.vars[name] = value
}

// Remove implements step.Variables.
func (c *Context) Remove(name string) {
	delete(c.vars, name)
}

// Values returns a copy of every variable.
func (c *Context) Values() map[string]string {
	return maps.Clone(c.vars)
}

// WithPrefix returns the variables whose name starts with prefix, prefix removed.
func (c *Context) WithPrefix(prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range c.vars {
		if name, ok := strings.CutPrefix(k, prefix); ok && name != "" {
			out[name] = v
		}
	}
	return out
}

// FailImmediate reports whether the execution must stop as failed.
func (c *Context) FailImmediate() bool { return c.failImmediate }

// EndImmediate reports whether the execution must stop as ended.
func (c *Context) EndImmediate() bool { return c.endImmediate }

// MarkFailImmediate sets the fail-immediate flag. It is never cleared.
func (c *Context) MarkFailImmediate() {
	c.failImmediate = true
	c.vars[constants.KeyFailImmediate] = strconv.FormatBool(true)
}

// MarkEndImmediate sets the end-immediate flag. It is never cleared.
func (c *Context) MarkEndImmediate() {
	c.endImmediate = true
	c.vars[constants.KeyEndImmediate] = strconv.FormatBool(true)
}

// apply records the flags carried by a decision.
func (c *Context) apply(d flowcontrol.Decision) {
	if d.FailImmediate {
		c.MarkFailImmediate()
	}
	if d.EndImmediate {
		c.MarkEndImmediate()
	}
}

// beginIteration loads the iteration's data over the current variables.
func (c *Context) beginIteration(data *iteration.Data) {
	if data.Index == 1 {
		delete(c.vars, constants.KeyLastIteration)
	}
	maps.Copy(c.vars, data.Values())
}

var (
	_ flowcontrol.Resolver = (*Context)(nil)
	_ step.Variables       = (*Context)(nil)
)
