// Package step binds script rows to commands. A command implements one
// target.command pair; the Registry resolves rows to runnable steps.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors, internal/flowcontrol
//   - MUST NOT import: internal/execution, internal/plan, internal/cli
package step

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/flowcontrol"
)

// Result is the outcome of a step.
type Result struct {
	Status  constants.StepStatus
	Message string
}

// Pass returns a passing result.
func Pass(message string) Result { return Result{Status: constants.StepStatusPass, Message: message} }

// Fail returns a failing result.
func Fail(message string) Result { return Result{Status: constants.StepStatusFail, Message: message} }

// Failf returns a failing result with a formatted message.
func Failf(format string, args ...any) Result { return Fail(fmt.Sprintf(format, args...)) }

// Warn returns a warning result.
func Warn(message string) Result { return Result{Status: constants.StepStatusWarn, Message: message} }

// Skipped returns a skipped result.
func Skipped(message string) Result {
	return Result{Status: constants.StepStatusSkipped, Message: message}
}

// Step is a runnable step.
type Step interface {
	Execute(ctx context.Context) Result
}

// Variables is the execution state a command reads and writes.
type Variables interface {
	flowcontrol.Resolver
	Set(name, value string)
	Remove(name string)
}

// Command implements one target.command pair.
//
// Run receives parameters with ${var} tokens already substituted. A command
// reports failures through its Result; a panic aborts the iteration.
type Command interface {
	Target() string
	Name() string
	Run(ctx context.Context, vars Variables, params []string) Result
}

// RunFunc is the body of a command built with NewCommand.
type RunFunc func(ctx context.Context, vars Variables, params []string) Result

type funcCommand struct {
	target string
	name   string
	run    RunFunc
}

// NewCommand builds a Command from a function.
func NewCommand(target, name string, run RunFunc) Command {
	return &funcCommand{target: target, name: name, run: run}
}

func (c *funcCommand) Target() string { return c.target }
func (c *funcCommand) Name() string   { return c.name }
func (c *funcCommand) Run(ctx context.Context, vars Variables, params []string) Result {
	return c.run(ctx, vars, params)
}

// Registry maps target.command names to commands.
// It is safe for concurrent read access after initialization.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. Names must be unique.
func (r *Registry) Register(c Command) error {
	key := c.Target() + "." + c.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[key]; ok {
		return fmt.Errorf("%w: %s", tabulaerrors.ErrCommandDuplicate, key)
	}
	r.commands[key] = c
	return nil
}

// Get returns the command for target.name.
func (r *Registry) Get(target, name string) (Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[target+"."+name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", tabulaerrors.ErrCommandNotFound, target, name)
	}
	return c, nil
}

// Has reports whether target.name is registered.
func (r *Registry) Has(target, name string) bool {
	_, err := r.Get(target, name)
	return err == nil
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for k := range r.commands {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Bind resolves row to a Step running against vars.
func (r *Registry) Bind(row domain.StepRow, vars Variables) (Step, error) {
	c, err := r.Get(row.Target, row.Command)
	if err != nil {
		return nil, err
	}
	return &boundStep{command: c, params: row.Params, vars: vars}, nil
}

type boundStep struct {
	command Command
	params  []string
	vars    Variables
}

// Execute substitutes parameters and runs the command.
func (s *boundStep) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Skipped("execution interrupted")
	}
	params := make([]string, len(s.params))
	for i, p := range s.params {
		params[i] = flowcontrol.Substitute(p, s.vars)
	}
	return s.command.Run(ctx, s.vars, params)
}
