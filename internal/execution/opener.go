package execution

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// ResultOpener shows a saved execution unit to the user.
type ResultOpener interface {
	Open(ctx context.Context, path string) error
}

// CommandOpener opens files with an external program.
type CommandOpener struct {
	// Command overrides the platform default program.
	Command string
}

// Open starts the program and does not wait for it.
func (o CommandOpener) Open(ctx context.Context, path string) error {
	name := o.Command
	if name == "" {
		name = defaultOpenCommand()
	}
	cmd := exec.CommandContext(ctx, name, path) //#nosec G204 -- program comes from user configuration
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func defaultOpenCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

var _ ResultOpener = CommandOpener{}
