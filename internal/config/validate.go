package config

import (
	"fmt"
	"strings"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/errors"
)

// Validate checks configuration values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}
	if strings.TrimSpace(cfg.Output.Dir) == "" {
		return fmt.Errorf("output.dir: %w", errors.ErrEmptyValue)
	}
	if cfg.Execution.PollInterval < constants.MinPollInterval {
		return fmt.Errorf("execution.poll_interval %s must be at least %s: %w",
			cfg.Execution.PollInterval, constants.MinPollInterval, errors.ErrValueOutOfRange)
	}
	if cfg.Execution.MaxParallel < 0 {
		return fmt.Errorf("execution.max_parallel %d: %w", cfg.Execution.MaxParallel, errors.ErrValueOutOfRange)
	}
	if cfg.Execution.StartInterval < 0 {
		return fmt.Errorf("execution.start_interval %s: %w", cfg.Execution.StartInterval, errors.ErrValueOutOfRange)
	}
	if ext := cfg.Macro.Extension; ext != "" && !strings.HasPrefix(ext, ".") {
		return fmt.Errorf("macro.extension %q must start with '.': %w", ext, errors.ErrInvalidArgument)
	}
	return nil
}
