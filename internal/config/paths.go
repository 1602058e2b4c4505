package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/errors"
)

// GlobalConfigDir returns the global tabula directory, typically ~/.tabula.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.TabulaHome), nil
}

// GlobalConfigPath returns the global configuration file path.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the project configuration file path, relative
// to the working directory.
func ProjectConfigPath() string {
	return filepath.Join(constants.ProjectConfigDir, constants.ProjectConfigName)
}
