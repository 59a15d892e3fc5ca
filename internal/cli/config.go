package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// configFileName is searched upward from the working directory.
const configFileName = ".valetest.toml"

// FileConfig carries runner defaults loaded from .valetest.toml.
// Flags override file values; file values override built-in defaults.
type FileConfig struct {
	// Engine is the engine executable name or path.
	Engine string `toml:"engine"`

	// TimeoutSeconds bounds each engine invocation.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// findConfigFile walks from startDir toward the filesystem root looking for
// a .valetest.toml.
func findConfigFile(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadFileConfig loads runner defaults, returning a zero config when no
// file exists.
func loadFileConfig(startDir string) (FileConfig, error) {
	path, found, err := findConfigFile(startDir)
	if err != nil || !found {
		return FileConfig{}, err
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("%s: parse TOML: %w", path, err)
	}
	return cfg, nil
}
