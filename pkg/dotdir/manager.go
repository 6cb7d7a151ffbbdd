// Package dotdir manages the .cortex/ and ~/.cortex directories.
//
// The directory holds config.toml and the watch state used by
// "cortex ingest --watch" to skip files that were already ingested.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the cortex directory.
	dirName = ".cortex"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .cortex/ directory.
// Order of precedence is as follows:
//  1. Provided override, created if missing
//  2. Local ./.cortex/ dir
//  3. Home ~/.cortex/ dir
//  4. If none found, an empty string
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating cortex directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if isDir(filepath.Join(cwd, dirName)) {
		return filepath.Join(cwd, dirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if isDir(filepath.Join(home, dirName)) {
		return filepath.Join(home, dirName), nil
	}

	return "", nil
}

// Init creates ./.cortex/ in the current directory, or at overrideDir.
func (m *Manager) Init(overrideDir string) (string, error) {
	if overrideDir != "" {
		return m.Target(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return m.Target(filepath.Join(cwd, dirName))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
