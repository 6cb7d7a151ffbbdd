// Package sqlitepath locates an existing cortex SQLite database.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolveSQLitePath returns override when set, then CORTEX_SQLITE or
// CORTEX_DB, then the first existing well-known database file.
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("CORTEX_SQLITE")); envPath != "" {
		return envPath, nil
	}
	if envPath := strings.TrimSpace(os.Getenv("CORTEX_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find cortex SQLite database; pass --sqlite")
}

func sqliteCandidates() []string {
	candidates := []string{
		"cortex.db",
		"cortex.sqlite",
		filepath.Join(".cortex", "cortex.db"),
		filepath.Join(".cortex", "cortex.sqlite"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".cortex", "cortex.db"),
			filepath.Join(home, ".cortex", "cortex.sqlite"),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "cortex", "cortex.db"),
			filepath.Join(xdgHome, "cortex", "cortex.sqlite"),
		}, candidates...)
	}

	return candidates
}
