package profile

import (
	"os"
	"path/filepath"
)

// parentSearchLevels bounds the upward directory walk, mirroring how
// version-control tools discover their repository root.
const parentSearchLevels = 5

// SearchPaths returns the candidate store locations in priority order.
// Pure function of its inputs: cwd, an environment lookup and the home
// directory, so the search algorithm is testable without touching the
// real filesystem.
func SearchPaths(cwd string, getenv func(string) string, home string) []string {
	var paths []string

	dir := cwd
	for i := 0; i <= parentSearchLevels; i++ {
		paths = append(paths,
			filepath.Join(dir, ".odoo-cli.yaml"),
			filepath.Join(dir, "odoo-cli.yaml"),
		)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	xdg := getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		xdg = filepath.Join(home, ".config")
	}
	paths = append(paths,
		filepath.Join(xdg, "odoo-cli", "config.yaml"),
		filepath.Join(xdg, "odoo-cli", "profiles.yaml"),
		filepath.Join(home, ".odoo-cli.yaml"),
	)

	return paths
}

// DefaultWritePath is where a store file is created when none exists yet.
func DefaultWritePath(getenv func(string) string, home string) string {
	xdg := getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, "odoo-cli", "config.yaml")
}

// findStoreFile returns the first existing candidate, or "" when no
// store file exists anywhere on the search path.
func findStoreFile(cwd string, getenv func(string) string, home string) string {
	for _, path := range SearchPaths(cwd, getenv, home) {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
