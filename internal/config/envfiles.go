// Package config merges connection settings from explicit overrides, a
// stored profile, environment variables and .env files, an ad-hoc JSON
// config file, and defaults into one immutable value per invocation.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// parentSearchLevels bounds the upward .env search, mirroring how git
// discovers its repository root.
const parentSearchLevels = 5

// EnvFilePaths returns candidate .env locations in priority order. Pure
// function of its inputs so the search algorithm is testable without the
// real filesystem: an explicit ODOO_CONFIG path, the working directory,
// its ancestors, the XDG config directory, then legacy home locations.
func EnvFilePaths(cwd string, getenv func(string) string, home string) []string {
	var paths []string

	if explicit := getenv("ODOO_CONFIG"); explicit != "" {
		paths = append(paths, expandHome(explicit, home))
	}

	dir := cwd
	for i := 0; i <= parentSearchLevels; i++ {
		paths = append(paths,
			filepath.Join(dir, ".env"),
			filepath.Join(dir, ".odoo-cli.env"),
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
		filepath.Join(xdg, "odoo-cli", ".env"),
		filepath.Join(xdg, "odoo-cli", "config.env"),
		filepath.Join(home, ".odoo-cli.env"),
		filepath.Join(home, ".odoo_cli.env"),
	)

	return paths
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == os.PathSeparator) {
		return filepath.Join(home, path[2:])
	}
	return path
}

// loadEnvFiles loads every existing candidate file into the process
// environment. godotenv.Load never overrides variables that are already
// set, so the shell environment wins over files and earlier files win
// over later ones. Returns the first file found, for source reporting.
func loadEnvFiles(paths []string) string {
	first := ""
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			continue
		}
		if first == "" {
			first = path
		}
	}
	return first
}
