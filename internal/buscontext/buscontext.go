// Package buscontext reads the free-form .odoo-context.json file that
// describes a project's business landscape (companies, warehouses,
// workflows) for LLM operators. The file is advisory: a missing file is
// an empty context, never an error.
package buscontext

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the default business-context file name.
const FileName = ".odoo-context.json"

const parentSearchLevels = 5

// listSections are the sections that default to an empty list when
// absent; "notes" defaults to an empty map.
var listSections = map[string]struct{}{
	"companies":  {},
	"warehouses": {},
	"workflows":  {},
	"modules":    {},
}

// Manager locates and loads one business-context file.
type Manager struct {
	path   string
	loaded map[string]any
}

// NewManager resolves the context file path. Precedence: the explicit
// path, the ODOO_CONTEXT_FILE environment variable, a parent-directory
// search, then the working directory default.
func NewManager(explicit string) *Manager {
	if explicit != "" {
		return &Manager{path: explicit}
	}
	if env := os.Getenv("ODOO_CONTEXT_FILE"); env != "" {
		return &Manager{path: env}
	}
	return &Manager{path: searchContextFile()}
}

func searchContextFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	dir := cwd
	for i := 0; i <= parentSearchLevels; i++ {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return filepath.Join(cwd, FileName)
}

// Path returns the resolved context file location.
func (m *Manager) Path() string { return m.path }

// Load parses the context file. A missing file yields an empty context;
// malformed JSON is an error because a half-read context would silently
// mislead the operator.
func (m *Manager) Load() (map[string]any, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.loaded = map[string]any{}
			return m.loaded, nil
		}
		return nil, fmt.Errorf("buscontext: read %s: %w", m.path, err)
	}

	var ctx map[string]any
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("buscontext: invalid JSON in %s: %w", m.path, err)
	}
	m.loaded = ctx
	return ctx, nil
}

// Section returns one named section, defaulting to an empty list or map
// depending on the section's conventional shape.
func (m *Manager) Section(name string) (any, error) {
	if m.loaded == nil {
		if _, err := m.Load(); err != nil {
			return nil, err
		}
	}
	if value, ok := m.loaded[name]; ok {
		return value, nil
	}
	if name == "notes" {
		return map[string]any{}, nil
	}
	if _, ok := listSections[name]; ok {
		return []any{}, nil
	}
	return []any{}, nil
}

// Report is the outcome of validating a context file.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks the context file. Strict mode additionally requires
// the major sections to be present and non-empty and upgrades warnings
// to errors.
func (m *Manager) Validate(strict bool) Report {
	var report Report

	data, err := os.ReadFile(m.path)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("context file not found: %s", m.path))
		return report
	}

	var ctx map[string]any
	if err := json.Unmarshal(data, &ctx); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("invalid JSON: %v", err))
		return report
	}

	lower := strings.ToLower(string(data))
	if strings.Contains(lower, "password") {
		report.Warnings = append(report.Warnings,
			`found literal "password" in context file - ensure no credentials are included`)
	}
	if strings.Contains(lower, "token") {
		report.Warnings = append(report.Warnings,
			`found literal "token" in context file - ensure no credentials are included`)
	}
	if len(data) > 1_000_000 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("context file is %.1fMB - consider simplifying", float64(len(data))/1_000_000))
	}

	if strict {
		for _, section := range []string{"companies", "warehouses", "workflows", "modules", "notes"} {
			value, ok := ctx[section]
			if !ok {
				report.Errors = append(report.Errors,
					fmt.Sprintf("section %q is missing (required in strict mode)", section))
				continue
			}
			if isEmptySection(value) {
				report.Errors = append(report.Errors,
					fmt.Sprintf("section %q is empty (required in strict mode)", section))
			}
		}
		project, ok := ctx["project"].(map[string]any)
		if !ok {
			report.Errors = append(report.Errors, "project metadata is missing (required in strict mode)")
		} else if name, _ := project["name"].(string); name == "" {
			report.Errors = append(report.Errors, "project name is required in strict mode")
		}
		for _, w := range report.Warnings {
			report.Errors = append(report.Errors, "warning: "+w)
		}
		report.Warnings = nil
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// WriteSkeleton creates a starter context file with the standard
// sections. Refuses to overwrite an existing file.
func WriteSkeleton(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("buscontext: %s already exists", path)
	}

	skeleton := map[string]any{
		"project": map[string]any{
			"name":        "",
			"description": "",
		},
		"companies":  []any{},
		"warehouses": []any{},
		"workflows":  []any{},
		"modules":    []any{},
		"notes":      map[string]any{},
	}
	data, err := json.MarshalIndent(skeleton, "", "  ")
	if err != nil {
		return fmt.Errorf("buscontext: marshal skeleton: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("buscontext: write %s: %w", path, err)
	}
	return nil
}

func isEmptySection(v any) bool {
	switch value := v.(type) {
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	case nil:
		return true
	}
	return false
}
