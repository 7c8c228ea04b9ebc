package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/odoo-cli/odoo-cli/internal/profile"
)

const defaultTimeout = 30 * time.Second

// Resolved is the flattened, precedence-merged connection configuration
// for one invocation. It is never mutated after Resolve returns.
type Resolved struct {
	URL       string
	DB        string
	Username  string
	Password  string
	Timeout   time.Duration
	VerifySSL bool
	ReadOnly  bool

	// Source describes where the winning connection values came from
	// (an env file path or "profile:<name>"), for diagnostics only.
	Source string
	// ProfileName is the active profile, or "".
	ProfileName string
	// Context is the ambient call context carried by the profile.
	Context map[string]any
}

// Overrides carries explicit per-invocation values. Empty strings and
// nil pointers mean "not supplied".
type Overrides struct {
	ConfigFile string
	Profile    string
	URL        string
	DB         string
	Username   string
	Password   string
	Timeout    *int
	VerifySSL  *bool
	ReadOnly   *bool
}

// Resolve merges every configuration source into one value. Order:
// .env files feed the process environment (existing variables win),
// the ad-hoc config file (JSON or dotenv) is applied over the
// environment draft,
// a selected profile overwrites both (profiles are the more explicit,
// more recently curated source), explicit overrides win unconditionally,
// and defaults fill whatever is still unset. Resolution itself never
// fails; call Validate before using the result.
func Resolve(o Overrides) Resolved {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	home, _ := os.UserHomeDir()

	cfg := Resolved{VerifySSL: true}
	cfg.Source = loadEnvFiles(EnvFilePaths(cwd, os.Getenv, home))

	applyEnv(&cfg)
	applyConfigFile(&cfg, o.ConfigFile, home)
	applyProfile(&cfg, o.Profile)
	applyOverrides(&cfg, o)

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if isTruthy(os.Getenv("ODOO_NO_VERIFY_SSL")) {
		cfg.VerifySSL = false
	}
	return cfg
}

func applyEnv(cfg *Resolved) {
	applyVars(cfg, os.Getenv)
}

// applyVars applies the recognized ODOO_* variables from any lookup
// source: the process environment or a parsed dotenv file.
func applyVars(cfg *Resolved, get func(string) string) {
	if v := get("ODOO_URL"); v != "" {
		cfg.URL = v
	}
	if v := get("ODOO_DB"); v != "" {
		cfg.DB = v
	} else if v := get("ODOO_DATABASE"); v != "" {
		cfg.DB = v
	}
	if v := get("ODOO_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := get("ODOO_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := get("ODOO_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timeout = time.Duration(n) * time.Second
		} else {
			cfg.Timeout = defaultTimeout
		}
	}
	if v := get("ODOO_VERIFY_SSL"); v != "" {
		cfg.VerifySSL = !isFalsy(v)
	}
}

// fileConfig is the ad-hoc JSON config file shape.
type fileConfig struct {
	URL       string `json:"url"`
	DB        string `json:"db"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Timeout   *int   `json:"timeout"`
	VerifySSL *bool  `json:"verify_ssl"`
}

func applyConfigFile(cfg *Resolved, path, home string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(expandHome(path, home))
	if err != nil {
		return
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		// Not JSON: treat the file as dotenv lines carrying ODOO_* keys,
		// applied at the same precedence as a JSON config file.
		if vars, perr := godotenv.Unmarshal(string(data)); perr == nil {
			applyVars(cfg, func(key string) string { return vars[key] })
		}
		return
	}
	if fc.URL != "" {
		cfg.URL = fc.URL
	}
	if fc.DB != "" {
		cfg.DB = fc.DB
	}
	if fc.Username != "" {
		cfg.Username = fc.Username
	}
	if fc.Password != "" {
		cfg.Password = fc.Password
	}
	if fc.Timeout != nil {
		cfg.Timeout = time.Duration(*fc.Timeout) * time.Second
	}
	if fc.VerifySSL != nil {
		cfg.VerifySSL = *fc.VerifySSL
	}
}

// applyProfile overwrites the draft with the selected profile's fields.
// A broken or absent store degrades to no profile, never to a failure.
func applyProfile(cfg *Resolved, selector string) {
	store, err := profile.Open()
	if err != nil {
		return
	}
	p, ok := store.Find(selector)
	if !ok {
		return
	}

	cfg.URL = p.URL
	cfg.DB = p.DB
	cfg.Username = p.Username
	cfg.Password = p.Password
	cfg.Timeout = time.Duration(p.Timeout) * time.Second
	cfg.VerifySSL = p.VerifySSL
	cfg.ReadOnly = p.ReadOnly
	cfg.Context = p.Context
	cfg.ProfileName = p.Name
	cfg.Source = "profile:" + p.Name
}

func applyOverrides(cfg *Resolved, o Overrides) {
	if o.URL != "" {
		cfg.URL = o.URL
	}
	if o.DB != "" {
		cfg.DB = o.DB
	}
	if o.Username != "" {
		cfg.Username = o.Username
	}
	if o.Password != "" {
		cfg.Password = o.Password
	}
	if o.Timeout != nil {
		cfg.Timeout = time.Duration(*o.Timeout) * time.Second
	}
	if o.VerifySSL != nil {
		cfg.VerifySSL = *o.VerifySSL
	}
	if o.ReadOnly != nil {
		cfg.ReadOnly = *o.ReadOnly
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func isFalsy(v string) bool {
	switch strings.ToLower(v) {
	case "0", "false", "no":
		return true
	}
	return false
}

// MissingConfigError reports which required connection settings are
// absent after resolution.
type MissingConfigError struct {
	Missing     []string
	SearchPaths []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// Hint renders the remediation text shown to operators.
func (e *MissingConfigError) Hint() string {
	var b strings.Builder
	b.WriteString("set ODOO_URL, ODOO_DB, ODOO_USERNAME and ODOO_PASSWORD, ")
	b.WriteString("or create a .env file in one of:\n")
	limit := len(e.SearchPaths)
	if limit > 5 {
		limit = 5
	}
	for _, path := range e.SearchPaths[:limit] {
		b.WriteString("  " + path + "\n")
	}
	b.WriteString("or point ODOO_CONFIG at an env file")
	return b.String()
}

// Validate checks that the resolved configuration is usable for building
// a client. Callers must invoke it before odoo.New.
func Validate(cfg Resolved) error {
	var missing []string
	if cfg.URL == "" {
		missing = append(missing, "url")
	}
	if cfg.DB == "" {
		missing = append(missing, "db")
	}
	if cfg.Username == "" {
		missing = append(missing, "username")
	}
	if cfg.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) == 0 {
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	home, _ := os.UserHomeDir()
	return &MissingConfigError{
		Missing:     missing,
		SearchPaths: EnvFilePaths(cwd, os.Getenv, home),
	}
}

// Info reports config discovery state for diagnostics and agent-info.
func Info() map[string]any {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	home, _ := os.UserHomeDir()
	paths := EnvFilePaths(cwd, os.Getenv, home)

	found := ""
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			found = path
			break
		}
	}

	return map[string]any{
		"search_paths": paths,
		"found":        found,
		"env_vars": map[string]any{
			"ODOO_URL":      os.Getenv("ODOO_URL") != "",
			"ODOO_DB":       os.Getenv("ODOO_DB") != "",
			"ODOO_USERNAME": os.Getenv("ODOO_USERNAME") != "",
			"ODOO_PASSWORD": os.Getenv("ODOO_PASSWORD") != "",
			"ODOO_PROFILE":  os.Getenv("ODOO_PROFILE"),
			"ODOO_CONFIG":   os.Getenv("ODOO_CONFIG"),
		},
	}
}
