package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/odoo-cli/odoo-cli/internal/buscontext"
	"github.com/odoo-cli/odoo-cli/internal/config"
	"github.com/odoo-cli/odoo-cli/internal/fieldval"
	"github.com/odoo-cli/odoo-cli/internal/odoo"
	"github.com/odoo-cli/odoo-cli/internal/tlswarn"
	clientversion "github.com/odoo-cli/odoo-cli/internal/version"
	"github.com/spf13/cobra"
)

// Global variables for use across commands
var rootCmd *cobra.Command

// OutputFormatter handles output in JSON or human-readable format
type OutputFormatter struct {
	jsonMode bool
}

// newOutputFormatter creates a new formatter based on the command's --json flag
// and the ODOO_CLI_JSON environment variable.
func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	if !jsonMode {
		switch strings.ToLower(os.Getenv("ODOO_CLI_JSON")) {
		case "1", "true", "yes", "on":
			jsonMode = true
		}
	}
	return &OutputFormatter{jsonMode: jsonMode}
}

// Print outputs data in the appropriate format
func (f *OutputFormatter) Print(data interface{}) error {
	if f.jsonMode {
		jsonBytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(jsonBytes))
	} else {
		switch v := data.(type) {
		case string:
			fmt.Println(v)
		default:
			// Fallback to JSON for unknown types
			jsonBytes, _ := json.MarshalIndent(data, "", "  ")
			fmt.Println(string(jsonBytes))
		}
	}
	return nil
}

// Success outputs a success message
func (f *OutputFormatter) Success(message string, data map[string]interface{}) error {
	if f.jsonMode {
		output := map[string]interface{}{
			"success": true,
			"message": message,
		}
		for k, v := range data {
			output[k] = v
		}
		return f.Print(output)
	}
	fmt.Println(message)
	return nil
}

// Error outputs an error message and returns an error carrying the original
// cause so main can map it to an exit code.
func (f *OutputFormatter) Error(message string, err error) error {
	if f.jsonMode {
		output := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		var oerr *odoo.Error
		if errors.As(err, &oerr) {
			output["error"] = oerr.Message
			for k, v := range oerr.ToMap() {
				output[k] = v
			}
		} else if err != nil {
			output["details"] = err.Error()
		}
		jsonBytes, _ := json.MarshalIndent(output, "", "  ")
		fmt.Fprintln(os.Stderr, string(jsonBytes))
	} else {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
		} else {
			fmt.Fprintln(os.Stderr, message)
		}
		var oerr *odoo.Error
		if errors.As(err, &oerr) && oerr.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", oerr.Suggestion)
		}
		var merr *config.MissingConfigError
		if errors.As(err, &merr) {
			fmt.Fprintln(os.Stderr, merr.Hint())
		}
	}
	if err == nil {
		return errors.New(message)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// globalOverrides collects the persistent connection flags into the
// precedence layer that wins over every other configuration source.
func globalOverrides(cmd *cobra.Command) config.Overrides {
	flags := cmd.Flags()
	o := config.Overrides{}
	o.ConfigFile, _ = flags.GetString("config")
	o.Profile, _ = flags.GetString("profile")
	o.URL, _ = flags.GetString("url")
	o.DB, _ = flags.GetString("db")
	o.Username, _ = flags.GetString("username")
	o.Password, _ = flags.GetString("password")
	if flags.Changed("timeout") {
		t, _ := flags.GetInt("timeout")
		o.Timeout = &t
	}
	if noVerify, _ := flags.GetBool("no-verify-ssl"); noVerify {
		v := false
		o.VerifySSL = &v
	}
	if flags.Changed("read-only") {
		ro, _ := flags.GetBool("read-only")
		o.ReadOnly = &ro
	}
	return o
}

// resolveClient assembles a connected-on-demand client from the merged
// configuration. Nothing touches the network here; the first RPC does.
func resolveClient(cmd *cobra.Command) (*odoo.Client, config.Resolved, error) {
	cfg := config.Resolve(globalOverrides(cmd))
	if err := config.Validate(cfg); err != nil {
		return nil, cfg, err
	}
	if !cfg.VerifySSL {
		tlswarn.Warn(cfg.URL)
	}
	force, _ := cmd.Flags().GetBool("force")
	ambient := cfg.Context
	if extra, err := fieldval.ParseContext(contextFlag(cmd)); err != nil {
		return nil, cfg, err
	} else if len(extra) > 0 {
		merged := make(map[string]interface{}, len(ambient)+len(extra))
		for k, v := range ambient {
			merged[k] = v
		}
		for k, v := range extra {
			merged[k] = v
		}
		ambient = merged
	}
	client := odoo.New(odoo.Config{
		URL:        cfg.URL,
		DB:         cfg.DB,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Timeout:    cfg.Timeout,
		VerifySSL:  cfg.VerifySSL,
		ReadOnly:   cfg.ReadOnly,
		ForceWrite: force,
		Context:    ambient,
	})
	return client, cfg, nil
}

// displayVersion is what --version prints: the stamped build version
// with a uniform "v" prefix.
func displayVersion() string {
	return clientversion.FormatVersion(clientversion.String())
}

func contextFlag(cmd *cobra.Command) []string {
	pairs, _ := cmd.Flags().GetStringArray("context")
	return pairs
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "odoo-cli",
		Short: "Odoo CLI - JSON-RPC client for Odoo servers",
		Long: `odoo-cli talks to an Odoo server over its JSON-RPC endpoint.

It resolves connection settings from flags, named profiles, environment
variables and config files, and exposes the ORM verbs (search, read,
create, write, unlink, execute) plus a JavaScript scripting mode for
multi-step workflows.`,
	}
	rootCmd.Version = displayVersion()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	pf := rootCmd.PersistentFlags()
	pf.Bool("json", false, "Output in JSON format")
	pf.Bool("force", false, "Allow write operations on a read-only connection")
	pf.String("profile", "", "Named connection profile to use")
	pf.String("config", "", "Path to a config file (.env or JSON)")
	pf.String("url", "", "Odoo server URL (e.g. https://mycompany.odoo.com)")
	pf.String("db", "", "Database name")
	pf.StringP("username", "u", "", "Login username")
	pf.StringP("password", "p", "", "Login password or API key")
	pf.Int("timeout", 30, "Request timeout in seconds")
	pf.Bool("no-verify-ssl", false, "Disable TLS certificate verification")
	pf.Bool("read-only", false, "Reject create/write/unlink/copy calls")
	pf.StringArray("context", nil, "Extra context key=value pairs (repeatable)")
}

func main() {
	log.SetFlags(0)

	rootCmd.AddCommand(
		newSearchCommand(),
		newSearchReadCommand(),
		newReadCommand(),
		newSearchCountCommand(),
		newNameGetCommand(),
		newNameSearchCommand(),
		newGetFieldsCommand(),
		newGetModelsCommand(),
		newAggregateCommand(),
		newCreateCommand(),
		newCreateBulkCommand(),
		newUpdateCommand(),
		newUpdateBulkCommand(),
		newDeleteCommand(),
		newExecuteCommand(),
		newVersionCommand(),
		newExecCommand(),
		newProfilesCommand(),
		newContextCommand(),
		newAgentInfoCommand(),
		newCacheCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		// Error is already printed by command handlers
		os.Exit(odoo.ExitCode(err))
	}
}

// loadContextSection is shared by context show and agent-info.
func loadContextSection(path, section string) (interface{}, error) {
	mgr := buscontext.NewManager(path)
	if section == "" {
		return mgr.Load()
	}
	return mgr.Section(section)
}
