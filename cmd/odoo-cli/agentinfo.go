package main

import (
	"github.com/odoo-cli/odoo-cli/internal/config"
	"github.com/odoo-cli/odoo-cli/internal/odoo"
	"github.com/odoo-cli/odoo-cli/internal/profile"
	clientversion "github.com/odoo-cli/odoo-cli/internal/version"
	"github.com/spf13/cobra"
)

// newAgentInfoCommand describes the tool to LLM agents. Output is
// always JSON regardless of the --json flag.
func newAgentInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "agent-info",
		Short:         "Machine-readable tool description for LLM agents",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{jsonMode: true}

			var profiles []string
			active := ""
			if store, err := profile.Open(); err == nil {
				profiles = store.Names()
				explicit, _ := cmd.Flags().GetString("profile")
				active = store.ActiveName(explicit)
			}

			return f.Print(map[string]interface{}{
				"name":    "odoo-cli",
				"version": clientversion.String(),
				"purpose": "JSON-RPC client for Odoo servers: search, read, create, update and delete records, call model methods, and run JavaScript workflows.",
				"primary_usage": map[string]interface{}{
					"recommendation": "Prefer 'exec' for multi-step work; it runs JavaScript with a pre-authenticated 'client' object and avoids one process per RPC call.",
					"examples": []string{
						`odoo-cli exec -c 'result = client.search_read("res.partner", [["is_company","=",true]], {fields: ["name","email"], limit: 5})' --json`,
						`odoo-cli search res.partner '[["customer_rank",">",0]]' --limit 10 --json`,
						`odoo-cli create res.partner name="Acme" email=info@acme.example --json`,
					},
				},
				"script_api": map[string]interface{}{
					"globals": []string{"client", "print", "result"},
					"client_methods": []string{
						"search", "search_read", "read", "search_count",
						"name_get", "name_search", "fields_get",
						"create", "write", "unlink", "execute",
						"get_models", "version",
					},
				},
				"commands": commandSummaries(cmd.Root()),
				"configuration": map[string]interface{}{
					"sources":   "flags > profile > --config file (JSON or .env) > environment (.env files) > defaults",
					"discovery": config.Info(),
					"profiles":  profiles,
					"active":    active,
					"json_mode": "set --json or ODOO_CLI_JSON=1 for structured output",
					"read_only": "set --read-only (or a readonly profile) to block create/write/unlink/copy; --force overrides",
				},
				"exit_codes": map[string]interface{}{
					"0": "success",
					"1": "connection error",
					"2": "authentication error",
					"3": "other failure",
				},
				"error_kinds": []string{
					string(odoo.KindConnection), string(odoo.KindAuth),
					string(odoo.KindPermission), string(odoo.KindServer),
					string(odoo.KindUsage),
				},
			})
		},
	}
}

func commandSummaries(root *cobra.Command) []map[string]string {
	var out []map[string]string
	for _, c := range root.Commands() {
		if c.Hidden || c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		out = append(out, map[string]string{
			"name":    c.Name(),
			"usage":   c.Use,
			"summary": c.Short,
		})
	}
	return out
}
