package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/odoo-cli/odoo-cli/internal/fieldval"
	"github.com/odoo-cli/odoo-cli/internal/odoo"
	"github.com/spf13/cobra"
)

// parseDomain decodes an Odoo search domain from its JSON form, e.g.
// '[["active","=",true]]'. A missing argument means "match everything".
func parseDomain(raw string) ([]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var domain []interface{}
	if err := json.Unmarshal([]byte(raw), &domain); err != nil {
		return nil, fmt.Errorf("invalid domain %q: %w", raw, err)
	}
	return domain, nil
}

// parseIDs accepts ids as separate arguments or comma-separated lists.
func parseIDs(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid record id %q", part)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one record id is required")
	}
	return ids, nil
}

func searchOptionsFromFlags(cmd *cobra.Command) *odoo.SearchOptions {
	opts := &odoo.SearchOptions{}
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.Offset, _ = cmd.Flags().GetInt("offset")
	opts.Order, _ = cmd.Flags().GetString("order")
	if opts.Limit == 0 && opts.Offset == 0 && opts.Order == "" {
		return nil
	}
	return opts
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", 0, "Maximum number of records (0 = no limit)")
	cmd.Flags().Int("offset", 0, "Number of records to skip")
	cmd.Flags().String("order", "", "Sort specification, e.g. \"name asc\"")
}

func newSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "search <model> [domain]",
		Short:         "Search for record ids matching a domain",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			domain, err := parseDomain(argAt(args, 1))
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			ids, err := client.Search(args[0], domain, searchOptionsFromFlags(cmd))
			if err != nil {
				return f.Error("search failed", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"model":   args[0],
					"ids":     ids,
					"count":   len(ids),
				})
			}
			if len(ids) == 0 {
				fmt.Println("No records found")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
	addSearchFlags(cmd)
	return cmd
}

func newSearchReadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "search-read <model> [domain]",
		Short:         "Search records and read their fields in one call",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			domain, err := parseDomain(argAt(args, 1))
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			fields, _ := cmd.Flags().GetStringSlice("fields")
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			records, err := client.SearchRead(args[0], domain, fields, searchOptionsFromFlags(cmd))
			if err != nil {
				return f.Error("search-read failed", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"model":   args[0],
					"records": records,
					"count":   len(records),
				})
			}
			return f.Print(records)
		},
	}
	addSearchFlags(cmd)
	cmd.Flags().StringSlice("fields", nil, "Fields to return (default: all)")
	return cmd
}

func newReadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "read <model> <id...>",
		Short:         "Read records by id",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			ids, err := parseIDs(args[1:])
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			fields, _ := cmd.Flags().GetStringSlice("fields")
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			records, err := client.Read(args[0], ids, fields, nil)
			if err != nil {
				return f.Error("read failed", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"model":   args[0],
					"records": records,
					"count":   len(records),
				})
			}
			return f.Print(records)
		},
	}
	cmd.Flags().StringSlice("fields", nil, "Fields to return (default: all)")
	return cmd
}

func newSearchCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "search-count <model> [domain]",
		Short:         "Count records matching a domain",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			domain, err := parseDomain(argAt(args, 1))
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			count, err := client.SearchCount(args[0], domain, nil)
			if err != nil {
				return f.Error("search-count failed", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"model":   args[0],
					"count":   count,
				})
			}
			fmt.Println(count)
			return nil
		},
	}
}

func printNameEntries(entries []odoo.NameEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\n", e.ID, e.Name)
	}
	w.Flush()
}

func newNameGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "name-get <model> <id...>",
		Short:         "Resolve record ids to display names",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			ids, err := parseIDs(args[1:])
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			entries, err := client.NameGet(args[0], ids, nil)
			if err != nil {
				return f.Error("name-get failed", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"model":   args[0],
					"names":   entries,
				})
			}
			printNameEntries(entries)
			return nil
		},
	}
}

func newNameSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "name-search <model> <name>",
		Short:         "Search records by display name",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			domainRaw, _ := cmd.Flags().GetString("domain")
			domain, err := parseDomain(domainRaw)
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			operator, _ := cmd.Flags().GetString("operator")
			limit, _ := cmd.Flags().GetInt("limit")
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			entries, err := client.NameSearch(args[0], args[1], domain, operator, limit, nil)
			if err != nil {
				return f.Error("name-search failed", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"model":   args[0],
					"names":   entries,
					"count":   len(entries),
				})
			}
			if len(entries) == 0 {
				fmt.Println("No records found")
				return nil
			}
			printNameEntries(entries)
			return nil
		},
	}
	cmd.Flags().String("operator", "ilike", "Match operator (ilike, =, ...)")
	cmd.Flags().Int("limit", 100, "Maximum number of matches")
	cmd.Flags().String("domain", "", "Additional domain filter as JSON")
	return cmd
}

func newGetFieldsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "get-fields <model>",
		Short:         "Show the field definitions of a model",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			fields, _ := cmd.Flags().GetStringSlice("fields")
			attributes, _ := cmd.Flags().GetStringSlice("attributes")
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			defs, err := client.FieldsGet(args[0], fields, attributes)
			if err != nil {
				return f.Error("get-fields failed", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"model":   args[0],
					"fields":  defs,
				})
			}
			return f.Print(defs)
		},
	}
	cmd.Flags().StringSlice("fields", nil, "Restrict to these fields")
	cmd.Flags().StringSlice("attributes", []string{"string", "type", "required", "readonly", "relation"},
		"Field attributes to include")
	return cmd
}

func newGetModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "get-models",
		Short:         "List the models available on the server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
				client.RefreshModels()
			}
			models, err := client.Models()
			if err != nil {
				return f.Error("get-models failed", err)
			}
			if filter, _ := cmd.Flags().GetString("filter"); filter != "" {
				filtered := models[:0]
				for _, m := range models {
					if strings.Contains(m, filter) {
						filtered = append(filtered, m)
					}
				}
				models = filtered
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"models":  models,
					"count":   len(models),
				})
			}
			for _, m := range models {
				fmt.Println(m)
			}
			return nil
		},
	}
	cmd.Flags().Bool("refresh", false, "Bypass the cached catalog and refetch")
	cmd.Flags().String("filter", "", "Only list models containing this substring")
	return cmd
}

// parseValuesArgs builds a values map from field=value arguments or the
// --json-data flag. The flag wins when both are supplied.
func parseValuesArgs(cmd *cobra.Command, pairs []string) (map[string]interface{}, error) {
	if raw, _ := cmd.Flags().GetString("json-data"); raw != "" {
		var values map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("invalid --json-data: %w", err)
		}
		return values, nil
	}
	values, err := fieldval.ParseValues(pairs)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no field values supplied (use field=value or --json-data)")
	}
	return values, nil
}

func newCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "create <model> [field=value...]",
		Short:         "Create a record",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			values, err := parseValuesArgs(cmd, args[1:])
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			id, err := client.Create(args[0], values, nil)
			if err != nil {
				return f.Error("create failed", err)
			}
			return f.Success(fmt.Sprintf("Created %s record %d", args[0], id), map[string]interface{}{
				"model": args[0],
				"id":    id,
			})
		},
	}
	cmd.Flags().String("json-data", "", "Record values as a JSON object")
	return cmd
}

func newUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "update <model> <ids> [field=value...]",
		Short:         "Update records by id",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			ids, err := parseIDs(args[1:2])
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			values, err := parseValuesArgs(cmd, args[2:])
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			if err := client.Write(args[0], ids, values, nil); err != nil {
				return f.Error("update failed", err)
			}
			return f.Success(fmt.Sprintf("Updated %d %s record(s)", len(ids), args[0]), map[string]interface{}{
				"model": args[0],
				"ids":   ids,
			})
		},
	}
	cmd.Flags().String("json-data", "", "Record values as a JSON object")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "delete-records <model> <ids>",
		Aliases:       []string{"delete"},
		Short:         "Delete records by id",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			ids, err := parseIDs(args[1:])
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			if err := client.Unlink(args[0], ids, nil); err != nil {
				return f.Error("delete failed", err)
			}
			return f.Success(fmt.Sprintf("Deleted %d %s record(s)", len(ids), args[0]), map[string]interface{}{
				"model": args[0],
				"ids":   ids,
			})
		},
	}
}

func newExecuteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "execute <model> <method> [args-json]",
		Short:         "Call an arbitrary model method",
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			var callArgs []interface{}
			if len(args) == 3 {
				if err := json.Unmarshal([]byte(args[2]), &callArgs); err != nil {
					return f.Error("invalid arguments", fmt.Errorf("args must be a JSON array: %w", err))
				}
			}
			var kwargs map[string]interface{}
			if raw, _ := cmd.Flags().GetString("kwargs"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &kwargs); err != nil {
					return f.Error("invalid arguments", fmt.Errorf("invalid --kwargs: %w", err))
				}
			}
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			result, err := client.Execute(args[0], args[1], callArgs, kwargs)
			if err != nil {
				return f.Error("execute failed", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"model":   args[0],
					"method":  args[1],
					"result":  result,
				})
			}
			return f.Print(result)
		},
	}
	cmd.Flags().String("kwargs", "", "Keyword arguments as a JSON object")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "server-version",
		Short:         "Show the Odoo server version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}
			info, err := client.Version()
			if err != nil {
				return f.Error("version check failed", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"version": info,
				})
			}
			if v, ok := info["server_version"].(string); ok {
				fmt.Println(v)
				return nil
			}
			return f.Print(info)
		},
	}
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
