package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/odoo-cli/odoo-cli/internal/script"
	"github.com/spf13/cobra"
)

func newExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [script.js]",
		Short: "Run a JavaScript workflow against the server",
		Long: `exec runs a JavaScript program with a pre-authenticated "client"
object exposing the typed verbs (client.search, client.search_read,
client.create, ...). Use print() for free-form output and assign to
"result" for structured output.

Read the script from a file argument, from --code, or from stdin ("-").`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runExec,
	}
	cmd.Flags().StringP("code", "c", "", "Inline script source")
	cmd.Flags().Int("max-seconds", 0, "Interrupt the script after this many seconds (0 = no limit)")
	return cmd
}

func loadScriptSource(cmd *cobra.Command, args []string) (string, error) {
	if code, _ := cmd.Flags().GetString("code"); code != "" {
		return code, nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("supply a script file, --code, or \"-\" for stdin")
	}
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading script from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}

func runExec(cmd *cobra.Command, args []string) error {
	f := newOutputFormatter(cmd)
	src, err := loadScriptSource(cmd, args)
	if err != nil {
		return f.Error("invalid arguments", err)
	}
	client, _, err := resolveClient(cmd)
	if err != nil {
		return f.Error("configuration error", err)
	}

	maxSeconds, _ := cmd.Flags().GetInt("max-seconds")
	runner := script.NewRunner(client)
	res, err := runner.Run(src, time.Duration(maxSeconds)*time.Second)
	if err != nil {
		if res.Output != "" && !f.jsonMode {
			fmt.Print(res.Output)
		}
		return f.Error("script failed", err)
	}

	if f.jsonMode {
		return f.Print(map[string]interface{}{
			"success": true,
			"result":  res.Value,
			"output":  res.Output,
		})
	}
	if res.Output != "" {
		fmt.Print(res.Output)
	}
	if res.Value != nil {
		return f.Print(res.Value)
	}
	return nil
}
