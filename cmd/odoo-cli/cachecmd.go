package main

import (
	"fmt"

	"github.com/odoo-cli/odoo-cli/internal/cache"
	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cache",
		Short:         "Manage the local response cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	clearCmd := &cobra.Command{
		Use:           "clear",
		Short:         "Drop cached responses",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			store := cache.New("")
			if modelsOnly, _ := cmd.Flags().GetBool("models"); modelsOnly {
				client, _, err := resolveClient(cmd)
				if err != nil {
					return f.Error("configuration error", err)
				}
				client.RefreshModels()
				return f.Success("Model catalog cache cleared", map[string]interface{}{
					"scope": "models",
				})
			}
			if err := store.ClearAll(); err != nil {
				return f.Error("failed to clear cache", err)
			}
			return f.Success(fmt.Sprintf("Cache cleared (%s)", store.Dir()), map[string]interface{}{
				"dir": store.Dir(),
			})
		},
	}
	clearCmd.Flags().Bool("models", false, "Only drop the model catalog for the configured server")

	dirCmd := &cobra.Command{
		Use:           "dir",
		Short:         "Print the cache directory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			store := cache.New("")
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"dir":     store.Dir(),
				})
			}
			fmt.Println(store.Dir())
			return nil
		},
	}

	cmd.AddCommand(clearCmd, dirCmd)
	return cmd
}
