package main

import (
	"fmt"

	"github.com/odoo-cli/odoo-cli/internal/buscontext"
	"github.com/spf13/cobra"
)

func newContextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "context",
		Short:         "Inspect the shared business context file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("file", "", "Path to the context file (default: search upward for "+buscontext.FileName+")")
	cmd.AddCommand(newContextShowCommand(), newContextValidateCommand(), newContextInitCommand())
	return cmd
}

func newContextInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "init",
		Short:         "Create a skeleton context file in the working directory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				path = buscontext.FileName
			}
			if err := buscontext.WriteSkeleton(path); err != nil {
				return f.Error("failed to create context file", err)
			}
			return f.Success(fmt.Sprintf("Created %s", path), map[string]interface{}{
				"file": path,
			})
		},
	}
}

func newContextShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "show [section]",
		Short:         "Print the business context, or one section of it",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			path, _ := cmd.Flags().GetString("file")
			data, err := loadContextSection(path, argAt(args, 0))
			if err != nil {
				return f.Error("failed to load context", err)
			}
			if f.jsonMode {
				return f.Print(map[string]interface{}{
					"success": true,
					"context": data,
				})
			}
			return f.Print(data)
		},
	}
}

func newContextValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "validate",
		Short:         "Check the context file for structural problems",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			path, _ := cmd.Flags().GetString("file")
			strict, _ := cmd.Flags().GetBool("strict")
			mgr := buscontext.NewManager(path)
			report := mgr.Validate(strict)
			if f.jsonMode {
				if err := f.Print(map[string]interface{}{
					"success":  report.Valid,
					"file":     mgr.Path(),
					"valid":    report.Valid,
					"errors":   report.Errors,
					"warnings": report.Warnings,
				}); err != nil {
					return err
				}
			} else {
				for _, w := range report.Warnings {
					fmt.Printf("warning: %s\n", w)
				}
				for _, e := range report.Errors {
					fmt.Printf("error: %s\n", e)
				}
				if report.Valid {
					fmt.Printf("%s is valid\n", mgr.Path())
				}
			}
			if !report.Valid {
				// Findings were printed above; the error only drives the exit code.
				return fmt.Errorf("context validation failed: %d error(s) in %s",
					len(report.Errors), mgr.Path())
			}
			return nil
		},
	}
	cmd.Flags().Bool("strict", false, "Require the standard sections and treat warnings as errors")
	return cmd
}
