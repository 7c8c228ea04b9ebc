package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/odoo-cli/odoo-cli/internal/odoo"
	"github.com/odoo-cli/odoo-cli/internal/profile"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newProfilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "profiles",
		Aliases:       []string{"config"},
		Short:         "Manage saved connection profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newProfilesListCommand(),
		newProfilesShowCommand(),
		newProfilesCurrentCommand(),
		newProfilesTestCommand(),
		newProfilesAddCommand(),
		newProfilesEditCommand(),
		newProfilesDeleteCommand(),
		newProfilesRenameCommand(),
		newProfilesSetDefaultCommand(),
	)
	return cmd
}

func openStore(cmd *cobra.Command) (*profile.Store, error) {
	if path, _ := cmd.Flags().GetString("store"); path != "" {
		return profile.OpenPath(path)
	}
	return profile.Open()
}

func addStoreFlag(cmd *cobra.Command) {
	cmd.Flags().String("store", "", "Path to the profile store file")
}

// promptPassword reads a password without echo when attached to a
// terminal. Non-interactive callers must supply -p.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; supply the password with -p")
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}

// confirm asks a yes/no question on the terminal. Anything but an
// explicit yes declines.
func confirm(question string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func secondsOrDefault(seconds int) time.Duration {
	if seconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

func profileFlags(p profile.Profile) string {
	var flags []string
	if p.Default {
		flags = append(flags, "default")
	}
	if p.ReadOnly {
		flags = append(flags, "readonly")
	}
	if p.Protected {
		flags = append(flags, "protected")
	}
	return strings.Join(flags, ",")
}

func profileToMap(p profile.Profile) map[string]interface{} {
	p = p.Redacted()
	m := map[string]interface{}{
		"name":       p.Name,
		"url":        p.URL,
		"db":         p.DB,
		"username":   p.Username,
		"password":   p.Password,
		"timeout":    p.Timeout,
		"verify_ssl": p.VerifySSL,
		"default":    p.Default,
		"readonly":   p.ReadOnly,
		"protected":  p.Protected,
	}
	if len(p.Context) > 0 {
		m["context"] = p.Context
	}
	return m
}

func newProfilesListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List saved profiles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			store, err := openStore(cmd)
			if err != nil {
				return f.Error("failed to open profile store", err)
			}
			profiles := store.All()
			explicit, _ := cmd.Flags().GetString("profile")
			active := store.ActiveName(explicit)
			if f.jsonMode {
				out := make([]map[string]interface{}, 0, len(profiles))
				for _, p := range profiles {
					out = append(out, profileToMap(p))
				}
				return f.Print(map[string]interface{}{
					"success":  true,
					"profiles": out,
					"active":   active,
					"store":    store.Path(),
				})
			}
			if len(profiles) == 0 {
				fmt.Printf("No profiles saved (store: %s)\n", store.Path())
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, " \tNAME\tURL\tDB\tUSER\tFLAGS")
			for _, p := range profiles {
				marker := " "
				if p.Name == active {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					marker, p.Name, p.URL, p.DB, p.Username, profileFlags(p))
			}
			return w.Flush()
		},
	}
	addStoreFlag(cmd)
	return cmd
}

func newProfilesShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show <name>",
		Short:         "Show one profile (password masked)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			store, err := openStore(cmd)
			if err != nil {
				return f.Error("failed to open profile store", err)
			}
			p, err := store.Get(args[0])
			if err != nil {
				return f.Error("profile lookup failed", err)
			}
			return f.Print(profileToMap(p))
		},
	}
	addStoreFlag(cmd)
	return cmd
}

func newProfilesCurrentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "current",
		Short:         "Show which profile would be used",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			store, err := openStore(cmd)
			if err != nil {
				return f.Error("failed to open profile store", err)
			}
			explicit, _ := cmd.Flags().GetString("profile")
			p, ok := store.Find(explicit)
			if !ok {
				return f.Error("no profile selected", profile.ErrNotFound)
			}
			if f.jsonMode {
				out := profileToMap(p)
				out["success"] = true
				out["store"] = store.Path()
				return f.Print(out)
			}
			fmt.Println(p.Name)
			return nil
		},
	}
	addStoreFlag(cmd)
	return cmd
}

func newProfilesTestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "test [name]",
		Short:         "Verify a profile can log in",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			store, err := openStore(cmd)
			if err != nil {
				return f.Error("failed to open profile store", err)
			}
			explicit := argAt(args, 0)
			if explicit == "" {
				explicit, _ = cmd.Flags().GetString("profile")
			}
			p, ok := store.Find(explicit)
			if !ok {
				return f.Error("no profile selected", profile.ErrNotFound)
			}
			client := odoo.New(odoo.Config{
				URL:       p.URL,
				DB:        p.DB,
				Username:  p.Username,
				Password:  p.Password,
				Timeout:   secondsOrDefault(p.Timeout),
				VerifySSL: p.VerifySSL,
				Context:   p.Context,
			})
			if err := client.Connect(); err != nil {
				return f.Error(fmt.Sprintf("profile %q failed", p.Name), err)
			}
			info, _ := client.Version()
			data := map[string]interface{}{
				"profile": p.Name,
				"uid":     client.UID(),
			}
			if v, ok := info["server_version"].(string); ok {
				data["server_version"] = v
			}
			return f.Success(fmt.Sprintf("Profile %q connected (uid %d)", p.Name, client.UID()), data)
		},
	}
	addStoreFlag(cmd)
	return cmd
}

func newProfilesAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "Save a new profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			flags := cmd.Flags()
			url, _ := flags.GetString("url")
			db, _ := flags.GetString("db")
			username, _ := flags.GetString("username")
			password, _ := flags.GetString("password")
			if url == "" || db == "" || username == "" {
				return f.Error("invalid arguments",
					fmt.Errorf("--url, --db and --username are required"))
			}
			if password == "" {
				var err error
				password, err = promptPassword(fmt.Sprintf("Password for %s@%s: ", username, db))
				if err != nil {
					return f.Error("invalid arguments", err)
				}
			}
			timeout, _ := flags.GetInt("timeout")
			noVerify, _ := flags.GetBool("no-verify-ssl")
			isDefault, _ := flags.GetBool("default")
			readOnly, _ := flags.GetBool("readonly")

			store, err := openStore(cmd)
			if err != nil {
				return f.Error("failed to open profile store", err)
			}
			p := profile.Profile{
				Name:      args[0],
				URL:       url,
				DB:        db,
				Username:  username,
				Password:  password,
				Timeout:   timeout,
				VerifySSL: !noVerify,
				Default:   isDefault,
				ReadOnly:  readOnly,
			}
			if err := store.Add(p); err != nil {
				return f.Error("failed to save profile", err)
			}
			return f.Success(fmt.Sprintf("Profile %q saved to %s", args[0], store.Path()),
				map[string]interface{}{"name": args[0], "store": store.Path()})
		},
	}
	addStoreFlag(cmd)
	cmd.Flags().Bool("default", false, "Mark this profile as the default")
	cmd.Flags().Bool("readonly", false, "Reject write operations under this profile")
	return cmd
}

func newProfilesEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "edit <name>",
		Short:         "Modify an existing profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			flags := cmd.Flags()
			var u profile.Updates
			if flags.Changed("url") {
				v, _ := flags.GetString("url")
				u.URL = &v
			}
			if flags.Changed("db") {
				v, _ := flags.GetString("db")
				u.DB = &v
			}
			if flags.Changed("username") {
				v, _ := flags.GetString("username")
				u.Username = &v
			}
			if flags.Changed("password") {
				v, _ := flags.GetString("password")
				u.Password = &v
			}
			if flags.Changed("prompt-password") {
				v, err := promptPassword("New password: ")
				if err != nil {
					return f.Error("invalid arguments", err)
				}
				u.Password = &v
			}
			if flags.Changed("timeout") {
				v, _ := flags.GetInt("timeout")
				u.Timeout = &v
			}
			if flags.Changed("verify-ssl") {
				v, _ := flags.GetBool("verify-ssl")
				u.VerifySSL = &v
			}
			if flags.Changed("no-verify-ssl") {
				v := false
				u.VerifySSL = &v
			}
			if flags.Changed("readonly") {
				v, _ := flags.GetBool("readonly")
				u.ReadOnly = &v
			}
			if flags.Changed("default") {
				v, _ := flags.GetBool("default")
				u.Default = &v
			}

			store, err := openStore(cmd)
			if err != nil {
				return f.Error("failed to open profile store", err)
			}
			confirmed, _ := flags.GetBool("confirm")
			err = store.Update(args[0], u, confirmed)
			var cerr *profile.ConfirmationError
			if errors.As(err, &cerr) {
				if f.jsonMode {
					return f.Error("confirmation required",
						fmt.Errorf("%s; re-run with --confirm", cerr.Warning))
				}
				if !confirm(fmt.Sprintf("Removing readonly from %q: %s. Continue?", cerr.Name, cerr.Warning)) {
					return f.Error("aborted", fmt.Errorf("readonly removal not confirmed"))
				}
				err = store.Update(args[0], u, true)
			}
			if err != nil {
				return f.Error("failed to update profile", err)
			}
			return f.Success(fmt.Sprintf("Profile %q updated", args[0]),
				map[string]interface{}{"name": args[0]})
		},
	}
	addStoreFlag(cmd)
	cmd.Flags().Bool("verify-ssl", true, "Enable TLS certificate verification")
	cmd.Flags().Bool("readonly", false, "Reject write operations under this profile")
	cmd.Flags().Bool("default", false, "Mark this profile as the default")
	cmd.Flags().Bool("confirm", false, "Confirm guarded changes without prompting")
	cmd.Flags().Bool("prompt-password", false, "Prompt for a new password")
	return cmd
}

func newProfilesDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "delete <name>",
		Short:         "Remove a profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			store, err := openStore(cmd)
			if err != nil {
				return f.Error("failed to open profile store", err)
			}
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes && !f.jsonMode {
				if !confirm(fmt.Sprintf("Delete profile %q?", args[0])) {
					return f.Error("aborted", fmt.Errorf("deletion not confirmed"))
				}
			}
			if err := store.Delete(args[0]); err != nil {
				return f.Error("failed to delete profile", err)
			}
			return f.Success(fmt.Sprintf("Profile %q deleted", args[0]),
				map[string]interface{}{"name": args[0]})
		},
	}
	addStoreFlag(cmd)
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newProfilesRenameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rename <old> <new>",
		Short:         "Rename a profile",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			store, err := openStore(cmd)
			if err != nil {
				return f.Error("failed to open profile store", err)
			}
			if err := store.Rename(args[0], args[1]); err != nil {
				return f.Error("failed to rename profile", err)
			}
			return f.Success(fmt.Sprintf("Profile %q renamed to %q", args[0], args[1]),
				map[string]interface{}{"old": args[0], "new": args[1]})
		},
	}
	addStoreFlag(cmd)
	return cmd
}

func newProfilesSetDefaultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "set-default <name>",
		Short:         "Mark a profile as the default",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			store, err := openStore(cmd)
			if err != nil {
				return f.Error("failed to open profile store", err)
			}
			if err := store.SetDefault(args[0]); err != nil {
				return f.Error("failed to set default profile", err)
			}
			return f.Success(fmt.Sprintf("Profile %q is now the default", args[0]),
				map[string]interface{}{"name": args[0]})
		},
	}
	addStoreFlag(cmd)
	return cmd
}
