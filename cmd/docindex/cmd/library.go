package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/store"
	"github.com/Aman-CERP/docindex/internal/ui"
)

func newLibraryCmd(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "library",
		Aliases: []string{"libraries", "lib"},
		Short:   "Manage libraries",
		Long: `List, add, remove, enable or disable libraries.

A library is an independent index with its own directories, result cache
and search history. Select one for any command with --library; without
it, the "default" library is used.

Examples:
  # List all libraries
  docindex library

  # Create a library and index into it
  docindex library add work
  docindex index --library work ~/work/specs

  # Delete a library and its index files
  docindex library remove work --purge`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLibraryList(cmd, g, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	list := &cobra.Command{
		Use:   "list",
		Short: "List libraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLibraryList(cmd, g, format)
		},
	}
	list.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	cmd.AddCommand(list)
	cmd.AddCommand(newLibraryAddCmd(g))
	cmd.AddCommand(newLibraryRemoveCmd(g))
	cmd.AddCommand(newLibraryToggleCmd(g, true))
	cmd.AddCommand(newLibraryToggleCmd(g, false))

	return cmd
}

func newLibraryAddCmd(g *globals) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a library",
		Long: `Create an empty library. Names may contain letters, numbers, hyphens
and underscores.

The index is stored under the data directory unless --path gives
another location (without extension).

Example:
  docindex library add research --path /mnt/data/research-index`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := g.registry()
			if err != nil {
				return err
			}
			lib, err := cat.Add(args[0], path)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			out.Successf("Created library '%s'", lib.Name)
			out.Statusf("📁", "Index: %s", lib.DBPath)
			out.Statusf("💡", "Next: docindex index --library %s <dir>", lib.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Index location (default <data-dir>/libraries/NAME)")

	return cmd
}

func newLibraryRemoveCmd(g *globals) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a library",
		Long: `Remove a library from the catalog. Its index files stay on disk unless
--purge is given. The default library cannot be removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := g.registry()
			if err != nil {
				return err
			}
			lib, err := cat.Get(args[0])
			if err != nil {
				return err
			}
			if err := cat.Remove(lib.Name); err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Removed library '%s'", lib.Name)
			if purge {
				if err := store.Remove(lib.DBPath); err != nil {
					return fmt.Errorf("failed to delete index files: %w", err)
				}
				out.Statusf("🗑️ ", "Deleted index files at %s", lib.DBPath)
			} else {
				out.Statusf("📁", "Index files kept at %s", lib.DBPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the index files")

	return cmd
}

func newLibraryToggleCmd(g *globals, enable bool) *cobra.Command {
	use, short, verb := "disable NAME", "Exclude a library from use", "Disabled"
	if enable {
		use, short, verb = "enable NAME", "Make a disabled library usable again", "Enabled"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := g.registry()
			if err != nil {
				return err
			}
			toggle := cat.Disable
			if enable {
				toggle = cat.Enable
			}
			if err := toggle(args[0]); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("%s library '%s'", verb, args[0])
			return nil
		},
	}
}

func runLibraryList(cmd *cobra.Command, g *globals, format string) error {
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	cat, _, err := g.registry()
	if err != nil {
		return err
	}

	libs := cat.List()
	if f == output.FormatJSON {
		return output.New(cmd.OutOrStdout()).JSON(libs)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSTATUS\tDOCS\tSIZE\tLAST USED\tROOTS")
	_, _ = fmt.Fprintln(w, "----\t------\t----\t----\t---------\t-----")

	for _, lib := range libs {
		status := "enabled"
		if !lib.Enabled {
			status = "disabled"
		}
		name := lib.Name
		if name == g.libraryName() {
			name += " *"
		}
		roots := strings.Join(lib.Roots, ", ")
		if roots == "" {
			roots = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			name, status, lib.DocCount, ui.FormatBytes(lib.SizeBytes), formatAge(lib.LastUsed), roots)
	}
	return w.Flush()
}

// formatAge renders t relative to now, e.g. "3 hours ago".
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	default:
		return t.Format("2006-01-02")
	}
}
