package cli

import (
	"fmt"
	"io"

	"github.com/gyattvc/gyatt/internal/termcolor"
)

// fpf is a shorthand for fmt.Fprintf that discards the error, used for
// writing help text to stderr where write failures are non-actionable.
func fpf(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format, a...) //nolint:gosec // CLI stderr, not web output
}

// FormatAppHelp writes the top-level help text to app.Stderr. Commands
// that set Category are grouped under a heading per category, in the
// order each category is first seen; uncategorized commands are listed
// under an "Other commands:" heading. When no command sets Category, every
// command is listed under a single flat "Commands:" heading.
func FormatAppHelp(app *App, cw *termcolor.Writer) {
	w := app.Stderr

	fpf(w, "%s version %s\n\n", app.Name, app.Version)
	fpf(w, "%s\n", cw.Bold("Usage:"))
	fpf(w, "  %s [global flags] <command> [<args>]\n\n", app.Name)

	fpf(w, "%s\n", cw.Bold("Global flags:"))
	fpf(w, "  %s   Color output: auto, always, never\n", cw.Yellow("--color=<mode>"))
	fpf(w, "  %s        Disable color output\n", cw.Yellow("--no-color"))
	fpf(w, "  %s         Show version and exit\n\n", cw.Yellow("--version"))

	names := app.CommandNames()
	maxLen := 0
	for _, n := range names {
		if len(n) > maxLen {
			maxLen = len(n)
		}
	}
	printCommand := func(n string) {
		cmd := app.Lookup(n)
		fpf(w, "  %s  %s\n", cw.BoldCyan(fmt.Sprintf("%-*s", maxLen, n)), cmd.Summary)
	}

	groups, order := groupByCategory(app, names)
	if len(order) == 1 && order[0] == "" {
		fpf(w, "%s\n", cw.Bold("Commands:"))
		for _, n := range names {
			printCommand(n)
		}
	} else {
		for _, category := range order {
			heading := category
			if heading == "" {
				heading = "Other commands"
			}
			fpf(w, "%s\n", cw.Bold(heading+":"))
			for _, n := range groups[category] {
				printCommand(n)
			}
			fpf(w, "\n")
		}
	}

	fpf(w, "\nRun '%s help <command>' for more information on a command.\n", app.Name)
}

// groupByCategory partitions names (already sorted) into Command.Category
// buckets, preserving each category's first-seen order and each bucket's
// alphabetical order within it.
func groupByCategory(app *App, names []string) (groups map[string][]string, order []string) {
	groups = make(map[string][]string)
	seen := make(map[string]bool)
	for _, n := range names {
		cat := app.Lookup(n).Category
		if !seen[cat] {
			seen[cat] = true
			order = append(order, cat)
		}
		groups[cat] = append(groups[cat], n)
	}
	return groups, order
}

// FormatCommandHelp writes per-command help text to app.Stderr.
func FormatCommandHelp(app *App, cmd *Command, cw *termcolor.Writer) {
	w := app.Stderr

	fpf(w, "%s — %s\n\n", cw.BoldCyan(cmd.Name), cmd.Summary)

	if cmd.Usage != "" {
		fpf(w, "%s\n", cw.Bold("Usage:"))
		fpf(w, "  %s\n", cmd.Usage)
	}

	if len(cmd.Examples) > 0 {
		fpf(w, "\n%s\n", cw.Bold("Examples:"))
		for _, ex := range cmd.Examples {
			fpf(w, "  %s\n", ex)
		}
	}
}
