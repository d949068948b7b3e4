// Command gyatt is the CLI surface: init, add, commit, status, log, diff,
// branch, checkout, show, clone, push, and remote, dispatched through the
// internal/cli subcommand framework.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/gyattvc/gyatt/internal/cli"
	"github.com/gyattvc/gyatt/internal/repo"
	"github.com/gyattvc/gyatt/internal/termcolor"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	gf, args := parseGlobalFlags(os.Args[1:])

	for _, a := range args {
		if a == "--version" {
			printVersion()
			os.Exit(0)
		}
	}

	cw := termcolor.NewWriter(os.Stdout, gf.colorMode)

	app := cli.NewApp("gyatt", version)
	app.Stderr = os.Stderr

	// r is declared here and assigned after dispatch determines the
	// matched command needs it (NeedsRepo). Closures capture the pointer
	// variable, which is populated before they execute.
	var r *repo.Repository

	app.Register(&cli.Command{
		Name:     "init",
		Summary:  "Create a new repository",
		Usage:    "gyatt init [dir]",
		Examples: []string{"gyatt init", "gyatt init myproject"},
		Category: "Local",
		Run:      func(args []string) int { return runInit(args) },
	})

	app.Register(&cli.Command{
		Name:      "add",
		Summary:   "Stage files for the next commit",
		Usage:     "gyatt add <path>... | -A",
		Examples:  []string{"gyatt add a.txt", "gyatt add -A"},
		Category:  "Local",
		NeedsRepo: true,
		Run:       func(args []string) int { return runAdd(r, args) },
	})

	app.Register(&cli.Command{
		Name:      "commit",
		Summary:   "Record staged changes as a commit",
		Usage:     "gyatt commit -m <msg>",
		Examples:  []string{`gyatt commit -m "first"`},
		Category:  "Local",
		NeedsRepo: true,
		Run:       func(args []string) int { return runCommit(r, args) },
	})

	app.Register(&cli.Command{
		Name:      "status",
		Summary:   "Show staged, unstaged, and untracked changes",
		Usage:     "gyatt status [-s|--porcelain] [--watch]",
		Examples:  []string{"gyatt status", "gyatt status --watch"},
		Category:  "Local",
		NeedsRepo: true,
		Run:       func(args []string) int { return runStatus(r, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "log",
		Summary:   "Show commit log",
		Usage:     "gyatt log [--oneline] [-n <count>]",
		Examples:  []string{"gyatt log", "gyatt log --oneline -n 5"},
		Category:  "Local",
		NeedsRepo: true,
		Run:       func(args []string) int { return runLog(r, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "diff",
		Summary:   "Show unstaged changes, or the diff between two commits",
		Usage:     "gyatt diff [<ref> <ref>]",
		Examples:  []string{"gyatt diff", "gyatt diff main feature"},
		Category:  "Local",
		NeedsRepo: true,
		Run:       func(args []string) int { return runDiff(r, args) },
	})

	app.Register(&cli.Command{
		Name:      "branch",
		Summary:   "List, create, or delete branches",
		Usage:     "gyatt branch [name|-d name]",
		Examples:  []string{"gyatt branch", "gyatt branch feature", "gyatt branch -d feature"},
		Category:  "Local",
		NeedsRepo: true,
		Run:       func(args []string) int { return runBranch(r, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "checkout",
		Summary:   "Switch the working tree to another branch",
		Usage:     "gyatt checkout <branch>",
		Category:  "Local",
		NeedsRepo: true,
		Run:       func(args []string) int { return runCheckout(r, args) },
	})

	app.Register(&cli.Command{
		Name:      "show",
		Summary:   "Show the content of an object",
		Usage:     "gyatt show <objref>",
		Examples:  []string{"gyatt show HEAD"},
		Category:  "Local",
		NeedsRepo: true,
		Run:       func(args []string) int { return runShow(r, args) },
	})

	app.Register(&cli.Command{
		Name:     "clone",
		Summary:  "Clone a local or forge repository",
		Usage:    "gyatt clone <src> [dir]",
		Examples: []string{"gyatt clone ../other-repo", "gyatt clone acme/widgets"},
		Category: "Remote",
		Run:      func(args []string) int { return runClone(args) },
	})

	app.Register(&cli.Command{
		Name:      "push",
		Summary:   "Push the current branch to a forge remote",
		Usage:     "gyatt push <remote> [branch]",
		Examples:  []string{"gyatt push origin", "gyatt push origin main"},
		Category:  "Remote",
		NeedsRepo: true,
		Run:       func(args []string) int { return runPush(r, args) },
	})

	app.Register(&cli.Command{
		Name:      "remote",
		Summary:   "Manage remotes",
		Usage:     "gyatt remote add <name> <url> | gyatt remote -v",
		Examples:  []string{"gyatt remote add origin https://github.com/acme/widgets", "gyatt remote -v"},
		Category:  "Remote",
		NeedsRepo: true,
		Run:       func(args []string) int { return runRemote(r, args) },
	})

	app.Register(&cli.Command{
		Name:    "version",
		Summary: "Show version information",
		Usage:   "gyatt version",
		Run:     func([]string) int { printVersion(); return 0 },
	})

	// Determine which command will run so we can load the repo only when needed.
	if len(args) > 0 {
		cmd := app.Lookup(args[0])
		if cmd != nil && cmd.NeedsRepo {
			var err error
			r, err = repo.Discover(".")
			if err != nil {
				fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
				os.Exit(1)
			}
		}
	}

	os.Exit(app.Run(args, cw))
}

func printVersion() {
	fmt.Printf("gyatt %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  built:      %s\n", buildDate)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
