package main

import (
	"fmt"
	"os"

	"github.com/gyattvc/gyatt/internal/repo"
)

// runRemote implements the `remote add <name> <url>` and `remote -v` CLI
// verbs, backed by internal/config's Remote records.
func runRemote(r *repo.Repository, args []string) int {
	if len(args) == 0 || args[0] == "-v" {
		for _, rem := range r.Config.Remotes() {
			fmt.Printf("%s\t%s (%s)\n", rem.Name, rem.URL, rem.Protocol)
		}
		return 0
	}

	if args[0] == "add" {
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: gyatt remote add <name> <url>")
			return 2
		}
		if err := r.Config.AddRemote(args[1], args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 1
		}
		if err := r.Config.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintln(os.Stderr, "usage: gyatt remote add <name> <url> | gyatt remote -v")
	return 2
}
