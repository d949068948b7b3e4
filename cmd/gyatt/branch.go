package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/gyattvc/gyatt/internal/repo"
	"github.com/gyattvc/gyatt/internal/termcolor"
)

func runBranch(r *repo.Repository, args []string, cw *termcolor.Writer) int {
	if len(args) > 0 && args[0] == "-d" {
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: gyatt branch -d <name>")
			return 2
		}
		if err := r.DeleteBranch(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 1
		}
		fmt.Printf("Deleted branch %s\n", args[1])
		return 0
	}

	if len(args) > 0 {
		if err := r.CreateBranch(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 1
		}
		return 0
	}

	branches, err := r.ListBranches()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	sort.Strings(branches)

	current, _ := r.CurrentBranch()

	for _, name := range branches {
		if name == current {
			fmt.Printf("* %s\n", cw.CurrentBranch(name))
		} else {
			fmt.Printf("  %s\n", name)
		}
	}
	return 0
}
