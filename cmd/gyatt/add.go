package main

import (
	"fmt"
	"os"

	"github.com/gyattvc/gyatt/internal/repo"
)

func runAdd(r *repo.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gyatt add <path>... | -A")
		return 2
	}

	if args[0] == "-A" || args[0] == "." {
		warnings, err := r.AddAll()
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %v\n", w)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 1
		}
		return 0
	}

	status := 0
	for _, path := range args {
		if err := r.Add(path); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			status = 1
		}
	}
	return status
}
