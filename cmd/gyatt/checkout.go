package main

import (
	"fmt"
	"os"

	"github.com/gyattvc/gyatt/internal/repo"
)

func runCheckout(r *repo.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gyatt checkout <branch>")
		return 2
	}

	if err := r.Checkout(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	fmt.Printf("Switched to branch '%s'\n", args[0])
	return 0
}
