package main

import (
	"fmt"
	"os"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/repo"
)

func runCommit(r *repo.Repository, args []string) int {
	var message string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-m", "--message":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "usage: gyatt commit -m <msg>")
				return 2
			}
			message = args[i+1]
			i++
		}
	}
	if message == "" {
		fmt.Fprintln(os.Stderr, "usage: gyatt commit -m <msg>")
		return 2
	}

	name := r.Config.UserName()
	email := r.Config.UserEmail()
	if name == "" || email == "" {
		fmt.Fprintln(os.Stderr, "fatal: no identity configured; set user.name and user.email before committing")
		return 1
	}

	result, err := r.Commit(message, repo.Identity{Name: name, Email: email})
	if err != nil {
		if gyatterrs.Is(err, gyatterrs.NothingToCommit) {
			fmt.Fprintln(os.Stderr, "nothing to commit")
			return 1
		}
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	fmt.Printf("[%s] %s\n", result.Hash.Short(7), message)
	return 0
}
