package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gyattvc/gyatt/internal/repo"
	"github.com/gyattvc/gyatt/internal/termcolor"
)

// runLog implements `log`, plus the supplemental `--oneline` and `-n
// <count>` options for trimming output on long histories.
func runLog(r *repo.Repository, args []string, cw *termcolor.Writer) int {
	oneline := false
	limit := -1
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--oneline":
			oneline = true
		case "-n":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "usage: gyatt log [--oneline] [-n <count>]")
				return 2
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n < 0 {
				fmt.Fprintf(os.Stderr, "gyatt log: invalid count %q\n", args[i+1])
				return 2
			}
			limit = n
			i++
		}
	}

	entries, err := r.Log()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	if limit >= 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	for _, e := range entries {
		if oneline {
			firstLine := e.Commit.Message
			for i, c := range firstLine {
				if c == '\n' {
					firstLine = firstLine[:i]
					break
				}
			}
			fmt.Printf("%s %s\n", cw.CommitHash(e.Hash.Short(7)), firstLine)
			continue
		}
		fmt.Printf("%s %s\n", cw.CommitHash("commit"), cw.BoldCyan(e.Hash.String()))
		fmt.Printf("Author: %s <%s>\n", e.Commit.Author.Name, e.Commit.Author.Email)
		fmt.Printf("Date:   %s\n", e.Commit.Author.When.Format(time.RFC1123Z))
		fmt.Printf("\n\t%s\n\n", e.Commit.Message)
	}
	return 0
}
