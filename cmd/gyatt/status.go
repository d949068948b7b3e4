package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gyattvc/gyatt/internal/repo"
	"github.com/gyattvc/gyatt/internal/status"
	"github.com/gyattvc/gyatt/internal/termcolor"
	"github.com/gyattvc/gyatt/internal/watch"
)

func runStatus(r *repo.Repository, args []string, cw *termcolor.Writer) int {
	porcelain := false
	watchMode := false
	for _, arg := range args {
		switch arg {
		case "-s", "--porcelain":
			porcelain = true
		case "--watch":
			watchMode = true
		}
	}

	if watchMode {
		return runStatusWatch(r, porcelain, cw)
	}

	st, err := r.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	for _, perr := range st.PerFileErrors {
		fmt.Fprintf(os.Stderr, "warning: %v\n", perr)
	}

	if porcelain {
		return printPorcelain(st)
	}
	return printLongStatus(r, st, cw)
}

// runStatusWatch re-renders status whenever the working tree or repository
// metadata changes, until interrupted (Ctrl-C).
func runStatusWatch(r *repo.Repository, porcelain bool, cw *termcolor.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	render := func() {
		st, err := r.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return
		}
		fmt.Print("\033[H\033[2J")
		if porcelain {
			printPorcelain(st)
		} else {
			printLongStatus(r, st, cw)
		}
	}

	if err := watch.Run(ctx, r.GitDir(), r.Root(), render); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	return 0
}

func printPorcelain(st *status.Status) int {
	for _, s := range st.Staged {
		code := ' '
		switch s.Kind {
		case status.StagedNew:
			code = 'A'
		case status.StagedModified:
			code = 'M'
		case status.StagedDeleted:
			code = 'D'
		}
		fmt.Printf("%c  %s\n", code, s.Path)
	}
	for _, u := range st.Unstaged {
		code := ' '
		switch u.Kind {
		case status.UnstagedModified:
			code = 'M'
		case status.UnstagedDeleted:
			code = 'D'
		}
		fmt.Printf(" %c %s\n", code, u.Path)
	}
	for _, path := range st.Untracked {
		fmt.Printf("?? %s\n", path)
	}
	return 0
}

func printLongStatus(r *repo.Repository, st *status.Status, cw *termcolor.Writer) int {
	if branch, err := r.CurrentBranch(); err == nil && branch != "" {
		fmt.Printf("On branch %s\n", branch)
	}

	if len(st.Staged) > 0 {
		fmt.Println("Changes to be committed:")
		for _, s := range st.Staged {
			prefix := ""
			switch s.Kind {
			case status.StagedNew:
				prefix = "new file:   "
			case status.StagedModified:
				prefix = "modified:   "
			case status.StagedDeleted:
				prefix = "deleted:    "
			}
			fmt.Printf("\t%s\n", cw.Staged(prefix+s.Path))
		}
		fmt.Println()
	}

	if len(st.Unstaged) > 0 {
		fmt.Println("Changes not staged for commit:")
		for _, u := range st.Unstaged {
			prefix := ""
			switch u.Kind {
			case status.UnstagedModified:
				prefix = "modified:   "
			case status.UnstagedDeleted:
				prefix = "deleted:    "
			}
			fmt.Printf("\t%s\n", cw.Unstaged(prefix+u.Path))
		}
		fmt.Println()
	}

	if len(st.Untracked) > 0 {
		fmt.Println("Untracked files:")
		for _, path := range st.Untracked {
			fmt.Printf("\t%s\n", cw.Unstaged(path))
		}
		fmt.Println()
	}

	if len(st.Staged) == 0 && len(st.Unstaged) == 0 && len(st.Untracked) == 0 {
		fmt.Println("nothing to commit, working tree clean")
	}

	return 0
}
