package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gyattvc/gyatt/internal/forge"
	"github.com/gyattvc/gyatt/internal/httpclient"
	"github.com/gyattvc/gyatt/internal/localremote"
	"github.com/gyattvc/gyatt/internal/progress"
	"github.com/gyattvc/gyatt/internal/repo"
)

// runClone implements the `clone <src> [dir]` CLI verb, delegating to
// internal/localremote, which itself routes forge-looking sources to
// internal/forge's zipball downloader.
func runClone(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gyatt clone <src> [dir]")
		return 2
	}
	src := args[0]
	var target string
	if len(args) > 1 {
		target = args[1]
	} else {
		target = inferCloneDir(src)
	}

	client := httpclient.New(httpclient.DefaultConfig(), nil)
	syncer := forge.New(client, filepath.Join(target, repo.MetadataDirName))

	sp := progress.Start(fmt.Sprintf("Cloning %s...", src))
	if err := localremote.Clone(context.Background(), syncer, src, target); err != nil {
		sp.Fail(fmt.Sprintf("clone failed: %v", err))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	sp.Success(fmt.Sprintf("Cloned into %q", target))
	return 0
}

// inferCloneDir derives a target directory name from a source reference the
// way `git clone` does: the last path segment, with a trailing ".git" and
// slash stripped.
func inferCloneDir(src string) string {
	s := strings.TrimSuffix(src, "/")
	s = strings.TrimSuffix(s, ".git")
	return path.Base(s)
}
