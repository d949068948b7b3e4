package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gyattvc/gyatt/internal/difftext"
	"github.com/gyattvc/gyatt/internal/objhash"
	"github.com/gyattvc/gyatt/internal/repo"
)

// runDiff implements the `diff` CLI verb in two modes: with no arguments,
// the working tree's unstaged modifications against the staging baseline;
// with two refs, a structural tree-to-tree diff between their commits.
func runDiff(r *repo.Repository, args []string) int {
	switch len(args) {
	case 0:
		return runDiffWorktree(r)
	case 2:
		return runDiffTrees(r, args[0], args[1])
	default:
		fmt.Fprintln(os.Stderr, "usage: gyatt diff [<ref> <ref>]")
		return 2
	}
}

// runDiffWorktree renders the working tree's unstaged modifications, one
// unified-style hunk per file.
func runDiffWorktree(r *repo.Repository) int {
	st, err := r.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	// The "before" side is the staged blob when the path is in the index,
	// falling back to the HEAD tree's blob otherwise (the index is empty
	// right after a commit or checkout).
	var headFiles map[string]objhash.Hash
	if head, ok, headErr := r.Refs.Head(); headErr == nil && ok {
		headFiles, _ = r.FilesAt(head)
	}

	for _, u := range st.Unstaged {
		var beforeHash objhash.Hash
		if entry := r.Index.Find(u.Path); entry != nil {
			beforeHash = entry.Hash
		} else if h, ok := headFiles[u.Path]; ok {
			beforeHash = h
		} else {
			continue
		}
		before, err := r.Objects.GetBlob(beforeHash)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			continue
		}

		var after []byte
		if u.Kind != "deleted" {
			after, err = os.ReadFile(filepath.Join(r.Root(), filepath.FromSlash(u.Path)))
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				continue
			}
		}

		fmt.Print(difftext.Lines("a/"+u.Path, "b/"+u.Path, before.Data, after))
	}
	return 0
}

// runDiffTrees resolves two refs to commits and renders the structural
// diff between their trees, one file at a time.
func runDiffTrees(r *repo.Repository, oldRef, newRef string) int {
	oldTree, err := resolveTree(r, oldRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	newTree, err := resolveTree(r, newRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	entries, err := difftext.TreeDiff(r.Objects, oldTree, newTree)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	for _, e := range entries {
		before, after, loadErr := loadDiffSides(r, e)
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", loadErr)
			continue
		}
		if difftext.IsBinary(before) || difftext.IsBinary(after) {
			fmt.Printf("Binary files a/%s and b/%s differ\n", e.Path, e.Path)
			continue
		}
		fmt.Print(difftext.Lines("a/"+e.Path, "b/"+e.Path, before, after))
	}
	return 0
}

// resolveTree turns a ref argument (HEAD, a branch name, or a commit hash)
// into that commit's tree hash.
func resolveTree(r *repo.Repository, ref string) (objhash.Hash, error) {
	commitHash, err := resolveObjRef(r, ref)
	if err != nil {
		return objhash.Hash{}, err
	}
	commit, err := r.Objects.GetCommit(commitHash)
	if err != nil {
		return objhash.Hash{}, err
	}
	return commit.Tree, nil
}

// loadDiffSides reads the blob content for each side of a diff entry; an
// absent side (added or deleted path) stays nil.
func loadDiffSides(r *repo.Repository, e difftext.DiffEntry) (before, after []byte, err error) {
	if !e.OldHash.IsZero() {
		blob, err := r.Objects.GetBlob(e.OldHash)
		if err != nil {
			return nil, nil, err
		}
		before = blob.Data
	}
	if !e.NewHash.IsZero() {
		blob, err := r.Objects.GetBlob(e.NewHash)
		if err != nil {
			return nil, nil, err
		}
		after = blob.Data
	}
	return before, after, nil
}
