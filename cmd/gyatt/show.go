package main

import (
	"fmt"
	"os"

	"github.com/gyattvc/gyatt/internal/objhash"
	"github.com/gyattvc/gyatt/internal/objstore"
	"github.com/gyattvc/gyatt/internal/repo"
)

// resolveObjRef turns "HEAD", a branch name, or a literal hash string into
// an objhash.Hash.
func resolveObjRef(r *repo.Repository, ref string) (objhash.Hash, error) {
	if ref == "HEAD" {
		hash, ok, err := r.Refs.Head()
		if err != nil {
			return objhash.Hash{}, err
		}
		if !ok {
			return objhash.Hash{}, fmt.Errorf("HEAD has no commits yet")
		}
		return hash, nil
	}
	if hash, ok, err := r.Refs.ReadRef(ref); err == nil && ok {
		return hash, nil
	}
	return objhash.Parse(ref)
}

func runShow(r *repo.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gyatt show <objref>")
		return 2
	}

	hash, err := resolveObjRef(r, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	typeTag, raw, err := r.Show(hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	switch typeTag {
	case objstore.TypeBlob:
		os.Stdout.Write(raw)
	case objstore.TypeCommit:
		commit, err := r.Objects.GetCommit(hash)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 1
		}
		fmt.Printf("commit %s\n", hash.String())
		fmt.Printf("Author: %s <%s>\n", commit.Author.Name, commit.Author.Email)
		fmt.Printf("\n\t%s\n", commit.Message)
	case objstore.TypeTree:
		tree, err := r.Objects.GetTree(hash)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 1
		}
		for _, e := range tree.Entries {
			kind := "blob"
			if e.IsTree() {
				kind = "tree"
			}
			fmt.Printf("%06o %s %s\t%s\n", e.Mode, kind, e.Hash.String(), e.Name)
		}
	default:
		fmt.Fprintf(os.Stderr, "fatal: unknown object type %q\n", typeTag)
		return 1
	}
	return 0
}
