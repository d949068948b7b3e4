package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gyattvc/gyatt/internal/repo"
)

func runInit(args []string) int {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	if _, err := repo.Init(dir); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	fmt.Printf("Initialized empty gyatt repository in %s\n", filepath.Join(abs, repo.MetadataDirName))
	return 0
}
