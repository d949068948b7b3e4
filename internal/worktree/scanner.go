// Package worktree implements the working-tree scanner: a directory
// traversal that yields every non-ignored file path relative to the
// repository root.
package worktree

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/ignore"
)

// Walk traverses workDir and invokes fn once per file path (forward-slash,
// relative to workDir) that the ignore engine does not classify as
// ignored. Directory symlinks are not followed, to prevent cycles; a
// symlink to a regular file is still reported. A non-nil error from fn
// stops the walk.
func Walk(workDir string, ignoreEngine *ignore.Engine, fn func(relPath string) error) error {
	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == workDir {
			return nil
		}

		relPath, relErr := filepath.Rel(workDir, path)
		if relErr != nil {
			return relErr
		}
		relPath = filepath.ToSlash(relPath)

		if d.Type()&fs.ModeSymlink != 0 {
			target, statErr := os.Stat(path) // follows the symlink
			if statErr != nil {
				return nil // broken symlink: not fatal, simply not reported
			}
			if target.IsDir() {
				return nil // do not follow directory symlinks
			}
			if ignoreEngine.IsIgnored(relPath, false) {
				return nil
			}
			return fn(relPath)
		}

		if d.IsDir() {
			if ignoreEngine.IsIgnored(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignoreEngine.IsIgnored(relPath, false) {
			return nil
		}
		return fn(relPath)
	})
	if err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "worktree.Walk", err)
	}
	return nil
}

// List collects every non-ignored file path via Walk and returns them.
func List(workDir string, ignoreEngine *ignore.Engine) ([]string, error) {
	var paths []string
	err := Walk(workDir, ignoreEngine, func(relPath string) error {
		paths = append(paths, relPath)
		return nil
	})
	return paths, err
}
