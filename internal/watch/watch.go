// Package watch provides a long-lived file-system watcher backing
// `status --watch`: recompute status whenever the repository's metadata
// directory or working tree changes, via an fsnotify.Watcher over gitDir
// plus refs subdirectories with debounced events, invoking a plain callback
// on this process's own stdout since there is no server or browser UI here.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
)

// debounceWindow coalesces bursts of fs events (e.g. an editor's
// write-then-rename save) into a single callback invocation.
const debounceWindow = 150 * time.Millisecond

// Run watches gitDir (and its refs/heads, refs/remotes subdirectories) plus
// workDir for changes, invoking onChange after each debounced burst, until
// ctx is cancelled. onChange is also invoked once immediately on start.
func Run(ctx context.Context, gitDir, workDir string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "watch.Run", err)
	}
	defer watcher.Close()

	if err := watcher.Add(gitDir); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "watch.Run", err)
	}
	if err := watcher.Add(workDir); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "watch.Run", err)
	}
	for _, sub := range []string{"refs/heads", "refs/remotes"} {
		walkAndWatch(watcher, filepath.Join(gitDir, sub))
	}

	onChange()

	var debounce *time.Timer
	fire := func() {
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(debounceWindow, onChange)
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			fire()
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// walkAndWatch adds watches for dir and every subdirectory beneath it.
// fsnotify does not recurse, and nested branch names (e.g.
// refs/heads/feature/login) need their own directory watches. Missing
// directories are silently skipped.
func walkAndWatch(watcher *fsnotify.Watcher, dir string) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	_ = filepath.Walk(dir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if fi.IsDir() {
			_ = watcher.Add(path)
		}
		return nil
	})
}

// shouldIgnoreEvent filters out events this watcher does not care about:
// anything but write/create/remove/rename, and files whose names end in
// .tmp or .lock (such as the temp files object and ref writes rename into
// place). Changes to the index, including its index.tmp-* temp files, are
// not filtered.
func shouldIgnoreEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	base := filepath.Base(event.Name)
	if strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".lock") {
		return true
	}
	return false
}
