package worktree

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gyattvc/gyatt/internal/ignore"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestList_SkipsMetadataDirAndIgnoredFiles(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "a.txt"), "a")
	mustWriteFile(t, filepath.Join(dir, "x.log"), "noisy")
	mustWriteFile(t, filepath.Join(dir, ignore.MetadataDirName, "HEAD"), "ref: refs/heads/main\n")
	mustWriteFile(t, filepath.Join(dir, "sub", "b.txt"), "b")
	mustWriteFile(t, filepath.Join(dir, ".gyattignore"), "*.log\n")

	eng, err := ignore.Load(dir)
	if err != nil {
		t.Fatalf("ignore.Load failed: %v", err)
	}

	got, err := List(dir, eng)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	sort.Strings(got)

	want := []string{"a.txt", "sub/b.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestWalk_StopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "a.txt"), "a")
	mustWriteFile(t, filepath.Join(dir, "b.txt"), "b")

	eng, err := ignore.Load(dir)
	if err != nil {
		t.Fatalf("ignore.Load failed: %v", err)
	}

	calls := 0
	sentinelErr := os.ErrClosed
	err = Walk(dir, eng, func(string) error {
		calls++
		return sentinelErr
	})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if calls != 1 {
		t.Errorf("expected exactly one callback invocation before stopping, got %d", calls)
	}
}

func TestWalk_DoesNotFollowDirectorySymlinks(t *testing.T) {
	dir := t.TempDir()
	realDir := filepath.Join(dir, "real")
	mustWriteFile(t, filepath.Join(realDir, "inside.txt"), "content")

	linkPath := filepath.Join(dir, "link")
	if err := os.Symlink(realDir, linkPath); err != nil {
		t.Skipf("symlinks unsupported on this platform: %v", err)
	}

	eng, err := ignore.Load(dir)
	if err != nil {
		t.Fatalf("ignore.Load failed: %v", err)
	}

	got, err := List(dir, eng)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, p := range got {
		if p == "link/inside.txt" {
			t.Errorf("expected directory symlink not to be followed, but found %s", p)
		}
	}
}
