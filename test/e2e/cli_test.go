//go:build e2e

package e2e

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestInitAndFirstCommit covers init in an empty directory, staging one
// file, and committing it, checking every artifact precisely: HEAD
// contents, ignore file, branch ref hex, log output.
func TestInitAndFirstCommit(t *testing.T) {
	dir := t.TempDir()
	mustGyatt(t, dir, "init")

	gitDir := filepath.Join(dir, ".gyatt")
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		t.Fatalf("metadata dir missing: %v", err)
	}

	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		t.Fatalf("reading HEAD: %v", err)
	}
	if string(head) != "ref: refs/heads/main\n" {
		t.Fatalf("HEAD = %q, want %q", head, "ref: refs/heads/main\n")
	}

	if _, err := os.Stat(filepath.Join(dir, ".gyattignore")); err != nil {
		t.Fatalf("default .gyattignore missing: %v", err)
	}

	writeConfigIdentity(t, dir, "Test User", "test@example.com")
	writeFile(t, dir, "a.txt", "hello\n")

	mustGyatt(t, dir, "add", "a.txt")
	commitOut := mustGyatt(t, dir, "commit", "-m", "first")
	if !strings.Contains(commitOut, "first") {
		t.Fatalf("commit output %q does not mention message", commitOut)
	}

	branchHash, err := os.ReadFile(filepath.Join(gitDir, "refs", "heads", "main"))
	if err != nil {
		t.Fatalf("reading branch ref: %v", err)
	}
	hexHash := strings.TrimSpace(string(branchHash))
	if len(hexHash) != 40 {
		t.Fatalf("branch ref hash %q is not 40 hex chars", hexHash)
	}

	showCommit := mustGyatt(t, dir, "show", hexHash)
	if !strings.Contains(showCommit, "first") {
		t.Fatalf("show <commit> output %q missing message", showCommit)
	}
	if strings.Contains(showCommit, "Parent:") {
		t.Fatalf("first commit must have no parent line:\n%s", showCommit)
	}

	// The canonical hash of the typed blob "blob 6\0hello\n".
	const helloBlobHash = "ce013625030ba8dba906f756967f9e9ca394464a"
	blobOut := mustGyatt(t, dir, "show", helloBlobHash)
	if blobOut != "hello\n" {
		t.Fatalf("show <blob> = %q, want %q", blobOut, "hello\n")
	}

	logOut := mustGyatt(t, dir, "log")
	if len(lines(logOut)) == 0 {
		t.Fatalf("log produced no output")
	}
	commitCount := strings.Count(logOut, "commit ")
	if commitCount != 1 {
		t.Fatalf("log shows %d commits, want exactly 1:\n%s", commitCount, logOut)
	}

	statusOut := mustGyatt(t, dir, "status")
	if !strings.Contains(statusOut, "nothing to commit") {
		t.Fatalf("status after commit should be clean, got:\n%s", statusOut)
	}
}

// TestSecondCommitChain checks that a second commit records the first as
// its parent and that log shows both in newest-first order.
func TestSecondCommitChain(t *testing.T) {
	dir := setupRepo(t)
	writeFile(t, dir, "a.txt", "hello\n")
	mustGyatt(t, dir, "add", "a.txt")
	mustGyatt(t, dir, "commit", "-m", "first")

	firstHash := strings.TrimSpace(string(readRef(t, dir, "main")))

	writeFile(t, dir, "a.txt", "hello again\n")
	mustGyatt(t, dir, "add", "a.txt")
	mustGyatt(t, dir, "commit", "-m", "second")

	secondHash := strings.TrimSpace(string(readRef(t, dir, "main")))
	if secondHash == firstHash {
		t.Fatalf("second commit did not move the branch ref")
	}

	showOut := mustGyatt(t, dir, "show", secondHash)
	if !strings.Contains(showOut, "second") {
		t.Fatalf("show <second commit> missing its own message:\n%s", showOut)
	}

	logOut := mustGyatt(t, dir, "log", "--oneline")
	logLines := lines(logOut)
	if len(logLines) != 2 {
		t.Fatalf("log --oneline produced %d lines, want 2:\n%s", len(logLines), logOut)
	}
	if !strings.Contains(logLines[0], "second") {
		t.Fatalf("newest commit should list first, got:\n%s", logOut)
	}
	if !strings.Contains(logLines[1], "first") {
		t.Fatalf("oldest commit should list last, got:\n%s", logOut)
	}

	limited := mustGyatt(t, dir, "log", "-n", "1")
	if strings.Count(limited, "commit ") != 1 {
		t.Fatalf("log -n 1 should show exactly one entry:\n%s", limited)
	}
}

func readRef(t *testing.T, dir, branch string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, ".gyatt", "refs", "heads", branch))
	if err != nil {
		t.Fatalf("reading ref %s: %v", branch, err)
	}
	return data
}

// TestStatusThreeWayDiff checks that staged, unstaged, and untracked
// changes are each reported distinctly.
func TestStatusThreeWayDiff(t *testing.T) {
	dir := setupRepo(t)
	writeFile(t, dir, "a.txt", "hello\n")
	writeFile(t, dir, "b.txt", "world\n")
	mustGyatt(t, dir, "add", "a.txt", "b.txt")
	mustGyatt(t, dir, "commit", "-m", "base")

	// a.txt: staged modification.
	writeFile(t, dir, "a.txt", "hello staged\n")
	mustGyatt(t, dir, "add", "a.txt")

	// b.txt: unstaged modification (never re-added).
	writeFile(t, dir, "b.txt", "world changed\n")

	// c.txt: untracked.
	writeFile(t, dir, "c.txt", "new\n")

	porcelain := mustGyatt(t, dir, "status", "-s")
	out := lines(porcelain)
	var gotStaged, gotUnstaged, gotUntracked bool
	for _, l := range out {
		switch {
		case strings.HasPrefix(l, "M  a.txt"):
			gotStaged = true
		case strings.HasPrefix(l, " M b.txt"):
			gotUnstaged = true
		case strings.HasPrefix(l, "?? c.txt"):
			gotUntracked = true
		}
	}
	if !gotStaged || !gotUnstaged || !gotUntracked {
		t.Fatalf("status -s missing one of staged/unstaged/untracked markers:\n%s", porcelain)
	}
}

// TestBranchAndCheckout creates a branch, commits on it, then checks that
// checking back out to main restores main's content.
func TestBranchAndCheckout(t *testing.T) {
	dir := setupRepo(t)
	writeFile(t, dir, "a.txt", "on main\n")
	mustGyatt(t, dir, "add", "a.txt")
	mustGyatt(t, dir, "commit", "-m", "base")

	mustGyatt(t, dir, "branch", "feature")
	mustGyatt(t, dir, "checkout", "feature")

	writeFile(t, dir, "a.txt", "on feature\n")
	mustGyatt(t, dir, "add", "a.txt")
	mustGyatt(t, dir, "commit", "-m", "feature work")

	mustGyatt(t, dir, "checkout", "main")

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("reading a.txt after checkout: %v", err)
	}
	if string(content) != "on main\n" {
		t.Fatalf("checkout main did not restore main's content, got %q", content)
	}

	branchOut := mustGyatt(t, dir, "branch")
	if !strings.Contains(branchOut, "feature") {
		t.Fatalf("branch listing missing feature:\n%s", branchOut)
	}
	if !strings.Contains(branchOut, "* main") {
		t.Fatalf("branch listing should mark main as current:\n%s", branchOut)
	}
}

// TestDiffBetweenCommits checks the two-ref diff mode: changed lines from
// both commits appear with +/- markers, and an added file shows up too.
func TestDiffBetweenCommits(t *testing.T) {
	dir := setupRepo(t)
	writeFile(t, dir, "a.txt", "old line\n")
	mustGyatt(t, dir, "add", "a.txt")
	mustGyatt(t, dir, "commit", "-m", "first")
	firstHash := strings.TrimSpace(string(readRef(t, dir, "main")))

	writeFile(t, dir, "a.txt", "new line\n")
	writeFile(t, dir, "b.txt", "brand new\n")
	mustGyatt(t, dir, "add", "a.txt", "b.txt")
	mustGyatt(t, dir, "commit", "-m", "second")
	secondHash := strings.TrimSpace(string(readRef(t, dir, "main")))

	out := mustGyatt(t, dir, "diff", firstHash, secondHash)
	for _, want := range []string{"-old line", "+new line", "+brand new", "a/a.txt", "b/b.txt"} {
		if !strings.Contains(out, want) {
			t.Errorf("diff output missing %q:\n%s", want, out)
		}
	}

	// Same tree on both sides produces no hunks.
	if out := mustGyatt(t, dir, "diff", secondHash, secondHash); strings.TrimSpace(out) != "" {
		t.Errorf("diff of a commit against itself should be empty, got:\n%s", out)
	}
}

// TestIgnoreSemantics checks that a file matching a .gyattignore pattern,
// directly or under an ignored directory, never shows up in status.
func TestIgnoreSemantics(t *testing.T) {
	dir := setupRepo(t)
	writeFile(t, dir, ".gyattignore", "*.log\nbuild/\n")
	writeFile(t, dir, "keep.txt", "kept\n")
	writeFile(t, dir, "debug.log", "noisy\n")
	writeFile(t, dir, "build/output.bin", "binary\n")

	out := mustGyatt(t, dir, "status", "-s")
	if strings.Contains(out, "debug.log") {
		t.Fatalf("ignored file debug.log appeared in status:\n%s", out)
	}
	if strings.Contains(out, "build/output.bin") {
		t.Fatalf("ignored directory build/ appeared in status:\n%s", out)
	}
	if !strings.Contains(out, "keep.txt") {
		t.Fatalf("non-ignored file keep.txt missing from status:\n%s", out)
	}
}

// TestShowDetectsCorruption checks that a loose object whose stored bytes
// no longer hash to its own filename is reported as corrupt, not silently
// returned.
func TestShowDetectsCorruption(t *testing.T) {
	dir := setupRepo(t)
	writeFile(t, dir, "a.txt", "hello\n")
	mustGyatt(t, dir, "add", "a.txt")
	mustGyatt(t, dir, "commit", "-m", "first")

	const helloBlobHash = "ce013625030ba8dba906f756967f9e9ca394464a"
	objPath := filepath.Join(dir, ".gyatt", "objects", helloBlobHash[:2], helloBlobHash[2:])
	if _, err := os.Stat(objPath); err != nil {
		t.Fatalf("expected loose object at %s: %v", objPath, err)
	}
	if err := os.WriteFile(objPath, []byte("blob 12\x00tampered!!!\n"), 0o644); err != nil {
		t.Fatalf("corrupting object: %v", err)
	}

	out, code := runGyatt(t, dir, "show", helloBlobHash)
	if code == 0 {
		t.Fatalf("show on a corrupted object should fail, got exit 0 and output:\n%s", out)
	}
}
