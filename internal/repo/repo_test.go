package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gyattvc/gyatt/internal/objhash"
)

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestInitAndFirstCommit(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, MetadataDirName)); err != nil {
		t.Fatalf("metadata dir missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".gyattignore")); err != nil {
		t.Fatalf("default ignore file missing: %v", err)
	}
	branch, err := r.CurrentBranch()
	if err != nil || branch != "main" {
		t.Fatalf("CurrentBranch = %q, %v; want main, nil", branch, err)
	}

	writeFile(t, root, "a.txt", "hello\n")
	if err := r.Add("a.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	res, err := r.Commit("first", Identity{Name: "Tester", Email: "t@example.com"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if r.Index.Len() != 0 {
		t.Fatalf("index not cleared after commit: %d entries", r.Index.Len())
	}

	wantBlobHash := objhash.Sum("blob", []byte("hello\n"))
	tree, err := r.Objects.GetTree(res.Tree)
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	if len(tree.Entries) != 1 || tree.Entries[0].Name != "a.txt" || tree.Entries[0].Hash != wantBlobHash {
		t.Fatalf("unexpected tree entries: %+v", tree.Entries)
	}

	commit, err := r.Objects.GetCommit(res.Hash)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if !commit.Parent.IsZero() {
		t.Fatalf("root commit should have no parent, got %v", commit.Parent)
	}
	if commit.Message != "first\n" {
		t.Fatalf("Message = %q", commit.Message)
	}

	log, err := r.Log()
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 1 || log[0].Hash != res.Hash {
		t.Fatalf("Log = %+v", log)
	}
}

func TestSecondCommitChainsParent(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	id := Identity{Name: "Tester", Email: "t@example.com"}

	writeFile(t, root, "a.txt", "hello\n")
	if err := r.Add("a.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	c1, err := r.Commit("first", id)
	if err != nil {
		t.Fatalf("Commit 1: %v", err)
	}

	writeFile(t, root, "a.txt", "hello\nworld\n")
	if err := r.Add("a.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	c2, err := r.Commit("second", id)
	if err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	commit2, err := r.Objects.GetCommit(c2.Hash)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if commit2.Parent != c1.Hash {
		t.Fatalf("Parent = %v, want %v", commit2.Parent, c1.Hash)
	}
	if commit2.Tree == c1.Tree {
		t.Fatalf("expected a different tree hash for the second commit")
	}
}

func TestBranchAndCheckout(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	id := Identity{Name: "Tester", Email: "t@example.com"}

	writeFile(t, root, "a.txt", "hello\n")
	if err := r.Add("a.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("first", id); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := r.CreateBranch("feature"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout feature: %v", err)
	}
	branch, _ := r.CurrentBranch()
	if branch != "feature" {
		t.Fatalf("CurrentBranch = %q, want feature", branch)
	}

	writeFile(t, root, "a.txt", "branched\n")
	if err := r.Add("a.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("on feature", id); err != nil {
		t.Fatalf("Commit on feature: %v", err)
	}

	mainHashBefore, _, err := r.Refs.ReadRef("main")
	if err != nil {
		t.Fatalf("ReadRef main: %v", err)
	}

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile a.txt: %v", err)
	}
	if string(got) != "hello\n" {
		t.Fatalf("a.txt = %q, want %q", got, "hello\n")
	}
	mainHashAfter, _, err := r.Refs.ReadRef("main")
	if err != nil {
		t.Fatalf("ReadRef main: %v", err)
	}
	if mainHashBefore != mainHashAfter {
		t.Fatalf("checkout must not move the main ref")
	}
	branch, err = r.CurrentBranch()
	if err != nil || branch != "main" {
		t.Fatalf("CurrentBranch = %q, %v; want main, nil", branch, err)
	}
}

func TestDiscoverWalksUpward(t *testing.T) {
	root := t.TempDir()
	if _, err := Init(root); err != nil {
		t.Fatalf("Init: %v", err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	r, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	gotRoot, err := filepath.EvalSymlinks(r.Root())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	wantRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	if gotRoot != wantRoot {
		t.Fatalf("Discover root = %q, want %q", gotRoot, wantRoot)
	}
}
