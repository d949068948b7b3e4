package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func writeIgnoreFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ".gyattignore"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing .gyattignore: %v", err)
	}
}

func TestLoad_MissingFile_StillIgnoresMetadataDir(t *testing.T) {
	e, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !e.IsIgnored(MetadataDirName, true) {
		t.Errorf("expected metadata dir to be implicitly ignored")
	}
	if !e.IsIgnored(MetadataDirName+"/objects/ab/xyz", false) {
		t.Errorf("expected paths under metadata dir to be ignored")
	}
}

func TestIsIgnored_NegationOverridesEarlierMatch(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "*.log\n!important.log\n")
	e, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cases := map[string]bool{
		"x.log":         true,
		"important.log": false,
		"x.txt":         false,
	}
	for path, want := range cases {
		if got := e.IsIgnored(path, false); got != want {
			t.Errorf("IsIgnored(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestIsIgnored_IgnoreFileItselfIsImplicit(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "*.log\n")
	e, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !e.IsIgnored(IgnoreFileName, false) {
		t.Errorf("expected the ignore file itself to be implicitly ignored")
	}
	if e.IsIgnored("sub/"+IgnoreFileName, false) {
		t.Errorf("only the root ignore file is special, not same-named nested files")
	}
}

func TestIsIgnored_LaterPatternOverridesEarlier(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "!keep.txt\nkeep.txt\n")
	e, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !e.IsIgnored("keep.txt", false) {
		t.Errorf("expected the later pattern to win and ignore keep.txt")
	}
}

func TestIsIgnored_DirOnlyPatternIgnoresNestedFiles(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "build/\n")
	e, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !e.IsIgnored("build", true) {
		t.Errorf("expected build/ directory itself to be ignored")
	}
	if !e.IsIgnored("build/output.bin", false) {
		t.Errorf("expected files nested under build/ to be ignored")
	}
	if e.IsIgnored("buildsystem.txt", false) {
		t.Errorf("dirOnly pattern should not match a same-prefix file name")
	}
}

func TestIsIgnored_CommentsAndBlankLinesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "# comment\n\n*.tmp\n")
	e, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !e.IsIgnored("a.tmp", false) {
		t.Errorf("expected *.tmp to match")
	}
	if e.IsIgnored("# comment", false) {
		t.Errorf("comment line should not become a pattern")
	}
}

func TestIsIgnored_DoubleStarMatchesAnyDepth(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "**/cache\n")
	e, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !e.IsIgnored("a/b/cache", true) {
		t.Errorf("expected **/cache to match nested cache directories")
	}
}

func TestWriteDefault_DoesNotOverwriteExisting(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "custom-pattern\n")
	if err := WriteDefault(dir); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ".gyattignore"))
	if err != nil {
		t.Fatalf("reading .gyattignore: %v", err)
	}
	if string(data) != "custom-pattern\n" {
		t.Errorf("WriteDefault overwrote an existing file: %q", data)
	}
}

func TestWriteDefault_CreatesFileIncludingMetadataDir(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDefault(dir); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	e, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !e.IsIgnored("x.log", false) {
		t.Errorf("expected default ignore content to cover *.log")
	}
	found := false
	for _, p := range e.patterns {
		if p.text == MetadataDirName && p.dirOnly {
			found = true
		}
	}
	if !found {
		t.Errorf("expected default ignore content to list %s/", MetadataDirName)
	}
}
