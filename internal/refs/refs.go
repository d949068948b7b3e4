// Package refs implements branch references and HEAD. It is the sole
// owner of the refs/ subtree and the HEAD file. Branch refs live under
// heads/; remote-tracking refs live under remotes/<remote>/.
package refs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/objhash"
)

// DefaultBranch is the branch name a fresh repository's HEAD points at.
const DefaultBranch = "main"

// Store reads and writes refs/ and HEAD under a single metadata directory.
type Store struct {
	gitDir string
}

// Open returns a Store rooted at gitDir (the repository's metadata
// directory, e.g. ".gyatt").
func Open(gitDir string) *Store {
	return &Store{gitDir: gitDir}
}

func (s *Store) headsDir() string   { return filepath.Join(s.gitDir, "refs", "heads") }
func (s *Store) remotesDir() string { return filepath.Join(s.gitDir, "refs", "remotes") }
func (s *Store) headFile() string   { return filepath.Join(s.gitDir, "HEAD") }

// InitDefaults writes a fresh HEAD pointing at the default branch. It does
// not create the branch ref itself — that happens on the first commit.
func (s *Store) InitDefaults() error {
	return s.SetHead(DefaultBranch)
}

// validateBranchName rejects slash, whitespace, or backslash in a branch
// name about to be created. Nested directory-style branch refs are still
// read-supported elsewhere (ReadRef/ListBranches walk subdirectories) —
// they just can't be created through this validator, only read if they
// already exist on disk.
func validateBranchName(name string) error {
	if name == "" {
		return gyatterrs.New(gyatterrs.InvalidName, "refs: empty branch name")
	}
	if strings.ContainsAny(name, "/\\") || strings.ContainsFunc(name, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}) {
		return gyatterrs.New(gyatterrs.InvalidName, "refs: branch name must not contain '/', '\\', or whitespace")
	}
	return nil
}

// readHashFile reads a "<40-hex>\n" file and parses its hash.
func readHashFile(path string) (objhash.Hash, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from the repository's own ref layout
	if err != nil {
		return objhash.Hash{}, err
	}
	return objhash.Parse(strings.TrimSpace(string(data)))
}

// writeAtomic writes data to path via write-temp-then-rename, the same
// atomicity discipline used throughout the engine: a crash between the
// write and the rename leaves the previous file untouched.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".ref-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // rename below removes the need on the success path

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadRef returns the commit hash a branch name currently points to. ok is
// false if the branch ref does not exist (e.g. a fresh repository with no
// commits yet).
func (s *Store) ReadRef(name string) (hash objhash.Hash, ok bool, err error) {
	path := filepath.Join(s.headsDir(), filepath.FromSlash(name))
	h, err := readHashFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return objhash.Hash{}, false, nil
		}
		return objhash.Hash{}, false, gyatterrs.Wrap(gyatterrs.IoError, "refs.ReadRef", err)
	}
	return h, true, nil
}

// WriteRef atomically sets a branch ref to hash, creating it if absent.
func (s *Store) WriteRef(name string, hash objhash.Hash) error {
	path := filepath.Join(s.headsDir(), filepath.FromSlash(name))
	if err := writeAtomic(path, []byte(hash.String()+"\n")); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "refs.WriteRef", err)
	}
	return nil
}

// ReadRemoteRef returns the commit hash a remote-tracking ref points to.
func (s *Store) ReadRemoteRef(remote, name string) (hash objhash.Hash, ok bool, err error) {
	path := filepath.Join(s.remotesDir(), remote, filepath.FromSlash(name))
	h, err := readHashFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return objhash.Hash{}, false, nil
		}
		return objhash.Hash{}, false, gyatterrs.Wrap(gyatterrs.IoError, "refs.ReadRemoteRef", err)
	}
	return h, true, nil
}

// WriteRemoteRef atomically sets a remote-tracking ref.
func (s *Store) WriteRemoteRef(remote, name string, hash objhash.Hash) error {
	path := filepath.Join(s.remotesDir(), remote, filepath.FromSlash(name))
	if err := writeAtomic(path, []byte(hash.String()+"\n")); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "refs.WriteRemoteRef", err)
	}
	return nil
}

// SetHead points HEAD at a branch symbolically: "ref: refs/heads/<name>\n".
// This engine supports attached HEAD only; there is no detached-HEAD mode.
func (s *Store) SetHead(branch string) error {
	content := "ref: refs/heads/" + branch + "\n"
	if err := writeAtomic(s.headFile(), []byte(content)); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "refs.SetHead", err)
	}
	return nil
}

// CurrentBranch returns the branch name HEAD is symbolically attached to.
func (s *Store) CurrentBranch() (string, error) {
	data, err := os.ReadFile(s.headFile()) //nolint:gosec // G304: fixed path within the repository metadata directory
	if err != nil {
		return "", gyatterrs.Wrap(gyatterrs.IoError, "refs.CurrentBranch", err)
	}
	line := strings.TrimSpace(string(data))
	const prefix = "ref: refs/heads/"
	if !strings.HasPrefix(line, prefix) {
		return "", gyatterrs.New(gyatterrs.BadFormat, "refs.CurrentBranch: HEAD is detached, which this engine does not support")
	}
	return strings.TrimPrefix(line, prefix), nil
}

// Head resolves the current branch to its commit hash. ok is false on a
// fresh repository with no commits yet.
func (s *Store) Head() (hash objhash.Hash, ok bool, err error) {
	branch, err := s.CurrentBranch()
	if err != nil {
		return objhash.Hash{}, false, err
	}
	return s.ReadRef(branch)
}

// ListBranches returns every branch ref name under refs/heads, including
// ones nested in subdirectories (read-supported even though CreateBranch
// rejects slashes at creation time).
func (s *Store) ListBranches() ([]string, error) {
	root := s.headsDir()
	var names []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "refs.ListBranches", err)
	}
	return names, nil
}

// CreateBranch creates a new branch ref pointing at the repository's
// current HEAD commit. Fails with AlreadyExists, NoCommitsYet, or
// InvalidName.
func (s *Store) CreateBranch(name string) error {
	if err := validateBranchName(name); err != nil {
		return err
	}
	if _, ok, err := s.ReadRef(name); err != nil {
		return err
	} else if ok {
		return gyatterrs.New(gyatterrs.AlreadyExists, "refs.CreateBranch: branch "+name+" already exists")
	}

	head, ok, err := s.Head()
	if err != nil {
		return err
	}
	if !ok {
		return gyatterrs.New(gyatterrs.NoCommitsYet, "refs.CreateBranch: repository has no commits yet")
	}
	return s.WriteRef(name, head)
}

// DeleteBranch removes a branch ref. Fails with NotFound or, when name is
// the branch HEAD is currently attached to, InvalidName — there's no
// dedicated error kind for "that's the current branch", so it's folded
// into InvalidName (see DESIGN.md for the reasoning).
func (s *Store) DeleteBranch(name string) error {
	current, err := s.CurrentBranch()
	if err == nil && current == name {
		return gyatterrs.New(gyatterrs.InvalidName, "refs.DeleteBranch: cannot delete the current branch")
	}

	path := filepath.Join(s.headsDir(), filepath.FromSlash(name))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return gyatterrs.New(gyatterrs.NotFound, "refs.DeleteBranch: branch "+name+" not found")
		}
		return gyatterrs.Wrap(gyatterrs.IoError, "refs.DeleteBranch", err)
	}
	return nil
}
