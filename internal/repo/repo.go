// Package repo is the top-level Repository handle: the library API behind
// the CLI surface. It wires the object store, index, refs, ignore engine,
// working-tree scanner, commit engine, and status engine together under
// one repository root, with one method per porcelain verb, built over this
// engine's own on-disk format rather than parsing real git repositories.
package repo

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/gyattvc/gyatt/internal/commitgraph"
	"github.com/gyattvc/gyatt/internal/config"
	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/ignore"
	"github.com/gyattvc/gyatt/internal/index"
	"github.com/gyattvc/gyatt/internal/objhash"
	"github.com/gyattvc/gyatt/internal/objstore"
	"github.com/gyattvc/gyatt/internal/refs"
	"github.com/gyattvc/gyatt/internal/status"
	"github.com/gyattvc/gyatt/internal/worktree"
)

// MetadataDirName is the name of the repository metadata directory.
const MetadataDirName = ignore.MetadataDirName

// Repository is a handle threaded through every core operation; it holds
// no package-level global state.
type Repository struct {
	root   string
	gitDir string

	Objects *objstore.Store
	Index   *index.Index
	Refs    *refs.Store
	Ignore  *ignore.Engine
	Config  *config.Config

	// Logger receives per-path warnings from bulk operations (add, status
	// scan), in addition to those warnings being returned as collected
	// errors. Defaults to slog.Default() when the zero value is used.
	Logger *slog.Logger
}

func (r *Repository) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Root returns the working-tree root directory.
func (r *Repository) Root() string { return r.root }

// GitDir returns the repository metadata directory.
func (r *Repository) GitDir() string { return r.gitDir }

// Init creates a fresh repository at root: the metadata directory, HEAD
// pointing at the default branch, an empty config, a description file, and
// a default .gyattignore. Fails with AlreadyExists if root already holds a
// metadata directory.
func Init(root string) (*Repository, error) {
	gitDir := filepath.Join(root, MetadataDirName)
	if _, err := os.Stat(gitDir); err == nil {
		return nil, gyatterrs.New(gyatterrs.AlreadyExists, "repo.Init: metadata directory already exists")
	}
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "repo.Init", err)
	}

	refStore := refs.Open(gitDir)
	if err := refStore.InitDefaults(); err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(gitDir, "description"), []byte("Unnamed repository\n"), 0o644); err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "repo.Init", err)
	}

	if err := ignore.WriteDefault(root); err != nil {
		return nil, err
	}

	store, err := objstore.Open(filepath.Join(gitDir, "objects"))
	if err != nil {
		return nil, err
	}
	idx, err := index.Load(filepath.Join(gitDir, "index"))
	if err != nil {
		return nil, err
	}
	ignoreEngine, err := ignore.Load(root)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(filepath.Join(gitDir, "config"))
	if err != nil {
		return nil, err
	}

	return &Repository{
		root: root, gitDir: gitDir,
		Objects: store, Index: idx, Refs: refStore, Ignore: ignoreEngine, Config: cfg,
	}, nil
}

// Discover walks upward from start until a metadata directory is found,
// then opens the repository it names.
func Discover(start string) (*Repository, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "repo.Discover", err)
	}
	for {
		candidate := filepath.Join(dir, MetadataDirName)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return Open(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, gyatterrs.New(gyatterrs.NotARepository, "repo.Discover")
		}
		dir = parent
	}
}

// Open loads a repository whose root is known exactly (no upward walk).
func Open(root string) (*Repository, error) {
	gitDir := filepath.Join(root, MetadataDirName)
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		return nil, gyatterrs.New(gyatterrs.NotARepository, "repo.Open")
	}

	store, err := objstore.Open(filepath.Join(gitDir, "objects"))
	if err != nil {
		return nil, err
	}
	idx, err := index.Load(filepath.Join(gitDir, "index"))
	if err != nil {
		return nil, err
	}
	refStore := refs.Open(gitDir)
	ignoreEngine, err := ignore.Load(root)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(filepath.Join(gitDir, "config"))
	if err != nil {
		return nil, err
	}

	return &Repository{
		root: root, gitDir: gitDir,
		Objects: store, Index: idx, Refs: refStore, Ignore: ignoreEngine, Config: cfg,
	}, nil
}

// Add stages relPath via the index's AddFile.
func (r *Repository) Add(relPath string) error {
	return r.Index.AddFile(r.Objects, r.root, relPath)
}

// AddAll stages every non-ignored working-tree file, collecting per-path
// failures as warnings rather than aborting.
func (r *Repository) AddAll() (warnings []error, err error) {
	paths, err := worktree.List(r.root, r.Ignore)
	if err != nil {
		return nil, err
	}
	var combined error
	for _, p := range paths {
		if addErr := r.Add(p); addErr != nil {
			r.logger().Warn("failed to stage path", "path", p, "error", addErr)
			combined = multierr.Append(combined, addErr)
		}
	}
	return multierr.Errors(combined), nil
}

// Identity is the (name, email) pair a commit's author/committer is stamped
// with; resolved by the caller (typically from Config.UserName/UserEmail).
type Identity = commitgraph.Identity

// Commit runs the commit engine against this repository's store/index/refs,
// using the current time and local timezone offset.
func (r *Repository) Commit(message string, author Identity) (commitgraph.Result, error) {
	now := time.Now()
	_, offsetSeconds := now.Zone()
	return commitgraph.Commit(r.Objects, r.Index, r.Refs, message, author, now, offsetSeconds/60)
}

// Status runs the status engine against HEAD/index/working tree, logging
// any per-file scan failures in addition to returning them on the result.
func (r *Repository) Status() (*status.Status, error) {
	st, err := status.Compute(r.Objects, r.Index, r.Refs, r.root, r.Ignore)
	if err != nil {
		return nil, err
	}
	for _, perr := range st.PerFileErrors {
		r.logger().Warn("status scan failed for path", "error", perr)
	}
	return st, nil
}

// CreateBranch creates a branch ref pointing at the current HEAD commit.
func (r *Repository) CreateBranch(name string) error { return r.Refs.CreateBranch(name) }

// DeleteBranch removes a branch ref.
func (r *Repository) DeleteBranch(name string) error { return r.Refs.DeleteBranch(name) }

// ListBranches returns every branch ref name.
func (r *Repository) ListBranches() ([]string, error) { return r.Refs.ListBranches() }

// CurrentBranch returns the branch HEAD is attached to.
func (r *Repository) CurrentBranch() (string, error) { return r.Refs.CurrentBranch() }

// Checkout switches HEAD to branch and rewrites the working tree to match
// that branch's commit tree, restoring each tracked file's content and
// removing files the new tree does not list. The current branch's ref is
// left untouched; only HEAD and the working copy change.
func (r *Repository) Checkout(branch string) error {
	target, ok, err := r.Refs.ReadRef(branch)
	if err != nil {
		return err
	}
	if !ok {
		return gyatterrs.New(gyatterrs.NotFound, "repo.Checkout: branch "+branch+" has no commits")
	}

	commit, err := r.Objects.GetCommit(target)
	if err != nil {
		return err
	}
	files := make(map[string]objhash.Hash)
	if err := flattenTree(r.Objects, commit.Tree, "", files); err != nil {
		return err
	}

	existing, err := worktree.List(r.root, r.Ignore)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if _, wanted := files[p]; !wanted {
			_ = os.Remove(filepath.Join(r.root, filepath.FromSlash(p)))
		}
	}
	for path, hash := range files {
		blob, err := r.Objects.GetBlob(hash)
		if err != nil {
			return err
		}
		full := filepath.Join(r.root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return gyatterrs.Wrap(gyatterrs.IoError, "repo.Checkout", err)
		}
		if err := os.WriteFile(full, blob.Data, 0o644); err != nil {
			return gyatterrs.Wrap(gyatterrs.IoError, "repo.Checkout", err)
		}
	}

	if err := r.Refs.SetHead(branch); err != nil {
		return err
	}
	// The staging area holds only not-yet-committed work; after a checkout
	// the new HEAD tree is the status baseline, so the index is emptied the
	// same way a successful commit empties it.
	r.Index.Clear()
	return r.Index.Save()
}

// flattenTree recursively walks a tree object into a flat path -> blob hash
// map, mirroring the inverse of commitgraph.buildTree.
func flattenTree(store *objstore.Store, treeHash objhash.Hash, prefix string, out map[string]objhash.Hash) error {
	tree, err := store.GetTree(treeHash)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		path := e.Name
		if prefix != "" {
			path = prefix + "/" + e.Name
		}
		if e.IsTree() {
			if err := flattenTree(store, e.Hash, path, out); err != nil {
				return err
			}
			continue
		}
		out[path] = e.Hash
	}
	return nil
}

// FilesAt returns every tracked path and its blob hash in the tree of the
// commit at commitHash, for the forge sync and the `diff` command, which
// both need a flat view of "everything this commit tracks" rather
// than the nested tree structure.
func (r *Repository) FilesAt(commitHash objhash.Hash) (map[string]objhash.Hash, error) {
	commit, err := r.Objects.GetCommit(commitHash)
	if err != nil {
		return nil, err
	}
	files := make(map[string]objhash.Hash)
	if err := flattenTree(r.Objects, commit.Tree, "", files); err != nil {
		return nil, err
	}
	return files, nil
}

// Show returns the type tag and raw bytes of an arbitrary object, for the
// `show <objref>` CLI verb.
func (r *Repository) Show(id objhash.Hash) (typeTag string, raw []byte, err error) {
	return r.Objects.Get(id)
}

// LogEntry is one commit in a Log listing.
type LogEntry struct {
	Hash   objhash.Hash
	Commit objstore.Commit
}

// Log walks the current branch's commit chain from HEAD to the root
// commit, for the `log` CLI verb.
func (r *Repository) Log() ([]LogEntry, error) {
	head, ok, err := r.Refs.Head()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var out []LogEntry
	cur := head
	for {
		commit, err := r.Objects.GetCommit(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, LogEntry{Hash: cur, Commit: commit})
		if commit.Parent.IsZero() {
			return out, nil
		}
		cur = commit.Parent
	}
}
