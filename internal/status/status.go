// Package status implements the status engine: a three-way diff between
// the HEAD tree, the staging index, and the working tree.
package status

import (
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/ignore"
	"github.com/gyattvc/gyatt/internal/index"
	"github.com/gyattvc/gyatt/internal/objhash"
	"github.com/gyattvc/gyatt/internal/objstore"
	"github.com/gyattvc/gyatt/internal/refs"
	"github.com/gyattvc/gyatt/internal/worktree"
)

// parallelHashWorkers bounds how many working-tree files are stat'd and
// hashed concurrently during a status scan. Status never writes the
// index, so the bound here is purely about read fan-out.
const parallelHashWorkers = 8

// StagedKind classifies an entry in the staged set relative to HEAD.
type StagedKind string

const (
	StagedNew      StagedKind = "new"
	StagedModified StagedKind = "modified"
	StagedDeleted  StagedKind = "deleted"
)

// UnstagedKind classifies an entry in the unstaged set relative to the index.
type UnstagedKind string

const (
	UnstagedModified UnstagedKind = "modified"
	UnstagedDeleted  UnstagedKind = "deleted"
)

type StagedChange struct {
	Path string
	Kind StagedKind
}

type UnstagedChange struct {
	Path string
	Kind UnstagedKind
}

// Status is the full three-way diff result.
type Status struct {
	Staged    []StagedChange
	Unstaged  []UnstagedChange
	Untracked []string

	// PerFileErrors collects non-fatal per-path failures encountered while
	// stat'ing or reading working-tree files. A missing file or a
	// permission error on one path should not abort the whole scan.
	PerFileErrors []error
}

// Compute produces the status of workDir against the current HEAD commit
// and the staging index.
//
// A successful commit clears the index, so the index alone cannot serve as
// the tracked-file baseline: the working tree is compared against the
// overlay of the HEAD tree and the index, with the index winning where
// both track a path. A freshly committed tree therefore reads as clean,
// not as a wall of deletions.
func Compute(store *objstore.Store, idx *index.Index, refStore *refs.Store, workDir string, ignoreEngine *ignore.Engine) (*Status, error) {
	headTree, err := flattenHead(store, refStore)
	if err != nil {
		return nil, err
	}

	entries := idx.Entries()
	indexPaths := make(map[string]index.Entry, len(entries))
	for _, e := range entries {
		indexPaths[e.Path] = e
	}

	tracked := make(map[string]objhash.Hash, len(headTree)+len(entries))
	for path, h := range headTree {
		tracked[path] = h
	}
	for path, e := range indexPaths {
		tracked[path] = e.Hash
	}

	st := &Status{}

	st.Staged = computeStaged(headTree, indexPaths)

	unstaged, perFileErrs := computeUnstaged(workDir, tracked)
	st.Unstaged = unstaged
	st.PerFileErrors = perFileErrs

	untracked, err := computeUntracked(workDir, ignoreEngine, tracked)
	if err != nil {
		return nil, err
	}
	st.Untracked = untracked

	return st, nil
}

// flattenHead returns every blob path in the current HEAD commit's tree,
// mapped to its blob hash. A repository with no commits yet yields an
// empty map.
func flattenHead(store *objstore.Store, refStore *refs.Store) (map[string]objhash.Hash, error) {
	headHash, ok, err := refStore.Head()
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]objhash.Hash{}, nil
	}
	commit, err := store.GetCommit(headHash)
	if err != nil {
		return nil, err
	}
	out := make(map[string]objhash.Hash)
	if err := flattenTree(store, commit.Tree, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenTree(store *objstore.Store, treeHash objhash.Hash, prefix string, out map[string]objhash.Hash) error {
	tree, err := store.GetTree(treeHash)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		full := entry.Name
		if prefix != "" {
			full = prefix + "/" + entry.Name
		}
		if entry.IsTree() {
			if err := flattenTree(store, entry.Hash, full, out); err != nil {
				return err
			}
			continue
		}
		out[full] = entry.Hash
	}
	return nil
}

// computeStaged classifies index entries against the HEAD tree. Because a
// commit clears the index and `add` stages one path at a time, a HEAD path
// absent from the index carries no information — only entries actually in
// the index can be staged changes. An entry holding the zero hash records
// a staged deletion of a HEAD-tracked path.
func computeStaged(headTree map[string]objhash.Hash, indexPaths map[string]index.Entry) []StagedChange {
	var out []StagedChange
	for path, e := range indexPaths {
		headHash, inHead := headTree[path]
		switch {
		case e.Hash.IsZero() && inHead:
			out = append(out, StagedChange{Path: path, Kind: StagedDeleted})
		case !inHead:
			out = append(out, StagedChange{Path: path, Kind: StagedNew})
		case headHash != e.Hash:
			out = append(out, StagedChange{Path: path, Kind: StagedModified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// computeUnstaged compares each tracked path's expected blob hash against
// the working tree's current content, in parallel, bounded by
// parallelHashWorkers. The working-tree file is hashed with the blob
// envelope so the result is directly comparable to stored blob ids.
func computeUnstaged(workDir string, tracked map[string]objhash.Hash) ([]UnstagedChange, []error) {
	paths := make([]string, 0, len(tracked))
	for path, h := range tracked {
		if h.IsZero() {
			continue // staged deletion; its absence on disk is not an unstaged change
		}
		paths = append(paths, path)
	}

	results := make([]*UnstagedChange, len(paths))
	errs := make([]error, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(parallelHashWorkers)
	for i := range paths {
		i := i
		g.Go(func() error {
			path := paths[i]
			want := tracked[path]
			diskPath := filepath.Join(workDir, filepath.FromSlash(path))
			data, readErr := os.ReadFile(diskPath) //nolint:gosec // G304: path is derived from the repository's own tracked entries
			if readErr != nil {
				if os.IsNotExist(readErr) {
					results[i] = &UnstagedChange{Path: path, Kind: UnstagedDeleted}
					return nil
				}
				errs[i] = gyatterrs.Wrap(gyatterrs.IoError, "status.Compute", readErr)
				return nil
			}
			if objhash.Sum(objstore.TypeBlob, data) != want {
				results[i] = &UnstagedChange{Path: path, Kind: UnstagedModified}
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return a non-nil error; failures are captured per-index in errs

	var out []UnstagedChange
	var combined error
	for i, r := range results {
		if errs[i] != nil {
			combined = multierr.Append(combined, errs[i])
			continue
		}
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, multierr.Errors(combined)
}

func computeUntracked(workDir string, ignoreEngine *ignore.Engine, tracked map[string]objhash.Hash) ([]string, error) {
	paths, err := worktree.List(workDir, ignoreEngine)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		if _, ok := tracked[p]; ok {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
