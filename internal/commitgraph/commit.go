// Package commitgraph implements the commit engine: building a tree from
// the staging index, writing a commit object, and advancing the current
// branch ref.
package commitgraph

import (
	"sort"
	"strings"
	"time"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/index"
	"github.com/gyattvc/gyatt/internal/objhash"
	"github.com/gyattvc/gyatt/internal/objstore"
	"github.com/gyattvc/gyatt/internal/refs"
)

// Identity is the (name, email) pair supplied by the caller; the commit's
// timestamp and timezone offset come from Commit's now and
// tzOffsetMinutes arguments.
type Identity struct {
	Name  string
	Email string
}

// Result is returned by Commit on success.
type Result struct {
	Hash objhash.Hash
	Tree objhash.Hash
}

// Commit builds a tree from the index, writes a commit object on top of
// it, and advances the current branch ref to point at the new commit. now
// and tzOffsetMinutes are threaded in by the caller (rather than read from
// time.Now directly) so that callers can stamp deterministic timestamps in
// tests; production callers pass time.Now() and the local zone's offset.
func Commit(store *objstore.Store, idx *index.Index, refStore *refs.Store, message string, author Identity, now time.Time, tzOffsetMinutes int) (Result, error) {
	if idx.Len() == 0 {
		return Result{}, gyatterrs.New(gyatterrs.NothingToCommit, "commitgraph.Commit")
	}

	treeHash, err := buildTree(store, idx.Entries())
	if err != nil {
		return Result{}, err
	}

	branch, err := refStore.CurrentBranch()
	if err != nil {
		return Result{}, err
	}
	parent, hasParent, err := refStore.ReadRef(branch)
	if err != nil {
		return Result{}, err
	}

	id := objstore.Identity{
		Name:            author.Name,
		Email:           author.Email,
		When:            now,
		TZOffsetMinutes: tzOffsetMinutes,
	}
	msg := message
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	commit := objstore.Commit{
		Tree:      treeHash,
		Author:    id,
		Committer: id,
		Message:   msg,
	}
	if hasParent {
		commit.Parent = parent
	}

	commitHash, err := store.PutCommit(commit)
	if err != nil {
		return Result{}, err
	}

	if err := refStore.WriteRef(branch, commitHash); err != nil {
		return Result{}, err
	}

	idx.Clear()
	if err := idx.Save(); err != nil {
		return Result{}, err
	}

	return Result{Hash: commitHash, Tree: treeHash}, nil
}

// buildNode is an intermediate tree under construction: either a leaf
// (blob) entry, taken straight from an index entry, or a directory of
// further buildNodes keyed by their next path component.
type buildNode struct {
	entry    *index.Entry // set for leaves
	children map[string]*buildNode
}

// buildTree groups index entries by their first path component, recursing
// into subtrees, and writes one tree object per directory level.
func buildTree(store *objstore.Store, entries []index.Entry) (objhash.Hash, error) {
	root := &buildNode{children: make(map[string]*buildNode)}
	for i := range entries {
		insertEntry(root, &entries[i])
	}
	return writeNode(store, root)
}

func insertEntry(node *buildNode, e *index.Entry) {
	parts := strings.Split(e.Path, "/")
	cur := node
	for i, part := range parts {
		if i == len(parts)-1 {
			if cur.children[part] == nil {
				cur.children[part] = &buildNode{}
			}
			cur.children[part].entry = e
			continue
		}
		if cur.children[part] == nil {
			cur.children[part] = &buildNode{children: make(map[string]*buildNode)}
		}
		cur = cur.children[part]
	}
}

func writeNode(store *objstore.Store, node *buildNode) (objhash.Hash, error) {
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)

	tree := objstore.Tree{Entries: make([]objstore.TreeEntry, 0, len(names))}
	for _, name := range names {
		child := node.children[name]
		if child.entry != nil {
			tree.Entries = append(tree.Entries, objstore.TreeEntry{
				Name: name,
				Mode: child.entry.Mode,
				Hash: child.entry.Hash,
			})
			continue
		}
		childHash, err := writeNode(store, child)
		if err != nil {
			return objhash.Hash{}, err
		}
		tree.Entries = append(tree.Entries, objstore.TreeEntry{
			Name: name,
			Mode: objstore.ModeTree,
			Hash: childHash,
		})
	}

	return store.PutTree(tree)
}
