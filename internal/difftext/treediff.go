package difftext

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/gyattvc/gyatt/internal/objhash"
	"github.com/gyattvc/gyatt/internal/objstore"
)

const (
	// maxDiffEntries caps how many file changes a single tree diff may
	// produce before it is reported as too large to render.
	maxDiffEntries = 500

	// binarySniffLimit is how many leading bytes are scanned for a NUL
	// byte when classifying content as binary.
	binarySniffLimit = 8192
)

// DiffStatus classifies one changed path in a tree-to-tree diff.
type DiffStatus int

const (
	// DiffStatusAdded marks a path present only in the new tree.
	DiffStatusAdded DiffStatus = iota
	// DiffStatusModified marks a path whose blob hash changed.
	DiffStatusModified
	// DiffStatusDeleted marks a path present only in the old tree.
	DiffStatusDeleted
)

func (s DiffStatus) String() string {
	switch s {
	case DiffStatusAdded:
		return "added"
	case DiffStatusModified:
		return "modified"
	case DiffStatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DiffEntry is one changed file between two trees. OldHash is zero for
// added paths, NewHash is zero for deleted ones.
type DiffEntry struct {
	Path    string
	Status  DiffStatus
	OldHash objhash.Hash
	NewHash objhash.Hash
	OldMode uint32
	NewMode uint32
}

// TreeDiff recursively compares two trees and returns a flat list of
// changed files, sorted by path. Either hash may be zero to diff against
// an empty tree (a root commit has no parent tree). A file whose path
// changed kind between the trees (file <-> directory) is reported as a
// deletion plus an addition.
func TreeDiff(store *objstore.Store, oldTreeHash, newTreeHash objhash.Hash) ([]DiffEntry, error) {
	entries, err := treeDiff(store, oldTreeHash, newTreeHash, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func treeDiff(store *objstore.Store, oldTreeHash, newTreeHash objhash.Hash, prefix string) ([]DiffEntry, error) {
	oldEntries, err := loadTreeEntries(store, oldTreeHash)
	if err != nil {
		return nil, err
	}
	newEntries, err := loadTreeEntries(store, newTreeHash)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(oldEntries)+len(newEntries))
	for name := range oldEntries {
		names[name] = true
	}
	for name := range newEntries {
		names[name] = true
	}

	var entries []DiffEntry
	for name := range names {
		oldEntry, inOld := oldEntries[name]
		newEntry, inNew := newEntries[name]

		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}

		if len(entries) >= maxDiffEntries {
			return nil, fmt.Errorf("diff too large: exceeded maximum of %d entries", maxDiffEntries)
		}

		switch {
		case !inOld && inNew:
			sub, err := addedOrDeleted(store, newEntry, path, DiffStatusAdded)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sub...)

		case inOld && !inNew:
			sub, err := addedOrDeleted(store, oldEntry, path, DiffStatusDeleted)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sub...)

		default:
			if oldEntry.Hash == newEntry.Hash {
				continue
			}
			switch {
			case oldEntry.IsTree() && newEntry.IsTree():
				sub, err := treeDiff(store, oldEntry.Hash, newEntry.Hash, path)
				if err != nil {
					return nil, err
				}
				entries = append(entries, sub...)
			case oldEntry.IsTree() || newEntry.IsTree():
				// Kind changed: everything under the old side goes away,
				// everything under the new side arrives.
				del, err := addedOrDeleted(store, oldEntry, path, DiffStatusDeleted)
				if err != nil {
					return nil, err
				}
				add, err := addedOrDeleted(store, newEntry, path, DiffStatusAdded)
				if err != nil {
					return nil, err
				}
				entries = append(entries, del...)
				entries = append(entries, add...)
			default:
				entries = append(entries, DiffEntry{
					Path:    path,
					Status:  DiffStatusModified,
					OldHash: oldEntry.Hash,
					NewHash: newEntry.Hash,
					OldMode: oldEntry.Mode,
					NewMode: newEntry.Mode,
				})
			}
		}
	}

	return entries, nil
}

// loadTreeEntries returns a tree's entries keyed by name; the zero hash
// yields an empty map (diffing against no tree at all).
func loadTreeEntries(store *objstore.Store, treeHash objhash.Hash) (map[string]objstore.TreeEntry, error) {
	if treeHash.IsZero() {
		return map[string]objstore.TreeEntry{}, nil
	}
	tree, err := store.GetTree(treeHash)
	if err != nil {
		return nil, err
	}
	out := make(map[string]objstore.TreeEntry, len(tree.Entries))
	for _, e := range tree.Entries {
		out[e.Name] = e
	}
	return out, nil
}

// addedOrDeleted expands one side-only entry into diff entries: a blob
// becomes a single added/deleted record, a subtree recurses into one
// record per file beneath it.
func addedOrDeleted(store *objstore.Store, entry objstore.TreeEntry, path string, status DiffStatus) ([]DiffEntry, error) {
	if entry.IsTree() {
		if status == DiffStatusAdded {
			return treeDiff(store, objhash.Hash{}, entry.Hash, path)
		}
		return treeDiff(store, entry.Hash, objhash.Hash{}, path)
	}
	e := DiffEntry{Path: path, Status: status}
	if status == DiffStatusAdded {
		e.NewHash = entry.Hash
		e.NewMode = entry.Mode
	} else {
		e.OldHash = entry.Hash
		e.OldMode = entry.Mode
	}
	return []DiffEntry{e}, nil
}

// IsBinary detects binary content the way git does: a NUL byte anywhere
// in the leading 8KB.
func IsBinary(data []byte) bool {
	limit := len(data)
	if limit > binarySniffLimit {
		limit = binarySniffLimit
	}
	return bytes.IndexByte(data[:limit], 0) != -1
}
