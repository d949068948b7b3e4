// Package objstore is the content-addressed object database: a file per
// object under objects/<first-2-hex>/<remaining-38-hex>, storing blob,
// tree, and commit payloads behind one Put/Get/Exists/List API. It is the
// sole owner of the objects/ subtree; nothing outside this package writes
// under it.
package objstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/objhash"
)

// Store reads and writes loose objects under a single objects/ directory.
type Store struct {
	dir string // absolute path to the "objects" directory
}

// Open returns a Store rooted at objectsDir. The directory is created if
// it does not already exist.
func Open(objectsDir string) (*Store, error) {
	if err := os.MkdirAll(objectsDir, 0o755); err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "objstore.Open", err)
	}
	return &Store{dir: objectsDir}, nil
}

func (s *Store) path(id objhash.Hash) string {
	hex := id.String()
	return filepath.Join(s.dir, hex[:2], hex[2:])
}

// Put computes the id of a typed payload and writes it if no object with
// that id already exists. At-most-once semantics: an existing file is left
// untouched, so Put(X); Put(X) always leaves exactly one file of the size
// of the first write.
func (s *Store) Put(typeTag string, raw []byte) (objhash.Hash, error) {
	id := objhash.Sum(typeTag, raw)
	path := s.path(id)

	if _, err := os.Stat(path); err == nil {
		return id, nil
	} else if !os.IsNotExist(err) {
		return objhash.Hash{}, gyatterrs.Wrap(gyatterrs.IoError, "objstore.Put", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return objhash.Hash{}, gyatterrs.Wrap(gyatterrs.IoError, "objstore.Put", err)
	}

	var envelope bytes.Buffer
	fmt.Fprintf(&envelope, "%s %d\x00", typeTag, len(raw))
	envelope.Write(raw)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".obj-*.tmp")
	if err != nil {
		return objhash.Hash{}, gyatterrs.Wrap(gyatterrs.IoError, "objstore.Put", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best-effort cleanup; rename below removes the need on the success path

	if _, err := tmp.Write(envelope.Bytes()); err != nil {
		tmp.Close()
		return objhash.Hash{}, gyatterrs.Wrap(gyatterrs.IoError, "objstore.Put", err)
	}
	if err := tmp.Close(); err != nil {
		return objhash.Hash{}, gyatterrs.Wrap(gyatterrs.IoError, "objstore.Put", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		// Another Put for the same content may have raced us; since the
		// content is identical by construction of id, a lost race is harmless.
		if _, statErr := os.Stat(path); statErr == nil {
			return id, nil
		}
		return objhash.Hash{}, gyatterrs.Wrap(gyatterrs.IoError, "objstore.Put", err)
	}

	return id, nil
}

// Exists reports whether an object with the given id is present.
func (s *Store) Exists(id objhash.Hash) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

// Get reads and parses the typed-payload envelope for id, re-hashing the
// content against the path it was read from: a bit flip or truncation on
// disk returns CorruptObject instead of silently handing back the wrong
// bytes under a correct-looking name.
func (s *Store) Get(id objhash.Hash) (typeTag string, raw []byte, err error) {
	//nolint:gosec // G304: path is derived from a validated Hash, not arbitrary user input
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, gyatterrs.New(gyatterrs.NotFound, "objstore.Get")
		}
		return "", nil, gyatterrs.Wrap(gyatterrs.IoError, "objstore.Get", err)
	}

	nul := bytes.IndexByte(data, 0)
	if nul < 0 {
		return "", nil, gyatterrs.New(gyatterrs.CorruptObject, "objstore.Get: missing NUL in envelope header")
	}
	header := string(data[:nul])
	body := data[nul+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, gyatterrs.New(gyatterrs.CorruptObject, "objstore.Get: malformed envelope header")
	}
	typeTag = parts[0]
	switch typeTag {
	case TypeBlob, TypeTree, TypeCommit:
	default:
		return "", nil, gyatterrs.New(gyatterrs.CorruptObject, "objstore.Get: unknown type tag "+typeTag)
	}

	declaredLen, err := strconv.Atoi(parts[1])
	if err != nil || declaredLen != len(body) {
		return "", nil, gyatterrs.New(gyatterrs.CorruptObject, "objstore.Get: length mismatch in envelope header")
	}

	if objhash.Sum(typeTag, body) != id {
		return "", nil, gyatterrs.New(gyatterrs.CorruptObject, "objstore.Get: content does not hash to requested id")
	}

	return typeTag, body, nil
}

// List invokes fn once per object id currently stored, in the order
// returned by walking the two-level fan-out directories. Returning a
// non-nil error from fn stops the walk and propagates that error.
func (s *Store) List(fn func(objhash.Hash) error) error {
	topEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return gyatterrs.Wrap(gyatterrs.IoError, "objstore.List", err)
	}

	for _, top := range topEntries {
		if !top.IsDir() || len(top.Name()) != 2 {
			continue
		}
		subEntries, err := os.ReadDir(filepath.Join(s.dir, top.Name()))
		if err != nil {
			return gyatterrs.Wrap(gyatterrs.IoError, "objstore.List", err)
		}
		for _, sub := range subEntries {
			if sub.IsDir() || len(sub.Name()) != 38 {
				continue
			}
			id, err := objhash.Parse(top.Name() + sub.Name())
			if err != nil {
				continue // not a well-formed object file; ignore stray entries
			}
			if err := fn(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// PutBlob, PutTree, and PutCommit are typed convenience wrappers around Put
// that also perform the encode step.
func (s *Store) PutBlob(b Blob) (objhash.Hash, error) { return s.Put(TypeBlob, EncodeBlob(b)) }

func (s *Store) PutTree(t Tree) (objhash.Hash, error) { return s.Put(TypeTree, EncodeTree(t)) }

func (s *Store) PutCommit(c Commit) (objhash.Hash, error) { return s.Put(TypeCommit, EncodeCommit(c)) }

// GetBlob, GetTree, and GetCommit read and decode a specific object kind,
// failing with CorruptObject if the stored type tag does not match.
func (s *Store) GetBlob(id objhash.Hash) (Blob, error) {
	typeTag, body, err := s.Get(id)
	if err != nil {
		return Blob{}, err
	}
	if typeTag != TypeBlob {
		return Blob{}, gyatterrs.New(gyatterrs.CorruptObject, "objstore.GetBlob: wrong type "+typeTag)
	}
	return DecodeBlob(body), nil
}

func (s *Store) GetTree(id objhash.Hash) (Tree, error) {
	typeTag, body, err := s.Get(id)
	if err != nil {
		return Tree{}, err
	}
	if typeTag != TypeTree {
		return Tree{}, gyatterrs.New(gyatterrs.CorruptObject, "objstore.GetTree: wrong type "+typeTag)
	}
	tree, err := DecodeTree(body)
	if err != nil {
		return Tree{}, errBadFormat("objstore.GetTree", err)
	}
	return tree, nil
}

func (s *Store) GetCommit(id objhash.Hash) (Commit, error) {
	typeTag, body, err := s.Get(id)
	if err != nil {
		return Commit{}, err
	}
	if typeTag != TypeCommit {
		return Commit{}, gyatterrs.New(gyatterrs.CorruptObject, "objstore.GetCommit: wrong type "+typeTag)
	}
	commit, err := DecodeCommit(body)
	if err != nil {
		return Commit{}, errBadFormat("objstore.GetCommit", err)
	}
	return commit, nil
}
