// Package index implements the staging area: a flat path -> (hash, mode,
// size, mtime) map persisted as a little-endian binary file, written
// atomically via write-temp-then-rename. It is the sole owner of the index
// file; nothing outside this package writes it directly.
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/objhash"
)

const (
	magic   = "GYAT"
	version = uint32(1)
)

// Entry is one staged file: its repository-root-relative POSIX path, the
// hash of the blob already written to the object store, its mode, on-disk
// size, modification time (seconds since epoch, stored whole in its own
// 8-byte field rather than packed alongside the flags word), and a
// reserved flags word.
type Entry struct {
	Path  string
	Hash  objhash.Hash
	Mode  uint32
	Size  uint64
	Mtime uint64
	Flags uint32
}

// Index is the parsed staging area, plus a path -> *Entry lookup index.
type Index struct {
	path    string // the index file path this Index was loaded from / saves to
	entries map[string]*Entry
}

// Load reads the index file at path. A missing file yields an empty Index,
// not an error — a brand-new repository has no staging area to read yet.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the repository's own index file
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{path: path, entries: make(map[string]*Entry)}, nil
		}
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "index.Load", err)
	}

	idx, err := parse(data)
	if err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.CorruptIndex, "index.Load", err)
	}
	idx.path = path
	return idx, nil
}

func parse(data []byte) (*Index, error) {
	const headerSize = 4 + 4 + 4
	if len(data) < headerSize {
		return nil, fmt.Errorf("index file too short (%d bytes)", len(data))
	}
	if string(data[:4]) != magic {
		return nil, fmt.Errorf("bad magic: got %q, want %q", data[:4], magic)
	}
	ver := binary.LittleEndian.Uint32(data[4:8])
	if ver != version {
		return nil, fmt.Errorf("unsupported index version %d", ver)
	}
	count := binary.LittleEndian.Uint32(data[8:12])

	idx := &Index{entries: make(map[string]*Entry, count)}
	off := headerSize
	for i := uint32(0); i < count; i++ {
		e, consumed, err := parseEntry(data, off)
		if err != nil {
			return nil, fmt.Errorf("entry %d at offset %d: %w", i, off, err)
		}
		idx.entries[e.Path] = e
		off += consumed
	}
	return idx, nil
}

func parseEntry(data []byte, off int) (*Entry, int, error) {
	if off+2 > len(data) {
		return nil, 0, fmt.Errorf("not enough data for path length")
	}
	pathLen := int(binary.LittleEndian.Uint16(data[off : off+2]))
	off += 2

	fixedAfterPath := objhash.Size + 4 + 8 + 8 + 4
	if off+pathLen+fixedAfterPath > len(data) {
		return nil, 0, fmt.Errorf("entry extends beyond end of data")
	}

	path := string(data[off : off+pathLen])
	off += pathLen

	var rawHash [objhash.Size]byte
	copy(rawHash[:], data[off:off+objhash.Size])
	off += objhash.Size

	mode := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	size := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	mtime := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	flags := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	consumed := 2 + pathLen + fixedAfterPath
	return &Entry{
		Path:  path,
		Hash:  objhash.Hash(rawHash),
		Mode:  mode,
		Size:  size,
		Mtime: mtime,
		Flags: flags,
	}, consumed, nil
}

// Save writes the index atomically: entries sorted by path, written to a
// temp file in the same directory, then renamed over the destination.
func (idx *Index) Save() error {
	entries := idx.sortedEntries()

	var buf bytes.Buffer
	buf.WriteString(magic)
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], version)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(entries)))
	buf.Write(hdr[:])

	for _, e := range entries {
		var pathLen [2]byte
		binary.LittleEndian.PutUint16(pathLen[:], uint16(len(e.Path)))
		buf.Write(pathLen[:])
		buf.WriteString(e.Path)
		buf.Write(e.Hash[:])

		var fixed [4 + 8 + 8 + 4]byte
		binary.LittleEndian.PutUint32(fixed[0:4], e.Mode)
		binary.LittleEndian.PutUint64(fixed[4:12], e.Size)
		binary.LittleEndian.PutUint64(fixed[12:20], e.Mtime)
		binary.LittleEndian.PutUint32(fixed[20:24], e.Flags)
		buf.Write(fixed[:])
	}

	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "index.Save", err)
	}
	tmp, err := os.CreateTemp(dir, "index.tmp-*")
	if err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "index.Save", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // rename below removes the need on the success path

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return gyatterrs.Wrap(gyatterrs.IoError, "index.Save", err)
	}
	if err := tmp.Close(); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "index.Save", err)
	}
	if err := os.Rename(tmpName, idx.path); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "index.Save", err)
	}
	return nil
}

func (idx *Index) sortedEntries() []*Entry {
	out := make([]*Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Upsert inserts or replaces the entry for e.Path.
func (idx *Index) Upsert(e Entry) {
	cp := e
	idx.entries[e.Path] = &cp
}

// Remove deletes the entry at path, if any.
func (idx *Index) Remove(path string) {
	delete(idx.entries, path)
}

// Find returns the entry at path, or nil if not staged.
func (idx *Index) Find(path string) *Entry {
	return idx.entries[path]
}

// Entries returns all entries sorted by path.
func (idx *Index) Entries() []Entry {
	sorted := idx.sortedEntries()
	out := make([]Entry, len(sorted))
	for i, e := range sorted {
		out[i] = *e
	}
	return out
}

// Len returns the number of staged entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Clear removes every entry (used by the commit engine's clearing step).
func (idx *Index) Clear() {
	idx.entries = make(map[string]*Entry)
}
