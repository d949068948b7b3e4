package objstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/objhash"
)

// Object type tags, used verbatim as the envelope's type field.
const (
	TypeBlob   = "blob"
	TypeTree   = "tree"
	TypeCommit = "commit"
)

// Mode constants for tree entries. A mode's value, not a sidecar byte,
// carries the child kind: ModeTree implies a Tree child, anything else
// implies a Blob child.
const (
	ModeTree       uint32 = 0o040000
	ModeFile       uint32 = 0o100644
	ModeExecutable uint32 = 0o100755
)

// Blob is an opaque byte sequence; its value is file content.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry of a Tree: a single path component, its mode, and
// the hash of the child object the mode's bits identify as Blob or Tree.
type TreeEntry struct {
	Name string
	Mode uint32
	Hash objhash.Hash
}

// IsTree reports whether this entry's mode designates a subtree rather than a blob.
func (e TreeEntry) IsTree() bool { return e.Mode == ModeTree }

// Tree is an ordered set of entries, sorted by Name before hashing.
type Tree struct {
	Entries []TreeEntry
}

// Identity is an author or committer record: name, email, and the moment
// the identity acted, as a unix timestamp plus its original UTC-offset in
// minutes (so round-tripping through encode/decode reproduces the same
// timezone label rather than normalizing to the reader's local zone).
type Identity struct {
	Name            string
	Email           string
	When            time.Time
	TZOffsetMinutes int
}

// Commit is (tree_hash, parent_hash?, author, committer, message). Parent is
// the zero hash when absent (root commit).
type Commit struct {
	Tree      objhash.Hash
	Parent    objhash.Hash
	Author    Identity
	Committer Identity
	Message   string
}

// formatIdentity renders "Name <email> unix-seconds +-HHMM", the same shape
// real VCS signature lines use.
func formatIdentity(id Identity) string {
	return fmt.Sprintf("%s <%s> %d %s", id.Name, id.Email, id.When.Unix(), formatTZOffset(id.TZOffsetMinutes))
}

func formatTZOffset(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%02d%02d", sign, minutes/60, minutes%60)
}

// parseIdentity parses a "Name <email> unix-seconds +-HHMM" line, the
// inverse of formatIdentity.
func parseIdentity(line string) (Identity, error) {
	lt := strings.LastIndex(line, "<")
	gt := strings.LastIndex(line, ">")
	if lt < 0 || gt < 0 || gt < lt {
		return Identity{}, fmt.Errorf("malformed identity line %q", line)
	}
	name := strings.TrimSpace(line[:lt])
	email := line[lt+1 : gt]
	rest := strings.Fields(strings.TrimSpace(line[gt+1:]))
	if len(rest) != 2 {
		return Identity{}, fmt.Errorf("malformed identity line %q: want unix seconds and tz offset", line)
	}
	unixSecs, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("malformed identity timestamp %q: %w", rest[0], err)
	}
	offsetMinutes, err := parseTZOffset(rest[1])
	if err != nil {
		return Identity{}, fmt.Errorf("malformed identity tz offset %q: %w", rest[1], err)
	}
	return Identity{
		Name:            name,
		Email:           email,
		When:            time.Unix(unixSecs, 0).In(time.FixedZone("", offsetMinutes*60)),
		TZOffsetMinutes: offsetMinutes,
	}, nil
}

func parseTZOffset(s string) (int, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("expected +-HHMM, got %q", s)
	}
	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, err
	}
	mins, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, err
	}
	total := hours*60 + mins
	if s[0] == '-' {
		total = -total
	}
	return total, nil
}

// errBadFormat is a small helper for the frequent "CorruptObject, wrapping a
// plain parse error" case in the GetTree/GetCommit decode paths of store.go.
func errBadFormat(op string, err error) error {
	return gyatterrs.Wrap(gyatterrs.CorruptObject, op, err)
}
