// Package objhash computes and encodes the content hash that names every
// object in the store: a 20-byte digest over a typed, length-prefixed
// payload. This is the SHA-1 scheme classical content-addressed VCSes use,
// carried here for its maturity and wide tooling support, not for any
// collision-resistance guarantee.
package objhash

import (
	"crypto/sha1" //nolint:gosec // 160-bit digest is the content-addressing scheme this format requires, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
)

// Size is the length in bytes of a content hash digest.
const Size = 20

// streamChunkSize is the fixed read size used by HashFile so large files are
// hashed without holding their full contents in memory.
const streamChunkSize = 64 * 1024

// Hash is a 20-byte content digest. Its zero value is not a valid hash.
type Hash [Size]byte

// String returns the lowercase 40-character hex form, the canonical
// identifier used throughout the rest of the engine.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first n hex characters of the hash (n defaults to 7 if
// out of [1,40] range), for compact display in CLI output.
func (h Hash) Short(n int) string {
	if n <= 0 || n > 40 {
		n = 7
	}
	return h.String()[:n]
}

// IsZero reports whether h is the zero hash (used to represent "no parent"
// / "no HEAD commit yet" without a pointer or separate boolean).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Parse decodes a 40-character lowercase hex string into a Hash. It fails
// with gyatterrs.BadHex when the length isn't 40 or the string contains
// non-hex characters.
func Parse(s string) (Hash, error) {
	if len(s) != 40 {
		return Hash{}, gyatterrs.New(gyatterrs.BadHex, fmt.Sprintf("objhash.Parse: length %d, want 40", len(s)))
	}
	var raw [Size]byte
	if _, err := hex.Decode(raw[:], []byte(s)); err != nil {
		return Hash{}, gyatterrs.Wrap(gyatterrs.BadHex, "objhash.Parse", err)
	}
	return Hash(raw), nil
}

// MustParse is Parse but panics on error; only safe for hashes known at
// compile time (tests, constants).
func MustParse(s string) Hash {
	h, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Sum computes the content hash of a typed payload: "<type> <decimal
// length>\0<raw bytes>". typeTag must be one of "blob", "tree", "commit".
func Sum(typeTag string, raw []byte) Hash {
	h := sha1.New() //nolint:gosec // see package doc
	fmt.Fprintf(h, "%s %d\x00", typeTag, len(raw))
	h.Write(raw)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// SumFile streams path in fixed-size chunks and returns the hash of the
// typed blob payload "blob <size>\0<content>" without holding the whole
// file in memory. size must be the exact byte length of the file (the
// caller typically obtains it from a prior os.Stat).
func SumFile(path string, size int64) (Hash, error) {
	//nolint:gosec // G304: path is caller-controlled, same trust boundary as os.ReadFile elsewhere in this engine
	f, err := os.Open(path)
	if err != nil {
		return Hash{}, gyatterrs.Wrap(gyatterrs.IoError, "objhash.SumFile", err)
	}
	defer f.Close()

	h := sha1.New() //nolint:gosec // see package doc
	fmt.Fprintf(h, "blob %d\x00", size)

	buf := make([]byte, streamChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return Hash{}, gyatterrs.Wrap(gyatterrs.IoError, "objhash.SumFile", err)
	}

	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}
