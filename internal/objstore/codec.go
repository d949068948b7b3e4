package objstore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gyattvc/gyatt/internal/objhash"
)

// EncodeBlob returns the raw payload bytes for a Blob (just its data; the
// envelope wrapper is added by Store.Put, not by the encoder, mirroring how
// tree/commit encoders below return only the body).
func EncodeBlob(b Blob) []byte {
	return b.Data
}

// DecodeBlob is the identity decode: a Blob's body is its raw bytes.
func DecodeBlob(body []byte) Blob {
	return Blob{Data: append([]byte(nil), body...)}
}

// EncodeTree renders a Tree's canonical textual encoding: entries sorted by
// Name, each "<octal-mode> <name>\0<20-byte-hash>".
func EncodeTree(t Tree) []byte {
	entries := append([]TreeEntry(nil), t.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%o %s\x00", e.Mode, e.Name)
		h := e.Hash
		buf.Write(h[:])
	}
	return buf.Bytes()
}

// DecodeTree parses a tree object body produced by EncodeTree.
func DecodeTree(body []byte) (Tree, error) {
	var tree Tree
	r := bytes.NewReader(body)

	for {
		modeStr, err := readUntil(r, ' ')
		if err == io.EOF && modeStr == "" {
			break
		}
		if err != nil {
			return Tree{}, fmt.Errorf("reading mode: %w", err)
		}
		mode, err := strconv.ParseUint(modeStr, 8, 32)
		if err != nil {
			return Tree{}, fmt.Errorf("invalid octal mode %q: %w", modeStr, err)
		}

		name, err := readUntil(r, 0)
		if err != nil {
			return Tree{}, fmt.Errorf("reading name: %w", err)
		}

		var rawHash [objhash.Size]byte
		if _, err := io.ReadFull(r, rawHash[:]); err != nil {
			return Tree{}, fmt.Errorf("reading child hash: %w", err)
		}

		tree.Entries = append(tree.Entries, TreeEntry{
			Name: name,
			Mode: uint32(mode),
			Hash: objhash.Hash(rawHash),
		})
	}

	return tree, nil
}

// readUntil reads bytes from r up to (not including) delim, returning
// io.EOF only when zero bytes were read before the stream ended.
func readUntil(r *bytes.Reader, delim byte) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			if sb.Len() == 0 {
				return "", io.EOF
			}
			return "", fmt.Errorf("unexpected end of stream looking for delimiter %q", delim)
		}
		if b == delim {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// EncodeCommit renders a Commit's canonical textual encoding: "tree <h>",
// optional "parent <h>", "author <identity>", "committer <identity>", a
// blank line, then the message terminated by a trailing newline.
func EncodeCommit(c Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	if !c.Parent.IsZero() {
		fmt.Fprintf(&buf, "parent %s\n", c.Parent)
	}
	fmt.Fprintf(&buf, "author %s\n", formatIdentity(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", formatIdentity(c.Committer))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	if !strings.HasSuffix(c.Message, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DecodeCommit parses a commit object body produced by EncodeCommit.
func DecodeCommit(body []byte) (Commit, error) {
	var c Commit
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	inMessage := false
	var messageLines []string
	sawTree := false

	for sc.Scan() {
		line := sc.Text()

		if inMessage {
			messageLines = append(messageLines, line)
			continue
		}
		if line == "" {
			inMessage = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "tree "):
			h, err := objhash.Parse(strings.TrimPrefix(line, "tree "))
			if err != nil {
				return Commit{}, fmt.Errorf("invalid tree hash: %w", err)
			}
			c.Tree = h
			sawTree = true
		case strings.HasPrefix(line, "parent "):
			h, err := objhash.Parse(strings.TrimPrefix(line, "parent "))
			if err != nil {
				return Commit{}, fmt.Errorf("invalid parent hash: %w", err)
			}
			c.Parent = h
		case strings.HasPrefix(line, "author "):
			id, err := parseIdentity(strings.TrimPrefix(line, "author "))
			if err != nil {
				return Commit{}, fmt.Errorf("invalid author: %w", err)
			}
			c.Author = id
		case strings.HasPrefix(line, "committer "):
			id, err := parseIdentity(strings.TrimPrefix(line, "committer "))
			if err != nil {
				return Commit{}, fmt.Errorf("invalid committer: %w", err)
			}
			c.Committer = id
		default:
			return Commit{}, fmt.Errorf("unrecognized commit header line %q", line)
		}
	}
	if err := sc.Err(); err != nil {
		return Commit{}, err
	}
	if !sawTree {
		return Commit{}, fmt.Errorf("commit missing tree line")
	}

	c.Message = strings.Join(messageLines, "\n")
	if len(messageLines) > 0 {
		c.Message += "\n"
	}
	return c, nil
}
