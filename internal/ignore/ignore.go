// Package ignore implements the glob-pattern matcher read from a single
// root-level .gyattignore file. It is the sole owner of .gyattignore files.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
)

// MetadataDirName is the name of the repository's metadata directory.
// It is always implicitly ignored, regardless of .gyattignore content.
const MetadataDirName = ".gyatt"

// IgnoreFileName is the pattern file this engine reads. The file is owned
// by the engine itself and, like the metadata directory, is implicitly
// ignored rather than reported as untracked user content.
const IgnoreFileName = ".gyattignore"

// DefaultIgnoreContent is written at init time: the metadata directory,
// common build artifacts, and editor cruft.
const DefaultIgnoreContent = `# gyatt
` + MetadataDirName + `/
*.o
*.obj
*.exe
*.out
*.log
/dist/
/build/
node_modules/
*.swp
*.swo
*~
.DS_Store
`

// pattern is a single parsed .gyattignore line.
type pattern struct {
	text    string // the glob pattern, leading '/' and trailing '/' stripped
	negated bool
	dirOnly bool
}

// Engine answers IsIgnored queries against the ordered pattern sequence
// read from the repository's root .gyattignore. Later patterns override
// earlier ones; it holds no hierarchical per-directory state, unlike the
// multi-file model this package is adapted from.
type Engine struct {
	patterns []pattern
}

// Load reads workDir/.gyattignore. A missing file yields an Engine with no
// patterns (the metadata directory is still implicitly ignored).
func Load(workDir string) (*Engine, error) {
	path := filepath.Join(workDir, IgnoreFileName)
	f, err := os.Open(path) //nolint:gosec // G304: fixed filename within the repository root
	if err != nil {
		if os.IsNotExist(err) {
			return &Engine{}, nil
		}
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "ignore.Load", err)
	}
	defer f.Close()

	e := &Engine{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p, ok := parseLine(scanner.Text()); ok {
			e.patterns = append(e.patterns, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "ignore.Load", err)
	}
	return e, nil
}

// WriteDefault creates workDir/.gyattignore with DefaultIgnoreContent if it
// does not already exist (called by repo init).
func WriteDefault(workDir string) error {
	path := filepath.Join(workDir, IgnoreFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(DefaultIgnoreContent), 0o644); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "ignore.WriteDefault", err)
	}
	return nil
}

func parseLine(line string) (pattern, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || line[0] == '#' {
		return pattern{}, false
	}

	var p pattern
	if line[0] == '!' {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return pattern{}, false
	}

	p.text = line
	return p, true
}

// IsIgnored reports whether relPath (forward-slash separated, relative to
// the repository root) should be ignored. isDir indicates whether relPath
// names a directory. The metadata directory is always ignored regardless
// of pattern content.
//
// A match succeeds iff a pattern matches the full relative path or any of
// its directory prefixes; later patterns override earlier ones.
func (e *Engine) IsIgnored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == MetadataDirName || strings.HasPrefix(relPath, MetadataDirName+"/") {
		return true
	}
	if relPath == IgnoreFileName {
		return true
	}

	ignored := false
	for _, p := range e.patterns {
		if matches(p, relPath, isDir) {
			ignored = !p.negated
		}
	}
	return ignored
}

// matches checks whether p matches the full relative path or any
// directory prefix of it: a dirOnly pattern is tested only against relPath's
// directory-prefix segments (it can never match a leaf file directly, but
// a file nested under a matched directory is still caught); any other
// pattern is tested against the full path, the basename, and every
// directory-prefix segment.
func matches(p pattern, relPath string, isDir bool) bool {
	segments := strings.Split(relPath, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		isLast := i == len(segments)-1
		if p.dirOnly && isLast && !isDir {
			continue // the leaf itself is a file; a dirOnly pattern cannot match it directly
		}
		if matchOne(p.text, prefix) {
			return true
		}
		if isLast && matchOne(p.text, segments[i]) {
			return true
		}
	}
	return false
}

// matchOne matches a single shell-glob pattern (*, ?, [set], and the
// non-standard ** segment wildcard) against a candidate string.
func matchOne(patText, candidate string) bool {
	if !strings.Contains(patText, "**") {
		matched, _ := filepath.Match(patText, candidate)
		return matched
	}
	return matchSegments(strings.Split(patText, "/"), strings.Split(candidate, "/"))
}

// matchSegments recursively matches pattern segments against path
// segments, treating "**" as zero-or-more path components.
func matchSegments(patParts, nameParts []string) bool {
	pi, ni := 0, 0
	for pi < len(patParts) && ni < len(nameParts) {
		if patParts[pi] == "**" {
			pi++
			if pi >= len(patParts) {
				return true
			}
			for tryNi := ni; tryNi <= len(nameParts); tryNi++ {
				if matchSegments(patParts[pi:], nameParts[tryNi:]) {
					return true
				}
			}
			return false
		}
		matched, _ := filepath.Match(patParts[pi], nameParts[ni])
		if !matched {
			return false
		}
		pi++
		ni++
	}
	for pi < len(patParts) {
		if patParts[pi] != "**" {
			return false
		}
		pi++
	}
	return ni >= len(nameParts)
}
