// Package difftext computes diffs for the `diff` CLI verb at two levels:
// a structural tree-to-tree comparison (TreeDiff) classifying each changed
// path as added/modified/deleted, and a line-oriented unified-style
// rendering (Lines) between two byte buffers. Line diffs are grounded on
// the dolthub-dolt pack's direct dependency on
// github.com/sergi/go-diff/diffmatchpatch, used here exactly the way that
// library's own docs recommend: hash each line down to a single rune with
// DiffLinesToChars, run the Myers diff over those runes, then expand back
// with DiffCharsToLines.
package difftext

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Lines renders aContent -> bContent as "+"/"-"/" "-prefixed lines, labeled
// with aLabel/bLabel.
func Lines(aLabel, bLabel string, aContent, bContent []byte) string {
	dmp := diffmatchpatch.New()
	aChars, bChars, lineArray := dmp.DiffLinesToChars(string(aContent), string(bContent))
	diffs := dmp.DiffMain(aChars, bChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	b.WriteString("--- " + aLabel + "\n")
	b.WriteString("+++ " + bLabel + "\n")
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			if line == "" {
				continue
			}
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
