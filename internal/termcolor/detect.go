package termcolor

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether the given file descriptor refers to a terminal.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd)) //nolint:gosec // G115: fd comes from os.File.Fd(); safe on all supported platforms
}

// ShouldColorize reports whether color output should be enabled for f.
// GYATT_COLOR, when set to "never", disables color the same way NO_COLOR
// does; any other GYATT_COLOR value is ignored here since --color already
// covers explicit opt-in (see parseGlobalFlags). Otherwise color is enabled
// when f is a terminal and NO_COLOR is not set. See https://no-color.org/.
func ShouldColorize(f *os.File) bool {
	if v, ok := os.LookupEnv("GYATT_COLOR"); ok && v == "never" {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return IsTerminal(f.Fd())
}
