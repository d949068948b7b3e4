package objhash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
)

// helloBlobHex is the canonical digest of the typed payload
// "blob 6\x00hello\n", pinned so the scheme can never drift silently.
const helloBlobHex = "ce013625030ba8dba906f756967f9e9ca394464a"

func TestSum_KnownVector(t *testing.T) {
	got := Sum("blob", []byte("hello\n"))
	if got.String() != helloBlobHex {
		t.Fatalf("Sum = %s, want %s", got, helloBlobHex)
	}
}

func TestSum_Deterministic(t *testing.T) {
	a := Sum("tree", []byte("payload"))
	b := Sum("tree", []byte("payload"))
	if a != b {
		t.Fatalf("Sum not deterministic: %s vs %s", a, b)
	}
	if a == Sum("commit", []byte("payload")) {
		t.Fatalf("different type tags must produce different digests")
	}
}

func TestSumFile_MatchesSum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	content := strings.Repeat("0123456789abcdef", 16*1024) // spans multiple stream chunks
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := SumFile(path, int64(len(content)))
	if err != nil {
		t.Fatalf("SumFile: %v", err)
	}
	if want := Sum("blob", []byte(content)); got != want {
		t.Fatalf("SumFile = %s, want %s", got, want)
	}
}

func TestSumFile_MissingFile(t *testing.T) {
	_, err := SumFile(filepath.Join(t.TempDir(), "nope"), 0)
	if !gyatterrs.Is(err, gyatterrs.IoError) {
		t.Fatalf("expected IoError, got %v", err)
	}
}

func TestParse_RoundTripAndErrors(t *testing.T) {
	h, err := Parse(helloBlobHex)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.String() != helloBlobHex {
		t.Fatalf("round trip = %s, want %s", h, helloBlobHex)
	}

	for _, bad := range []string{"", "abc", helloBlobHex + "00", strings.Replace(helloBlobHex, "c", "z", 1)} {
		if _, err := Parse(bad); !gyatterrs.Is(err, gyatterrs.BadHex) {
			t.Errorf("Parse(%q) error = %v, want BadHex", bad, err)
		}
	}
}

func TestShort(t *testing.T) {
	h := MustParse(helloBlobHex)
	if got := h.Short(7); got != helloBlobHex[:7] {
		t.Errorf("Short(7) = %q", got)
	}
	if got := h.Short(0); got != helloBlobHex[:7] {
		t.Errorf("Short(0) should default to 7 chars, got %q", got)
	}
}

func TestIsZero(t *testing.T) {
	var zero Hash
	if !zero.IsZero() {
		t.Errorf("zero value should report IsZero")
	}
	if MustParse(helloBlobHex).IsZero() {
		t.Errorf("non-zero hash misreported as zero")
	}
}
