package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

var updateGolden = flag.Bool("update", false, "rewrite testdata/*.golden with the current output")

// Update reports whether golden files are being rewritten (go test -update).
func Update() bool {
	return *updateGolden
}

// GoldenString compares actual with testdata/<name>.golden, or rewrites
// the file when -update is set.
func GoldenString(t *testing.T, name, actual string) {
	t.Helper()

	path := filepath.Join("testdata", name+".golden")
	if Update() {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("create testdata: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		return
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v (run go test -update to create it)", path, err)
	}
	if actual != string(want) {
		t.Errorf("output differs from %s\n--- got ---\n%s\n--- want ---\n%s", path, actual, want)
	}
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*[A-Za-z]")

// StripANSI removes terminal color sequences.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}
