package document

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSafeRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("some content"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := SafeRead(path)
	if err != nil {
		t.Fatalf("SafeRead = %v", err)
	}
	if got != "some content" {
		t.Fatalf("content = %q", got)
	}
}

func TestSafeReadRejectsBadPaths(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"", "   ", filepath.Join(dir, "missing.txt"), dir, empty} {
		if _, err := SafeRead(path); err == nil {
			t.Errorf("SafeRead(%q) should fail", path)
		}
	}
}
