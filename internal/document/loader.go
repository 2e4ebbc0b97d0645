package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SafeRead loads a document for chat seeding. The path is normalized and the
// file must exist, be a regular file and be non-empty.
func SafeRead(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty document path")
	}

	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("document not accessible: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("document path is a directory: %s", clean)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", fmt.Errorf("document is empty: %s", clean)
	}
	return string(data), nil
}
