package testing

import (
	"os"
	"path/filepath"
	"testing"
)

// CreateTestWorkspace creates a temporary directory holding files, keyed by
// slash-separated path relative to the root. Returns the root.
// The directory is removed automatically via t.TempDir().
func CreateTestWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
	return root
}

// WriteFile writes content to rel under root, creating parent directories.
// Returns the absolute path.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
	return path
}
