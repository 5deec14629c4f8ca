package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ResolveOutputPath returns the absolute, cleaned form of path
func ResolveOutputPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("output path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path %q: %w", path, err)
	}
	return abs, nil
}

// EnsureParent creates the directory that will hold path
func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// TempPath names a unique sibling of target: <name>.<tag>-<uuid><ext>.
// Keeping it in the same directory keeps the final rename on one filesystem.
func TempPath(target, tag string) string {
	dir := filepath.Dir(target)
	ext := filepath.Ext(target)
	name := strings.TrimSuffix(filepath.Base(target), ext)
	return filepath.Join(dir, fmt.Sprintf("%s.%s-%s%s", name, tag, uuid.NewString(), ext))
}

// Commit renames tmp over target. tmp is removed if the rename fails.
func Commit(tmp, target string) error {
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(tmp), err)
	}
	return nil
}

// WriteAtomic copies r into target through a temporary sibling file
func WriteAtomic(target string, r io.Reader, perm os.FileMode) error {
	if err := EnsureParent(target); err != nil {
		return err
	}

	tempFile := TempPath(target, "tmp")
	out, err := os.OpenFile(tempFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	return Commit(tempFile, target)
}

// Manager hands out output paths inside one directory without clobbering
// files from earlier runs.
type Manager struct {
	outputDir string
	reserved  map[string]bool
	mu        sync.Mutex
}

// NewManager creates the output directory if needed
func NewManager(outputDir string) (*Manager, error) {
	abs, err := ResolveOutputPath(outputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir: abs,
		reserved:  make(map[string]bool),
	}, nil
}

// NextPath returns <dir>/<prefix>-NNN<ext> for the lowest NNN that is
// neither on disk nor already handed out by this manager.
func (m *Manager) NextPath(prefix, ext string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	for i := 1; ; i++ {
		candidate := filepath.Join(m.outputDir, fmt.Sprintf("%s-%03d%s", prefix, i, ext))
		if m.reserved[candidate] {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			continue
		}
		m.reserved[candidate] = true
		return candidate
	}
}

// GetOutputDir returns the absolute output directory
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// ReservedCount returns how many paths this manager has handed out
func (m *Manager) ReservedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reserved)
}
