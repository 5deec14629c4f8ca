package browser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LockFile is the single-instance lock Chromium keeps in a profile directory
const LockFile = "SingletonLock"

// companion files Chromium creates next to the lock
var singletonFiles = []string{LockFile, "SingletonCookie", "SingletonSocket"}

// LockPath returns the lock file path for a profile
func LockPath(profileDir string) string {
	return filepath.Join(profileDir, LockFile)
}

// LockOwner reports whether the profile is locked and, when the lock is a
// symlink as on Linux and macOS, the "<host>-<pid>" it points at.
func LockOwner(profileDir string) (string, bool) {
	path := LockPath(profileDir)
	if _, err := os.Lstat(path); err != nil {
		return "", false
	}
	owner, err := os.Readlink(path)
	if err != nil {
		return "", true
	}
	return owner, true
}

// RemoveStaleLock deletes the lock left behind by an unclean shutdown.
// It reports whether a lock was present. Only call it when no browser is
// using the profile.
func RemoveStaleLock(profileDir string) (bool, error) {
	_, locked := LockOwner(profileDir)

	for _, name := range singletonFiles {
		err := os.Remove(filepath.Join(profileDir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return locked, fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return locked, nil
}
