package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the per-user and per-project state directory.
const DirName = ".tickframe"

// DBFile is the run database file name inside DirName.
const DBFile = "runs.db"

// GlobalPath returns the path to the global .tickframe directory.
// On Unix: ~/.tickframe
// On Windows: %USERPROFILE%\.tickframe
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalPath returns the path to the .tickframe directory under projectRoot.
func LocalPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// EnsureLocalDir creates <projectRoot>/.tickframe if it doesn't exist.
func EnsureLocalDir(projectRoot string) (string, error) {
	dir := LocalPath(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", DirName, err)
	}
	return dir, nil
}
