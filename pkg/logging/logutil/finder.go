// Package logutil locates Canopy log files on disk.
package logutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/canopy/pkg/paths"
)

// FindComponentLogFile returns the latest log file written by the named
// component (e.g. "canopyd"). Component logs are date-suffixed files in
// the shared log directory.
func FindComponentLogFile(component string) (string, error) {
	dir := paths.LogDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	var latest os.FileInfo
	var latestPath string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), component+"-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == nil || info.ModTime().After(latest.ModTime()) {
			latest = info
			latestPath = filepath.Join(dir, entry.Name())
		}
	}

	if latest == nil {
		return "", fmt.Errorf("no log files for component %q in %s", component, dir)
	}
	return latestPath, nil
}

// FindLatestLogFile finds the most recently modified file in a directory.
// Prefers files with content over empty files.
func FindLatestLogFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	var latestFile os.FileInfo
	var latestPath string
	var latestNonEmptyFile os.FileInfo
	var latestNonEmptyPath string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latestFile == nil || info.ModTime().After(latestFile.ModTime()) {
			latestFile = info
			latestPath = filepath.Join(dir, entry.Name())
		}
		if info.Size() > 0 {
			if latestNonEmptyFile == nil || info.ModTime().After(latestNonEmptyFile.ModTime()) {
				latestNonEmptyFile = info
				latestNonEmptyPath = filepath.Join(dir, entry.Name())
			}
		}
	}

	// Prefer non-empty files
	if latestNonEmptyFile != nil {
		return latestNonEmptyPath, nil
	}

	if latestFile == nil {
		return "", fmt.Errorf("no log files found in %s", dir)
	}

	return latestPath, nil
}
