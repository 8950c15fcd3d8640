package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizeForLookup creates a canonical path suitable for use as a map
// key or in comparisons. Symlinks are resolved when the path exists; on
// case-insensitive OSes the result is lowercased.
func NormalizeForLookup(path string) string {
	cleaned := filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(cleaned); err == nil {
		cleaned = resolved
	}

	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		return strings.ToLower(cleaned)
	}
	return cleaned
}
