// Package validation checks user supplied settings before they reach the
// file system: directories, output locations and glob patterns.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "<", ">"}

var restrictedPaths = []string{
	"/etc/",
	"/proc/",
	"/sys/",
	"/dev/",
	"/boot/",
}

// ValidatePath rejects empty paths, shell metacharacters and system
// directories.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	lower := strings.ToLower(clean) + "/"
	for _, restricted := range restrictedPaths {
		if strings.HasPrefix(lower, restricted) {
			return fmt.Errorf("access to restricted path denied: %s", path)
		}
	}

	return nil
}

// ValidateContained accepts a path that stays below its base directory:
// relative, and not climbing out with "..".
func ValidateContained(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("path must be relative: %s", path)
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path traversal detected: %s", path)
	}
	return nil
}

// ValidatePattern checks a doublestar glob.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("malformed glob pattern: %s", pattern)
	}
	return nil
}

// Inside reports whether target is dir itself or below it. Both are cleaned
// and compared lexically.
func Inside(dir, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(target))
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, "../"))
}
