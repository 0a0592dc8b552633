// Package workspace prepares the process environment for launching MCP
// server subprocesses.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Prepare makes root the working directory and puts it first on PATH, so
// relative paths and server commands resolve from the project root.
func Prepare(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}
	if err := os.Chdir(abs); err != nil {
		return fmt.Errorf("changing to project root: %w", err)
	}

	path := os.Getenv("PATH")
	for _, dir := range filepath.SplitList(path) {
		if dir == abs {
			return nil
		}
	}
	if path == "" {
		return os.Setenv("PATH", abs)
	}
	return os.Setenv("PATH", strings.Join([]string{abs, path}, string(os.PathListSeparator)))
}
