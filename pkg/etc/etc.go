// Package etc discovers the ancillary configuration files handed to the
// server's populate function and optionally watches their directories.
package etc

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/marmos91/hostkit/internal/logger"
)

// Discover lists the regular files of each directory whose base name
// matches filter. An empty filter matches everything. Directories are
// scanned in order and not recursed; within one directory files are sorted
// by name. A file reached twice is returned once. Unreadable directories
// are logged and skipped.
func Discover(dirs []string, filter string) []string {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			logger.Warn("Invalid etc file filter, matching nothing", "filter", filter, logger.KeyError, err)
			return nil
		}
	}

	seen := make(map[string]bool)
	var files []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("Skipping etc directory", logger.KeyPath, dir, logger.KeyError, err)
			continue
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			if !Matches(filter, e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			path := filepath.Clean(filepath.Join(dir, name))
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if seen[path] {
				continue
			}
			seen[path] = true
			files = append(files, path)
		}
	}

	logger.Debug("Etc files discovered", logger.KeyCount, len(files))
	return files
}

// Matches reports whether the base name of path satisfies filter.
func Matches(filter, path string) bool {
	if filter == "" {
		return true
	}
	ok, err := filepath.Match(filter, filepath.Base(path))
	return err == nil && ok
}
