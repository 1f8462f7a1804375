// SPDX-License-Identifier: MPL-2.0

package modscript

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover returns the sorted paths of every <prefix>*.lua script directly
// inside dir. A missing dir yields no scripts.
func Discover(dir, prefix string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	pattern := escapeGlob(prefix) + "*" + ScriptExt
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("discover scripts in %s: %w", dir, err)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
	}
	slices.Sort(paths)
	return paths, nil
}

// WatchPatterns returns the watcher globs matching scripts and manifests.
func WatchPatterns(prefix string) []string {
	p := escapeGlob(prefix)
	return []string{p + "*" + ScriptExt, p + "*" + ManifestExt}
}

func escapeGlob(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '{', '}', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
