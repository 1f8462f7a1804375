// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPrefix is the filename prefix mod scripts carry.
const DefaultPrefix = "scripts_tswow_"

// AllowListFile is the allow-list filename looked up in the data directory.
const AllowListFile = "modules.txt"

type (
	// Policy decides whether a discovered mod script is loaded.
	Policy interface {
		ShouldLoad(path string) (bool, error)
	}

	// PolicyFunc adapts a function to Policy.
	PolicyFunc func(path string) (bool, error)

	// AllowList admits the mods named in File, one name per line. A missing
	// file admits every mod.
	AllowList struct {
		File   string
		Prefix string
	}
)

// ShouldLoad implements Policy.
func (f PolicyFunc) ShouldLoad(path string) (bool, error) {
	return f(path)
}

// AllowAll admits every mod.
func AllowAll() Policy {
	return PolicyFunc(func(string) (bool, error) { return true, nil })
}

// NewAllowList returns the allow-list policy rooted at dataDir.
func NewAllowList(dataDir, prefix string) AllowList {
	return AllowList{File: filepath.Join(dataDir, AllowListFile), Prefix: prefix}
}

// ShouldLoad implements Policy.
func (a AllowList) ShouldLoad(path string) (bool, error) {
	name, ok := ModuleName(path, a.Prefix)
	if !ok {
		return false, nil
	}

	f, err := os.Open(a.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == name {
			return true, nil
		}
	}
	return false, sc.Err()
}

// ModuleName derives the mod name from a script path: the base filename with
// everything up to and including prefix removed, cut at the first '.'. Base
// names of four characters or fewer are rejected.
func ModuleName(path, prefix string) (string, bool) {
	base := filepath.Base(path)
	if len(base) <= 4 {
		return "", false
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if _, after, found := strings.Cut(base, prefix); found {
		base = after
	}
	name, _, _ := strings.Cut(base, ".")
	if name == "" {
		return "", false
	}
	return name, true
}
