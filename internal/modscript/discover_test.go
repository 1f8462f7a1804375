// SPDX-License-Identifier: MPL-2.0

package modscript

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"scripts_tswow_b.lua", "scripts_tswow_a.lua", "scripts_tswow_a.toml", "other.lua"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "scripts_tswow_dir.lua"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(dir, prefix)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "scripts_tswow_a.lua"), filepath.Join(dir, "scripts_tswow_b.lua")}
	if !slices.Equal(got, want) {
		t.Fatalf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	t.Parallel()

	got, err := Discover(filepath.Join(t.TempDir(), "absent"), prefix)
	if err != nil || len(got) != 0 {
		t.Fatalf("Discover = %v, %v", got, err)
	}
}

func TestEscapeGlob(t *testing.T) {
	t.Parallel()

	if got := escapeGlob("a*b[c]"); got != `a\*b\[c\]` {
		t.Fatalf("escapeGlob = %q", got)
	}
}
