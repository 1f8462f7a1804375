// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestModuleName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"mods/scripts_tswow_bank.lua", "bank", true},
		{"/srv/scripts_tswow_quests.v2.lua", "quests", true},
		{"plain.lua", "plain", true},
		{"a.so", "", false},
		{"abcd", "", false},
		{"scripts_tswow_.lua", "", false},
	}
	for _, tt := range tests {
		got, ok := ModuleName(tt.path, DefaultPrefix)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ModuleName(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAllowListMissingFileAllowsAll(t *testing.T) {
	t.Parallel()

	p := NewAllowList(t.TempDir(), DefaultPrefix)
	ok, err := p.ShouldLoad("scripts_tswow_anything.lua")
	if err != nil || !ok {
		t.Fatalf("ShouldLoad = %v, %v; want true, nil", ok, err)
	}
}

func TestAllowList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, AllowListFile), []byte("bank\r\nquests\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := NewAllowList(dir, DefaultPrefix)

	tests := []struct {
		path string
		want bool
	}{
		{"scripts_tswow_bank.lua", true},
		{"scripts_tswow_quests.lua", true},
		{"scripts_tswow_arena.lua", false},
		{"x.so", false},
	}
	for _, tt := range tests {
		got, err := p.ShouldLoad(tt.path)
		if err != nil {
			t.Fatalf("ShouldLoad(%q): %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("ShouldLoad(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestAllowListUnreadable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory where the file should be cannot be read as a list.
	if err := os.Mkdir(filepath.Join(dir, AllowListFile), 0o755); err != nil {
		t.Fatal(err)
	}
	ok, err := NewAllowList(dir, DefaultPrefix).ShouldLoad("scripts_tswow_bank.lua")
	if ok || err == nil {
		t.Fatalf("ShouldLoad = %v, %v; want false and an error", ok, err)
	}
}
