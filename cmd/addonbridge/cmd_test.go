// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/addonbridge/addonbridge/pkg/frame"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{Stdout: &stdout, Stderr: &stderr})
	root := NewRootCommand(app)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func writeConfig(t *testing.T, dataDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "addonbridge.cue")
	body := "data_dir: \"" + filepath.ToSlash(dataDir) + "\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFrameEncode(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "frame", "encode", "5", "616263")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, want := strings.TrimSpace(out), frame.MustEncode(5, []byte("abc")); got != want {
		t.Fatalf("encode = %q, want %q", got, want)
	}
}

func TestFrameEncodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "opcode not a number", args: []string{"frame", "encode", "x"}},
		{name: "opcode too large", args: []string{"frame", "encode", "65536"}},
		{name: "bad hex", args: []string{"frame", "encode", "1", "zz"}},
		{name: "payload too large", args: []string{"frame", "encode", "1", strings.Repeat("00", frame.MaxPayload+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := execute(t, tt.args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestFrameDecode(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "frame", "decode", "  "+frame.MustEncode(0x0102, []byte{0xde, 0xad}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(out, "258") || !strings.Contains(out, "dead") {
		t.Fatalf("decode output = %q", out)
	}

	_, err = execute(t, "frame", "decode", "hello there")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitNotAFrame {
		t.Fatalf("decode foreign text = %v, want exit %d", err, exitNotAFrame)
	}
	if !errors.Is(err, frame.ErrBadPreHeader) {
		t.Fatalf("decode foreign text = %v, want ErrBadPreHeader", err)
	}
}

func TestModsList(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	modsDir := filepath.Join(dataDir, "mods")
	if err := os.MkdirAll(modsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"scripts_tswow_alpha.lua", "scripts_tswow_beta.lua"} {
		if err := os.WriteFile(filepath.Join(modsDir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dataDir, "modules.txt"), []byte("alpha\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "--config", writeConfig(t, dataDir), "mods", "list")
	if err != nil {
		t.Fatalf("mods list: %v", err)
	}
	for _, want := range []string{"alpha", "beta", "not in allow-list"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	cfgPath := writeConfig(t, dataDir)
	out, err := execute(t, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{cfgPath, filepath.Join(dataDir, "mods"), "scripts_tswow_"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "addonbridge.cue")
	out, err := execute(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Created") {
		t.Fatalf("output = %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	out, err = execute(t, "config", "init", path)
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Fatalf("output = %q", out)
	}
}

func TestTemplatesImport(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	file := filepath.Join(t.TempDir(), "templates.toml")
	body := "[[item]]\nid = 25\nname = \"Worn Shortsword\"\n\n[[creature]]\nid = 299\nfaction = 32\n"
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "--config", writeConfig(t, dataDir), "templates", "import", file)
	if err != nil {
		t.Fatalf("templates import: %v", err)
	}
	if !strings.Contains(out, "1 items and 1 creatures") {
		t.Fatalf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "templates.db")); err != nil {
		t.Fatalf("store not created: %v", err)
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "addonbridge dev") {
		t.Fatalf("output = %q", out)
	}
}

func TestLogLevelFlag(t *testing.T) {
	t.Parallel()

	app := NewApp(Dependencies{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
	app.level = "loud"
	if _, err := app.newLogger(nil); err == nil {
		t.Fatal("expected an invalid level error")
	}
	app.level = "DEBUG"
	if _, err := app.newLogger(nil); err != nil {
		t.Fatalf("newLogger: %v", err)
	}
}
