// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/addonbridge/addonbridge/internal/config"
	"github.com/addonbridge/addonbridge/internal/lifecycle"
	"github.com/addonbridge/addonbridge/internal/testutil"
	"github.com/addonbridge/addonbridge/pkg/frame"
)

const echoScript = `
bridge.register(5, 3)
bridge.listen(5, function(sender, payload)
  bridge.reply(sender, "echo:" .. payload)
end)
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Gateway.Addr = "127.0.0.1:0"
	cfg.Tick.Interval = 10 * time.Millisecond
	cfg.Watch.Enabled = false
	if err := os.MkdirAll(cfg.ModsPath(), 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func writeScript(t *testing.T, cfg *config.Config, name, body string) string {
	t.Helper()
	path := filepath.Join(cfg.ModsPath(), cfg.ScriptPrefix+name+".lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	logger, _ := testutil.CaptureLogger()
	s, err := New(context.Background(), Options{Config: cfg, Logger: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func run(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	waitFor(t, func() bool { return s.Addr() != nil })
}

func state(t *testing.T, s *Server, name string) lifecycle.State {
	t.Helper()
	var st lifecycle.State
	if err := s.Host().Do(context.Background(), func() {
		rec, _ := s.Manager().Record(name)
		st = rec.State
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	return st
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestLoadAllHonorsAllowList(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeScript(t, cfg, "bank", echoScript)
	writeScript(t, cfg, "chat", "")
	if err := os.WriteFile(filepath.Join(cfg.DataDir, lifecycle.AllowListFile), []byte("bank\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newServer(t, cfg)
	results, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	byName := map[string]LoadResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if r := byName["bank"]; !r.Allowed || r.Err != nil || r.Record.State != lifecycle.StateLoaded {
		t.Errorf("bank = %+v", r)
	}
	if r := byName["chat"]; r.Allowed || r.Record.State != lifecycle.StateUnknown {
		t.Errorf("chat = %+v", r)
	}
}

func TestLoadAllReportsScriptErrors(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeScript(t, cfg, "broken", "this is not lua")
	writeScript(t, cfg, "fine", "")

	results, err := newServer(t, cfg).LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Err == nil || results[1].Err != nil {
		t.Fatalf("results = %+v", results)
	}
}

func TestGatewayRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeScript(t, cfg, "echo", echoScript)
	s := newServer(t, cfg)
	if _, err := s.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	run(t, s)

	url := "ws://" + s.Addr().String() + "/ws?name=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame.MustEncode(5, []byte("abc")))); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "echo\techo:abc" {
		t.Fatalf("reply = %q", msg)
	}
}

func TestScriptsChanged(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	s := newServer(t, cfg)
	run(t, s)
	ctx := context.Background()

	path := writeScript(t, cfg, "hot", "")
	if err := s.ScriptsChanged(ctx, []string{filepath.Base(path)}); err != nil {
		t.Fatalf("ScriptsChanged(create): %v", err)
	}
	if st := state(t, s, "hot"); st != lifecycle.StateLoaded {
		t.Fatalf("after create: %v", st)
	}

	// A manifest change reloads the same mod.
	if err := s.ScriptsChanged(ctx, []string{cfg.ScriptPrefix + "hot.toml"}); err != nil {
		t.Fatalf("ScriptsChanged(manifest): %v", err)
	}
	var reloads uint32
	_ = s.Host().Do(ctx, func() { rec, _ := s.Manager().Record("hot"); reloads = rec.Reloads })
	if reloads != 1 {
		t.Fatalf("reloads = %d", reloads)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := s.ScriptsChanged(ctx, []string{filepath.Base(path)}); err != nil {
		t.Fatalf("ScriptsChanged(remove): %v", err)
	}
	if st := state(t, s, "hot"); st != lifecycle.StateUnloaded {
		t.Fatalf("after remove: %v", st)
	}
}

func TestScriptsChangedReportsLoadFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	s := newServer(t, cfg)
	run(t, s)

	path := writeScript(t, cfg, "bad", `error("nope")`)
	err := s.ScriptsChanged(context.Background(), []string{filepath.Base(path)})
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("ScriptsChanged = %v", err)
	}
	if st := state(t, s, "bad"); st != lifecycle.StateFailed {
		t.Fatalf("state = %v", st)
	}
}

func TestWatcherHotReload(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Watch.Enabled = true
	cfg.Watch.Debounce = 30 * time.Millisecond
	s := newServer(t, cfg)
	run(t, s)
	time.Sleep(50 * time.Millisecond)

	writeScript(t, cfg, "live", "")
	waitFor(t, func() bool { return state(t, s, "live") == lifecycle.StateLoaded })
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := newServer(t, testConfig(t))
	run(t, s)
	status, err := httpGet("http://" + s.Addr().String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNoContent {
		t.Fatalf("status = %d", status)
	}
}

func httpGet(url string) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func TestRunListenFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	cfg := testConfig(t)
	cfg.Gateway.Addr = ln.Addr().String()
	s := newServer(t, cfg)
	if err := s.Run(context.Background()); !errors.Is(err, ErrListen) {
		t.Fatalf("Run = %v, want ErrListen", err)
	}
}
