// SPDX-License-Identifier: MPL-2.0

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/addonbridge/addonbridge/internal/dispatch"
	"github.com/addonbridge/addonbridge/internal/host"
	"github.com/addonbridge/addonbridge/internal/world"
)

func startGateway(t *testing.T, handle HandleFunc) (*httptest.Server, *host.Host) {
	t.Helper()
	h := host.New(host.Options{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()

	srv := httptest.NewServer(New(Options{Host: h, Handle: handle}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGMRoundTrip(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.Options{GM: dispatch.NewGMCommands(nil, nil)})
	srv, _ := startGateway(t, func(p *world.Player, raw string) {
		d.OnAddonMessage(p, p, raw)
	})

	conn := dial(t, srv, "name=alice&gm=1")
	if err := conn.WriteMessage(websocket.TextMessage, []byte("\x01tswow_am_i_gm")); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "\ttswow_you_are_gm" {
		t.Fatalf("reply = %q", msg)
	}
}

func TestPlayerLifecycle(t *testing.T) {
	t.Parallel()

	srv, h := startGateway(t, nil)
	conn := dial(t, srv, "name=bob")

	waitFor(t, func() bool {
		var ok bool
		_ = h.Do(context.Background(), func() { _, ok = h.World().Player("bob") })
		return ok
	})

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	waitFor(t, func() bool {
		var ok bool
		_ = h.Do(context.Background(), func() { _, ok = h.World().Player("bob") })
		return !ok
	})
}

func TestMissingName(t *testing.T) {
	t.Parallel()

	srv, _ := startGateway(t, nil)
	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
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
