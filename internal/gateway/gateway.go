// SPDX-License-Identifier: MPL-2.0

// Package gateway lets addon clients talk to the dev host over websocket.
// Each connection is one player. Every inbound text frame is treated as a
// self-addressed addon message; outbound addon messages are written back as
// "<prefix>\t<message>" text frames.
package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/addonbridge/addonbridge/internal/host"
	"github.com/addonbridge/addonbridge/internal/world"
)

const (
	outboxSize   = 64
	writeTimeout = 5 * time.Second
)

type (
	// HandleFunc is called on the host tick goroutine for every inbound
	// message.
	HandleFunc func(p *world.Player, raw string)

	// Options configures a Handler.
	Options struct {
		Host   *host.Host
		Handle HandleFunc
		Logger *log.Logger
	}

	// Handler is the websocket endpoint.
	Handler struct {
		host     *host.Host
		handle   HandleFunc
		logger   *log.Logger
		upgrader websocket.Upgrader
	}

	outbound struct {
		prefix string
		msg    string
	}
)

// New returns a websocket Handler.
func New(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Handler{
		host:   opts.Host,
		handle: opts.Handle,
		logger: opts.Logger.WithPrefix("gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades GET /ws?name=<player>&gm=<0|1> and runs the session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	gm := q.Get("gm") == "1" || q.Get("gm") == "true"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "player", name, "err", err)
		return
	}
	defer conn.Close()

	out := make(chan outbound, outboxSize)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p, err := h.host.Connect(ctx, name, gm, func(prefix, msg string, _ int) {
		select {
		case out <- outbound{prefix: prefix, msg: msg}:
		default:
			h.logger.Warn("outbox full, dropping addon message", "player", name)
		}
	})
	if err != nil {
		h.logger.Warn("connect failed", "player", name, "err", err)
		return
	}

	writerDone := make(chan struct{})
	go h.writeLoop(ctx, conn, out, writerDone)

	h.readLoop(ctx, conn, p)

	cancel()
	<-writerDone
	// The request context is gone by now; disconnect on a fresh one.
	dctx, dcancel := context.WithTimeout(context.Background(), writeTimeout)
	defer dcancel()
	if err := h.host.Disconnect(dctx, p); err != nil {
		h.logger.Debug("disconnect after stop", "player", name, "err", err)
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, p *world.Player) {
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("read failed", "player", p.Name(), "err", err)
			}
			return
		}
		if kind != websocket.TextMessage || h.handle == nil {
			continue
		}
		raw := string(payload)
		if err := h.host.Do(ctx, func() { h.handle(p, raw) }); err != nil {
			h.logger.Debug("dispatch failed", "player", p.Name(), "err", err)
			return
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan outbound, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case m := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m.prefix+"\t"+m.msg)); err != nil {
				h.logger.Debug("write failed", "err", err)
				_ = conn.Close()
				return
			}
		}
	}
}
