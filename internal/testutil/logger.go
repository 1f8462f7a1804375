// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

// Buffer is a concurrency-safe log sink for asserting on log output.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

type testWriter struct {
	t testing.TB
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Contains reports whether the output contains s.
func (b *Buffer) Contains(s string) bool {
	return strings.Contains(b.String(), s)
}

// CaptureLogger returns a debug-level logger writing plain text into a Buffer.
func CaptureLogger() (*log.Logger, *Buffer) {
	buf := &Buffer{}
	return log.NewWithOptions(buf, log.Options{Level: log.DebugLevel}), buf
}

// Logger returns a debug-level logger that writes through t.Log.
func Logger(t testing.TB) *log.Logger {
	t.Helper()
	return log.NewWithOptions(testWriter{t: t}, log.Options{Level: log.DebugLevel})
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
