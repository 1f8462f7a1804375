// SPDX-License-Identifier: MPL-2.0

// Package tasks is the global world-tick task queue. Mods schedule deferred
// work here; the host advances it once per world update.
package tasks

import (
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/addonbridge/addonbridge/internal/entity"
	"github.com/addonbridge/addonbridge/internal/modid"
)

// Queue schedules owner-tagged callbacks against the world clock.
type Queue struct {
	timers entity.Timers
	seq    uint64
}

// New returns an empty queue. Panicking tasks are logged to logger and
// dropped.
func New(logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	q := &Queue{}
	q.timers.OnPanic = func(owner modid.ID, name string, recovered any) {
		logger.Error("task panicked", "mod", owner, "task", name, "panic", recovered)
	}
	return q
}

// Add runs fn once after delay. An empty name gets a generated one; the
// returned name can be passed to Cancel.
func (q *Queue) Add(owner modid.ID, name string, delay time.Duration, fn func()) string {
	name = q.name(name)
	q.timers.Add(owner, name, delay, 0, fn)
	return name
}

// Every runs fn each period until cancelled or cleared.
func (q *Queue) Every(owner modid.ID, name string, period time.Duration, fn func()) string {
	name = q.name(name)
	q.timers.Add(owner, name, period, entity.Forever, fn)
	return name
}

// Cancel removes the named task.
func (q *Queue) Cancel(name string) bool {
	return q.timers.Remove(name)
}

// Tick advances the queue by diff and returns the number of tasks run.
func (q *Queue) Tick(diff time.Duration) int {
	return q.timers.Tick(diff)
}

// ClearOwner removes every task scheduled by owner.
func (q *Queue) ClearOwner(owner modid.ID) int {
	return q.timers.Clear(entity.OwnedBy(owner))
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	return q.timers.Len()
}

func (q *Queue) name(name string) string {
	if name != "" {
		return name
	}
	q.seq++
	return "task-" + strconv.FormatUint(q.seq, 10)
}
