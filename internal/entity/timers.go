// SPDX-License-Identifier: MPL-2.0

package entity

import (
	"time"

	"github.com/addonbridge/addonbridge/internal/modid"
)

// Forever makes a timer repeat until it is removed or cleared.
const Forever = -1

type (
	timer struct {
		owner     modid.ID
		name      string
		delay     time.Duration
		remaining time.Duration
		repeats   int
		fn        func()
		dead      bool
	}

	// Timers is a collection of scheduled callbacks advanced by Tick. The
	// zero value is ready to use.
	Timers struct {
		list []*timer
		// OnPanic, when set, receives panics raised by timer callbacks. The
		// timer that panicked is removed.
		OnPanic func(owner modid.ID, name string, recovered any)
	}
)

// Add schedules fn to run after delay on behalf of owner. repeats is the
// number of additional runs after the first one; Forever repeats until
// removed. A timer added with an existing name replaces it.
func (t *Timers) Add(owner modid.ID, name string, delay time.Duration, repeats int, fn func()) {
	if fn == nil {
		return
	}
	if name != "" {
		t.Remove(name)
	}
	if delay < 0 {
		delay = 0
	}
	t.list = append(t.list, &timer{
		owner:     owner,
		name:      name,
		delay:     delay,
		remaining: delay,
		repeats:   repeats,
		fn:        fn,
	})
}

// Remove cancels the named timer.
func (t *Timers) Remove(name string) bool {
	for i, tm := range t.list {
		if tm.name == name && !tm.dead {
			tm.dead = true
			t.list = append(t.list[:i:i], t.list[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of scheduled timers.
func (t *Timers) Len() int {
	return len(t.list)
}

// Tick advances every timer by diff and runs those that are due. Callbacks
// may add, remove or clear timers; timers cleared during the tick do not run.
func (t *Timers) Tick(diff time.Duration) int {
	due := make([]*timer, 0, len(t.list))
	for _, tm := range t.list {
		tm.remaining -= diff
		if tm.remaining <= 0 {
			due = append(due, tm)
		}
	}

	ran := 0
	for _, tm := range due {
		if tm.dead {
			continue
		}
		ran++
		if !t.run(tm) {
			t.drop(tm)
			continue
		}
		switch {
		case tm.repeats == Forever:
			tm.remaining = tm.delay
		case tm.repeats > 0:
			tm.repeats--
			tm.remaining = tm.delay
		default:
			t.drop(tm)
		}
	}
	return ran
}

// Clear removes every timer in scope and returns how many were removed.
func (t *Timers) Clear(scope Scope) int {
	kept := t.list[:0:0]
	n := 0
	for _, tm := range t.list {
		if scope.Matches(tm.owner) {
			tm.dead = true
			n++
			continue
		}
		kept = append(kept, tm)
	}
	t.list = kept
	return n
}

func (t *Timers) run(tm *timer) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if t.OnPanic != nil {
				t.OnPanic(tm.owner, tm.name, r)
			}
		}
	}()
	tm.fn()
	return true
}

func (t *Timers) drop(tm *timer) {
	if tm.dead {
		return
	}
	tm.dead = true
	for i, other := range t.list {
		if other == tm {
			t.list = append(t.list[:i:i], t.list[i+1:]...)
			return
		}
	}
}
