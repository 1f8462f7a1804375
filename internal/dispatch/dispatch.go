// SPDX-License-Identifier: MPL-2.0

// Package dispatch is the entry point for self-addressed addon messages. It
// answers GM debug commands, decodes protocol frames and delivers their
// payloads to the listeners registered for the opcode.
package dispatch

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/addonbridge/addonbridge/internal/events"
	"github.com/addonbridge/addonbridge/internal/registry"
	"github.com/addonbridge/addonbridge/pkg/frame"
)

// Dispatch outcomes.
const (
	// OutcomeSenderMismatch is a message not addressed to its own sender.
	OutcomeSenderMismatch Outcome = iota
	// OutcomeGM is a GM debug command.
	OutcomeGM
	// OutcomeForeign is addon traffic that is not this protocol.
	OutcomeForeign
	// OutcomeRejected is protocol traffic that failed to decode.
	OutcomeRejected
	// OutcomeUnknownOpcode is a frame for an opcode beyond the registry.
	OutcomeUnknownOpcode
	// OutcomeInvalid is a frame for a disabled opcode or with the wrong size.
	OutcomeInvalid
	// OutcomeDelivered is a frame that reached its listeners.
	OutcomeDelivered
)

type (
	// Sender is the player a message came from.
	Sender = registry.Sender

	// Outcome classifies what happened to one addon message.
	Outcome int

	// Result reports one dispatch.
	Result struct {
		Outcome Outcome
		// Handled is the value reported back to the host: true means the
		// message was consumed by the bridge.
		Handled bool
		Opcode  uint16
		// Listeners is the number of listeners invoked.
		Listeners int
		// Err is the decode error for foreign and rejected messages.
		Err error
	}

	// Options configures a Dispatcher.
	Options struct {
		Registry *registry.Registry
		Bus      *events.Bus
		GM       *GMCommands
		Logger   *log.Logger
	}

	// Dispatcher routes addon messages into the registry.
	Dispatcher struct {
		registry *registry.Registry
		bus      *events.Bus
		gm       *GMCommands
		logger   *log.Logger
	}
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSenderMismatch:
		return "sender_mismatch"
	case OutcomeGM:
		return "gm"
	case OutcomeForeign:
		return "foreign"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnknownOpcode:
		return "unknown_opcode"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeDelivered:
		return "delivered"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// New returns a Dispatcher. A nil registry is replaced by an empty one.
func New(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}
	return &Dispatcher{
		registry: opts.Registry,
		bus:      opts.Bus,
		gm:       opts.GM,
		logger:   opts.Logger.WithPrefix("dispatch"),
	}
}

// OnAddonMessage is the host hook for addon messages. It reports whether the
// bridge consumed the message.
func (d *Dispatcher) OnAddonMessage(sender, receiver Sender, raw string) bool {
	return d.Dispatch(sender, receiver, raw).Handled
}

// Dispatch handles one addon message and reports what happened.
func (d *Dispatcher) Dispatch(sender, receiver Sender, raw string) Result {
	if sender == nil || sender != receiver {
		d.logger.Debug("sender is not the receiver")
		return Result{Outcome: OutcomeSenderMismatch}
	}

	if d.gm != nil && d.gm.Handle(sender, receiver, raw) {
		return Result{Outcome: OutcomeGM, Handled: true}
	}

	decoded, err := frame.Unframe(raw)
	if err != nil {
		return d.reject(sender, err)
	}

	if d.bus != nil {
		d.bus.Fire(events.AddonMessage{Sender: sender, Data: slices.Clone(decoded)})
	}

	f, err := frame.Parse(decoded)
	if err != nil {
		return d.reject(sender, err)
	}

	if int(f.Opcode) >= d.registry.Size() {
		d.logger.Debug("invalid opcode", "opcode", f.Opcode, "size", d.registry.Size())
		return Result{Outcome: OutcomeUnknownOpcode, Handled: true, Opcode: f.Opcode}
	}

	desc := d.registry.Lookup(f.Opcode)
	if !desc.Enabled || desc.Size != len(f.Payload) {
		d.logger.Debug("invalid message size",
			"opcode", f.Opcode, "got", len(f.Payload)+frame.HeaderSize,
			"want", desc.Size+frame.HeaderSize, "enabled", desc.Enabled)
		return Result{Outcome: OutcomeInvalid, Handled: true, Opcode: f.Opcode}
	}

	n := d.deliver(sender, f, desc)
	return Result{Outcome: OutcomeDelivered, Handled: true, Opcode: f.Opcode, Listeners: n}
}

func (d *Dispatcher) reject(sender Sender, err error) Result {
	if frame.IsForeign(err) {
		return Result{Outcome: OutcomeForeign, Err: err}
	}
	switch frame.KindOf(err) {
	case frame.KindBadPostHeader, frame.KindPayloadTooLarge:
		d.logger.Error("rejected addon message", "player", sender.Name(), "err", err)
	default:
		d.logger.Debug("rejected addon message", "player", sender.Name(), "err", err)
	}
	return Result{Outcome: OutcomeRejected, Err: err}
}

// deliver constructs the payload once and hands it to a snapshot of the
// listeners. Constructor and listener panics are logged and contained.
func (d *Dispatcher) deliver(sender Sender, f frame.Frame, desc *registry.Descriptor) int {
	listeners := slices.Clone(desc.Listeners)
	payload, ok := d.construct(f, desc.Construct)
	if !ok {
		return 0
	}
	n := 0
	for _, l := range listeners {
		d.call(sender, f.Opcode, l, payload)
		n++
	}
	return n
}

func (d *Dispatcher) construct(f frame.Frame, ctor registry.Constructor) (payload any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("message constructor panicked", "opcode", f.Opcode, "panic", r)
			ok = false
		}
	}()
	if ctor == nil {
		ctor = registry.Identity
	}
	return ctor(slices.Clone(f.Payload)), true
}

func (d *Dispatcher) call(sender Sender, opcode uint16, l registry.Listener, payload any) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("message listener panicked", "opcode", opcode, "player", sender.Name(), "panic", r)
		}
	}()
	l(sender, payload)
}
