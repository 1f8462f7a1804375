// SPDX-License-Identifier: MPL-2.0

// Package lifecycle loads, unloads and reloads mods. It hands out stable mod
// ids, keeps reload counters, and on unload revokes everything a mod owns:
// its opcodes, its event hooks, its queued tasks and its entity state.
//
// A Manager is not synchronized. The host calls it from its tick goroutine.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/addonbridge/addonbridge/internal/events"
	"github.com/addonbridge/addonbridge/internal/issue"
	"github.com/addonbridge/addonbridge/internal/modid"
	"github.com/addonbridge/addonbridge/internal/registry"
	"github.com/addonbridge/addonbridge/internal/sweep"
	"github.com/addonbridge/addonbridge/internal/tasks"
)

// Mod states.
const (
	StateUnknown State = iota
	StateLoaded
	StateUnloaded
	StateFailed
)

const tracerName = "github.com/addonbridge/addonbridge/internal/lifecycle"

var (
	// ErrUnknownMod is returned for names that were never loaded.
	ErrUnknownMod = errors.New("unknown mod")
	// ErrAlreadyLoaded is returned when loading a mod that is loaded.
	ErrAlreadyLoaded = errors.New("mod already loaded")
	// ErrNoEntryPoint is returned by loaders that cannot resolve a name.
	ErrNoEntryPoint = errors.New("no entry point for mod")
)

type (
	// State is a mod's position in the load/unload cycle.
	State int

	// Record is the public view of one mod.
	Record struct {
		Name    string
		ID      modid.ID
		Reloads uint32
		State   State
	}

	// Options wires a Manager to the host components it acts on.
	Options struct {
		Registry  *registry.Registry
		Bus       *events.Bus
		World     sweep.World
		Tasks     *tasks.Queue
		Loader    Loader
		Policy    Policy
		SweepMode sweep.Mode
		Logger    *log.Logger
		Tracer    trace.Tracer
	}

	// Manager owns the per-name mod table.
	Manager struct {
		opts   Options
		logger *log.Logger
		tracer trace.Tracer
		mods   map[string]*mod
		byID   []*mod
	}

	mod struct {
		record Record
		set    *events.HandlerSet
	}

	panicError struct {
		value any
	}
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateLoaded:
		return "loaded"
	case StateUnloaded:
		return "unloaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("entry point panicked: %v", e.value)
}

// NewManager returns a Manager. Missing registry, bus and task queue are
// created empty; a missing policy admits everything.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus(opts.Logger)
	}
	if opts.Tasks == nil {
		opts.Tasks = tasks.New(opts.Logger)
	}
	if opts.Policy == nil {
		opts.Policy = AllowAll()
	}
	if opts.Loader == nil {
		opts.Loader = StaticLoader{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	return &Manager{
		opts:   opts,
		logger: opts.Logger.WithPrefix("lifecycle"),
		tracer: opts.Tracer,
		mods:   make(map[string]*mod),
	}
}

// Registry returns the opcode registry the manager revokes from.
func (m *Manager) Registry() *registry.Registry { return m.opts.Registry }

// Bus returns the event bus handler sets are created on.
func (m *Manager) Bus() *events.Bus { return m.opts.Bus }

// Tasks returns the world task queue.
func (m *Manager) Tasks() *tasks.Queue { return m.opts.Tasks }

// ShouldLoad reports whether the script at path passes the load policy.
func (m *Manager) ShouldLoad(path string) (bool, error) {
	return m.opts.Policy.ShouldLoad(path)
}

// Load runs the entry point of name. Previously seen names keep their id.
func (m *Manager) Load(ctx context.Context, name string) (Record, error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.load", trace.WithAttributes(attribute.String("mod.name", name)))
	defer span.End()

	md := m.lookupOrCreate(name)
	span.SetAttributes(attribute.Int64("mod.id", int64(md.record.ID)), attribute.Int64("mod.reloads", int64(md.record.Reloads)))
	if md.record.State == StateLoaded {
		return md.record, fmt.Errorf("%w: %s", ErrAlreadyLoaded, name)
	}

	ep, err := m.opts.Loader.Resolve(ctx, name)
	if err != nil {
		md.record.State = StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve")
		m.logger.Error("mod entry point not found", "mod", name, "err", err)
		return md.record, issue.NewErrorContext().
			WithOperation("load mod").
			WithResource(name).
			WithSuggestion("Check that the script exists in the mods directory").
			Wrap(err).
			BuildError()
	}

	md.set = m.opts.Bus.NewHandlerSet(md.record.ID)
	mc := &ModContext{
		id:       md.record.ID,
		name:     name,
		reloads:  md.record.Reloads,
		set:      md.set,
		registry: m.opts.Registry,
		tasks:    m.opts.Tasks,
		logger:   m.opts.Logger.WithPrefix("mod/" + name),
	}

	if err := run(ctx, ep, mc); err != nil {
		revoked := m.opts.Registry.Revoke(md.record.ID)
		hooks := md.set.Unload()
		m.opts.Tasks.ClearOwner(md.record.ID)
		md.set = nil
		md.record.State = StateFailed

		span.RecordError(err)
		span.SetStatus(codes.Error, "entry point")
		m.logger.Error("mod failed to load", "mod", name, "id", md.record.ID,
			"err", err, "revoked_opcodes", len(revoked), "revoked_hooks", hooks)
		return md.record, issue.NewErrorContext().
			WithOperation("load mod").
			WithResource(name).
			WithSuggestion("Fix the error and save the script to reload it").
			Wrap(err).
			BuildError()
	}

	md.record.State = StateLoaded
	m.logger.Info("mod loaded", "mod", name, "id", md.record.ID, "reloads", md.record.Reloads,
		"hooks", md.set.Len(), "opcodes", len(m.opts.Registry.Owned(md.record.ID)))
	m.opts.Bus.Fire(events.ModLoaded{Name: name, ID: md.record.ID})
	return md.record, nil
}

// Unload revokes everything name owns and bumps its reload counter. Names
// that are already unloaded are left alone.
func (m *Manager) Unload(ctx context.Context, name string) error {
	ctx, span := m.tracer.Start(ctx, "lifecycle.unload", trace.WithAttributes(attribute.String("mod.name", name)))
	defer span.End()

	md, ok := m.mods[name]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownMod, name)
		span.RecordError(err)
		return err
	}
	if md.record.State != StateLoaded && md.record.State != StateFailed {
		return nil
	}
	id := md.record.ID
	span.SetAttributes(attribute.Int64("mod.id", int64(id)))

	revoked := m.opts.Registry.Revoke(id)
	hooks := 0
	if md.set != nil {
		hooks = md.set.Unload()
	}
	// The sweep mode widens only the entity sweep; queued tasks always go
	// by owner.
	queued := m.opts.Tasks.ClearOwner(id)
	st := m.sweep(ctx, id)

	md.record.Reloads++
	md.record.State = StateUnloaded
	md.set = nil

	m.logger.Info("mod unloaded", "mod", name, "id", id, "reloads", md.record.Reloads,
		"opcodes", len(revoked), "hooks", hooks, "tasks", queued, "entity_entries", st.Removed())
	m.opts.Bus.Fire(events.ModUnloaded{Name: name, ID: id, Reloads: md.record.Reloads})
	return nil
}

// Reload unloads name when it is loaded or failed, then loads it again. A
// failing load is reported and leaves the mod with no active handlers.
func (m *Manager) Reload(ctx context.Context, name string) (Record, error) {
	if md, ok := m.mods[name]; ok && (md.record.State == StateLoaded || md.record.State == StateFailed) {
		if err := m.Unload(ctx, name); err != nil {
			return md.record, err
		}
	}
	return m.Load(ctx, name)
}

// Record returns the record for name.
func (m *Manager) Record(name string) (Record, bool) {
	md, ok := m.mods[name]
	if !ok {
		return Record{Name: name, State: StateUnknown}, false
	}
	return md.record, true
}

// Records returns every known mod ordered by id.
func (m *Manager) Records() []Record {
	out := make([]Record, 0, len(m.byID))
	for _, md := range m.byID {
		out = append(out, md.record)
	}
	return out
}

// Reloads returns the reload counter of id.
func (m *Manager) Reloads(id modid.ID) (uint32, error) {
	if int(id) >= len(m.byID) {
		return 0, fmt.Errorf("%w: id %s", ErrUnknownMod, id)
	}
	return m.byID[id].record.Reloads, nil
}

// Names returns the names of every known mod, sorted.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.mods))
	for name := range m.mods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (m *Manager) lookupOrCreate(name string) *mod {
	if md, ok := m.mods[name]; ok {
		return md
	}
	md := &mod{record: Record{Name: name, ID: modid.ID(len(m.byID))}}
	m.mods[name] = md
	m.byID = append(m.byID, md)
	return md
}

func (m *Manager) sweep(ctx context.Context, id modid.ID) sweep.Stats {
	_, span := m.tracer.Start(ctx, "lifecycle.sweep", trace.WithAttributes(
		attribute.Int64("mod.id", int64(id)),
		attribute.String("sweep.mode", m.opts.SweepMode.String()),
	))
	defer span.End()

	st := sweep.Sweep(m.opts.World, sweep.ScopeFor(m.opts.SweepMode, id))
	span.SetAttributes(
		attribute.Int("sweep.maps", st.Maps),
		attribute.Int("sweep.objects", st.Objects),
		attribute.Int("sweep.players", st.Players),
		attribute.Int("sweep.removed", st.Removed()),
	)
	return st
}

func run(ctx context.Context, ep EntryPoint, mc *ModContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return ep(ctx, mc)
}
