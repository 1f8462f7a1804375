// SPDX-License-Identifier: MPL-2.0

package modscript

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Shopify/go-lua"
	"github.com/charmbracelet/log"

	"github.com/addonbridge/addonbridge/internal/dispatch"
	"github.com/addonbridge/addonbridge/internal/events"
	"github.com/addonbridge/addonbridge/internal/lifecycle"
	"github.com/addonbridge/addonbridge/internal/registry"
	"github.com/addonbridge/addonbridge/internal/world"
	"github.com/addonbridge/addonbridge/pkg/frame"
)

// Global is the name of the table scripts reach the host through.
const Global = "bridge"

// runtime is one loaded script. All of its callbacks run on the host tick
// goroutine, so the interpreter is never entered concurrently.
type runtime struct {
	state   *lua.State
	mc      *lifecycle.ModContext
	players Players
	logger  *log.Logger

	// nextRef is the last registry slot handed out to a callback.
	nextRef int
}

func (rt *runtime) install() {
	l := rt.state
	// Callback slots start above the registry entries the interpreter reserves.
	rt.nextRef = lua.RegistryIndexGlobals
	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "name", Function: rt.name},
		{Name: "modid", Function: rt.modid},
		{Name: "reloads", Function: rt.reloads},
		{Name: "log", Function: rt.log},
		{Name: "warn", Function: rt.warn},
		{Name: "register", Function: rt.register},
		{Name: "listen", Function: rt.listen},
		{Name: "on", Function: rt.on},
		{Name: "after", Function: rt.after},
		{Name: "every", Function: rt.every},
		{Name: "reply", Function: rt.reply},
		{Name: "send", Function: rt.send},
		{Name: "set", Function: rt.set},
		{Name: "get", Function: rt.get},
	}, 0)
	l.SetGlobal(Global)
}

func (rt *runtime) name(l *lua.State) int {
	l.PushString(rt.mc.Name())
	return 1
}

func (rt *runtime) modid(l *lua.State) int {
	l.PushInteger(int(rt.mc.ID()))
	return 1
}

func (rt *runtime) reloads(l *lua.State) int {
	l.PushInteger(int(rt.mc.Reloads()))
	return 1
}

func (rt *runtime) log(l *lua.State) int {
	rt.logger.Info(lua.CheckString(l, 1))
	return 0
}

func (rt *runtime) warn(l *lua.State) int {
	rt.logger.Warn(lua.CheckString(l, 1))
	return 0
}

// bridge.register(opcode, size [, force])
func (rt *runtime) register(l *lua.State) int {
	opcode := checkOpcode(l, 1)
	size := lua.CheckInteger(l, 2)
	var opts []registry.RegisterOption
	if l.ToBoolean(3) {
		opts = append(opts, registry.WithForce())
	}
	if err := rt.mc.RegisterMessage(opcode, size, nil, opts...); err != nil {
		lua.Errorf(l, "register opcode %d: %s", int(opcode), err.Error())
	}
	return 0
}

// bridge.listen(opcode, fn(sender, payload)) -> bool
func (rt *runtime) listen(l *lua.State) int {
	opcode := checkOpcode(l, 1)
	ref := rt.checkCallback(l, 2)
	ok := rt.mc.Listen(opcode, func(s registry.Sender, payload any) {
		rt.call(ref, func(l *lua.State) int {
			l.PushString(s.Name())
			if b, isBytes := payload.([]byte); isBytes {
				l.PushString(string(b))
			} else {
				l.PushNil()
			}
			return 2
		})
	})
	l.PushBoolean(ok)
	return 1
}

// bridge.on(kind, fn(fields)) -> bool
func (rt *runtime) on(l *lua.State) int {
	kind := events.Kind(lua.CheckString(l, 1))
	ref := rt.checkCallback(l, 2)
	ok := rt.mc.Events().Subscribe(kind, func(ev events.Event) {
		rt.call(ref, func(l *lua.State) int {
			var fields map[string]any
			if f, isFielder := ev.(events.Fielder); isFielder {
				fields = f.Fields()
			}
			pushFields(l, ev.Kind(), fields)
			return 1
		})
	})
	l.PushBoolean(ok)
	return 1
}

// bridge.after(ms, fn [, name]) -> name
func (rt *runtime) after(l *lua.State) int {
	delay := time.Duration(lua.CheckInteger(l, 1)) * time.Millisecond
	ref := rt.checkCallback(l, 2)
	name := lua.OptString(l, 3, "")
	l.PushString(rt.mc.After(name, delay, func() { rt.call(ref, nil) }))
	return 1
}

// bridge.every(ms, fn [, name]) -> name
func (rt *runtime) every(l *lua.State) int {
	period := time.Duration(lua.CheckInteger(l, 1)) * time.Millisecond
	if period <= 0 {
		lua.ArgumentError(l, 1, "period must be positive")
	}
	ref := rt.checkCallback(l, 2)
	name := lua.OptString(l, 3, "")
	l.PushString(rt.mc.Every(name, period, func() { rt.call(ref, nil) }))
	return 1
}

// bridge.reply(player, text) -> bool
func (rt *runtime) reply(l *lua.State) int {
	p, ok := rt.player(l, 1)
	if ok {
		p.SendAddonMessage(rt.mc.Name(), lua.CheckString(l, 2), dispatch.WhisperChannel, p)
	}
	l.PushBoolean(ok)
	return 1
}

// bridge.send(player, opcode, payload) -> bool
func (rt *runtime) send(l *lua.State) int {
	p, ok := rt.player(l, 1)
	opcode := checkOpcode(l, 2)
	payload := lua.OptString(l, 3, "")
	if !ok {
		l.PushBoolean(false)
		return 1
	}
	msg, err := frame.Encode(opcode, []byte(payload))
	if err != nil {
		lua.Errorf(l, "send opcode %d: %s", int(opcode), err.Error())
	}
	p.SendAddonMessage(rt.mc.Name(), msg, dispatch.WhisperChannel, p)
	l.PushBoolean(true)
	return 1
}

// bridge.set(player, key, value) -> bool. A nil value deletes the key when
// this mod stored it; keys owned by other mods are left alone and report false.
func (rt *runtime) set(l *lua.State) int {
	p, ok := rt.player(l, 1)
	key := lua.CheckString(l, 2)
	if !ok {
		l.PushBoolean(false)
		return 1
	}
	switch l.TypeOf(3) {
	case lua.TypeNil, lua.TypeNone:
		if owner, found := p.Storage.OwnerOf(key); found && owner != rt.mc.ID() {
			l.PushBoolean(false)
			return 1
		}
		p.Storage.Delete(key)
	case lua.TypeBoolean:
		p.Storage.Set(rt.mc.ID(), key, l.ToBoolean(3))
	case lua.TypeNumber:
		n, _ := l.ToNumber(3)
		p.Storage.Set(rt.mc.ID(), key, n)
	case lua.TypeString:
		s, _ := l.ToString(3)
		p.Storage.Set(rt.mc.ID(), key, s)
	default:
		lua.ArgumentError(l, 3, "expected string, number, boolean or nil")
	}
	l.PushBoolean(true)
	return 1
}

// bridge.get(player, key) -> value
func (rt *runtime) get(l *lua.State) int {
	p, ok := rt.player(l, 1)
	key := lua.CheckString(l, 2)
	if !ok {
		l.PushNil()
		return 1
	}
	v, _ := p.Storage.Get(key)
	pushValue(l, v)
	return 1
}

func (rt *runtime) player(l *lua.State, idx int) (*world.Player, bool) {
	name := lua.CheckString(l, idx)
	if rt.players == nil {
		return nil, false
	}
	return rt.players.Player(name)
}

// call invokes the callback stored at ref. Errors raised by the script are
// logged; they never reach the host.
func (rt *runtime) call(ref int, push func(l *lua.State) int) {
	l := rt.state
	top := l.Top()
	l.RawGetInt(lua.RegistryIndex, ref)
	n := 0
	if push != nil {
		n = push(l)
	}
	if err := l.ProtectedCall(n, 0, 0); err != nil {
		rt.logger.Error("script callback failed", "err", err)
	}
	l.SetTop(top)
}

func checkOpcode(l *lua.State, idx int) uint16 {
	n := lua.CheckInteger(l, idx)
	if n < 0 || n > 0xFFFF {
		lua.ArgumentError(l, idx, "opcode must be 0..65535")
	}
	return uint16(n)
}

// checkCallback pins the function at idx in the registry and returns its
// slot for call.
func (rt *runtime) checkCallback(l *lua.State, idx int) int {
	lua.CheckType(l, idx, lua.TypeFunction)
	l.PushValue(idx)
	rt.nextRef++
	l.RawSetInt(lua.RegistryIndex, rt.nextRef)
	return rt.nextRef
}

func pushFields(l *lua.State, kind events.Kind, fields map[string]any) {
	l.CreateTable(0, len(fields)+1)
	l.PushString(string(kind))
	l.SetField(-2, "kind")
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		pushValue(l, fields[k])
		l.SetField(-2, k)
	}
}

func pushValue(l *lua.State, v any) {
	switch v := v.(type) {
	case nil:
		l.PushNil()
	case string:
		l.PushString(v)
	case []byte:
		l.PushString(string(v))
	case bool:
		l.PushBoolean(v)
	case int:
		l.PushInteger(v)
	case uint32:
		l.PushInteger(int(v))
	case float64:
		l.PushNumber(v)
	default:
		l.PushString(fmt.Sprint(v))
	}
}
