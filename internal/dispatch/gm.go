// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/addonbridge/addonbridge/internal/registry"
	"github.com/addonbridge/addonbridge/internal/templates"
)

// GM debug command literals and the whisper channel responses go out on.
const (
	gmAmIGM            = "tswow_am_i_gm"
	gmYouAreGM         = "tswow_you_are_gm"
	gmItemPrefix       = "tswow_item:"
	gmItemResponse     = "tswow_item_response:"
	gmCreaturePrefix   = "tswow_creature:"
	gmCreatureResponse = "tswow_creature_response:"

	// WhisperChannel is the chat channel GM responses are sent on.
	WhisperChannel = 7
)

type (
	// Templates answers the GM item and creature lookups.
	Templates interface {
		Item(id uint32) (templates.Item, bool)
		Creature(id uint32) (templates.Creature, bool)
	}

	// GMCommands answers the plain-text debug commands game masters send on
	// the self-addressed addon channel.
	GMCommands struct {
		templates Templates
		logger    *log.Logger
	}
)

// NewGMCommands returns a GM command handler. A nil Templates answers no
// lookups.
func NewGMCommands(t Templates, logger *log.Logger) *GMCommands {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &GMCommands{templates: t, logger: logger}
}

// Handle reports whether raw was a GM command. The first character of raw is
// the addon control character and is skipped. Lookups for missing templates
// are handled without a response.
func (g *GMCommands) Handle(sender, receiver registry.Sender, raw string) bool {
	if len(raw) < 2 {
		return false
	}
	msg := raw[1:]

	if sender == nil || sender != receiver || !sender.IsGameMaster() {
		return false
	}

	switch {
	case msg == gmAmIGM:
		sender.SendAddonMessage("", gmYouAreGM, WhisperChannel, sender)
		return true

	case strings.HasPrefix(msg, gmItemPrefix):
		id := atoi(msg[len(gmItemPrefix):])
		it, ok := g.item(id)
		if !ok {
			g.logger.Debug("gm item lookup miss", "player", sender.Name(), "item", id)
			return true
		}
		sender.SendAddonMessage("", gmItemResponse+strconv.Itoa(id)+":"+u32(it.DisplayID), WhisperChannel, sender)
		return true

	case strings.HasPrefix(msg, gmCreaturePrefix):
		id := atoi(msg[len(gmCreaturePrefix):])
		cr, ok := g.creature(id)
		if !ok {
			g.logger.Debug("gm creature lookup miss", "player", sender.Name(), "creature", id)
			return true
		}
		var b strings.Builder
		b.WriteString(gmCreatureResponse)
		b.WriteString(strconv.Itoa(id))
		b.WriteString(":")
		b.WriteString(u32(cr.Faction))
		for _, m := range cr.Models {
			b.WriteString(":")
			b.WriteString(u32(m))
		}
		sender.SendAddonMessage("", b.String(), WhisperChannel, sender)
		return true
	}
	return false
}

func (g *GMCommands) item(id int) (templates.Item, bool) {
	if g.templates == nil || id < 0 {
		return templates.Item{}, false
	}
	return g.templates.Item(uint32(id))
}

func (g *GMCommands) creature(id int) (templates.Creature, bool) {
	if g.templates == nil || id < 0 {
		return templates.Creature{}, false
	}
	return g.templates.Creature(uint32(id))
}

// atoi parses like C atoi: leading whitespace, an optional sign, then as many
// digits as follow. Anything unparsable yields 0.
func atoi(s string) int {
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1<<31 {
			break
		}
	}
	if neg {
		return -n
	}
	return n
}

func u32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
