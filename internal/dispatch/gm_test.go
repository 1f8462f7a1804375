// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"testing"

	"github.com/addonbridge/addonbridge/internal/templates"
	"github.com/addonbridge/addonbridge/internal/testutil"
)

func gmCatalog() *templates.Catalog {
	c := templates.NewCatalog()
	c.PutItem(templates.Item{ID: 25, DisplayID: 1542})
	c.PutCreature(templates.Creature{ID: 299, Faction: 32, Models: [4]uint32{1236, 1237, 0, 0}})
	return c
}

func TestGMCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		handled bool
		reply   string
	}{
		{"am i gm", "\x01tswow_am_i_gm", true, "tswow_you_are_gm"},
		{"item", "\x01tswow_item:25", true, "tswow_item_response:25:1542"},
		{"item trailing garbage", "\x01tswow_item:25abc", true, "tswow_item_response:25:1542"},
		{"creature", "\x01tswow_creature:299", true, "tswow_creature_response:299:32:1236:1237:0:0"},
		{"missing item", "\x01tswow_item:999", true, ""},
		{"garbage id", "\x01tswow_item:zz", true, ""},
		{"unknown command", "\x01tswow_other", false, ""},
		{"control char not stripped", "tswow_am_i_gm", false, ""},
		{"too short", "x", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gm := NewGMCommands(gmCatalog(), testutil.Logger(t))
			p := testutil.NewSender("gm", true)
			if got := gm.Handle(p, p, tt.raw); got != tt.handled {
				t.Fatalf("Handle(%q) = %v, want %v", tt.raw, got, tt.handled)
			}

			sent := p.Sent()
			if tt.reply == "" {
				if len(sent) != 0 {
					t.Fatalf("unexpected reply %+v", sent)
				}
				return
			}
			want := testutil.Message{Prefix: "", Text: tt.reply, Channel: WhisperChannel, To: "gm"}
			if len(sent) != 1 || sent[0] != want {
				t.Fatalf("sent = %+v, want %+v", sent, want)
			}
		})
	}
}

func TestGMCommandsRequireGameMaster(t *testing.T) {
	t.Parallel()

	gm := NewGMCommands(gmCatalog(), nil)
	p := testutil.NewSender("player", false)
	if gm.Handle(p, p, "\x01tswow_am_i_gm") {
		t.Fatal("non-GM command handled")
	}
	if len(p.Sent()) != 0 {
		t.Fatal("non-GM got a response")
	}
}

func TestDispatchMissingGMItemIsHandledSilently(t *testing.T) {
	t.Parallel()

	d := New(Options{GM: NewGMCommands(gmCatalog(), nil)})
	p := testutil.NewSender("gm", true)
	if !d.OnAddonMessage(p, p, "\x01tswow_item:4242") {
		t.Fatal("missing item lookup not handled")
	}
	if len(p.Sent()) != 0 {
		t.Fatalf("sent = %+v", p.Sent())
	}
}

func TestAtoi(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"25":    25,
		"  7x":  7,
		"-3":    -3,
		"+8":    8,
		"abc":   0,
		"":      0,
		"12:34": 12,
	}
	for in, want := range tests {
		if got := atoi(in); got != want {
			t.Errorf("atoi(%q) = %d, want %d", in, got, want)
		}
	}
}
