// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestIdsUniqueAndRegistered(t *testing.T) {
	t.Parallel()

	ids := []Id{
		ConfigLoadFailedId,
		ModsDirNotFoundId,
		ModLoadFailedId,
		GatewayListenFailedId,
		TemplatesImportFailedId,
		FrameDecodeFailedId,
	}
	if ConfigLoadFailedId != 1 {
		t.Errorf("ConfigLoadFailedId = %d, want 1", ConfigLoadFailedId)
	}
	seen := make(map[Id]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
		is := Get(id)
		if is == nil {
			t.Fatalf("Get(%d) returned nil", id)
		}
		if is.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, is.Id())
		}
		if strings.TrimSpace(string(is.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", id)
		}
	}

	values := Values()
	if len(values) != len(ids) {
		t.Fatalf("Values() has %d issues, want %d", len(values), len(ids))
	}
	for i := 1; i < len(values); i++ {
		if values[i-1].Id() >= values[i].Id() {
			t.Fatalf("Values() not ordered at %d", i)
		}
	}
}

func TestGetUnknown(t *testing.T) {
	t.Parallel()

	if Get(Id(999)) != nil {
		t.Fatal("Get(999) should be nil")
	}
}

func TestLinksAreCopies(t *testing.T) {
	t.Parallel()

	is := &Issue{docLinks: []HttpLink{"https://example.com/a"}, extLinks: []HttpLink{"https://example.com/b"}}
	links := is.DocLinks()
	links[0] = "changed"
	if is.DocLinks()[0] != "https://example.com/a" {
		t.Fatal("DocLinks returned the backing slice")
	}
	ext := is.ExtLinks()
	ext[0] = "changed"
	if is.ExtLinks()[0] != "https://example.com/b" {
		t.Fatal("ExtLinks returned the backing slice")
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	out, err := Get(ModLoadFailedId).Render("notty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "A mod failed to load") {
		t.Fatalf("rendered output missing title:\n%s", out)
	}

	withLinks := &Issue{mdMsg: "# Title", docLinks: []HttpLink{"https://example.com/docs"}}
	out, err = withLinks.Render("notty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "See also") || !strings.Contains(out, "example.com/docs") {
		t.Fatalf("rendered output missing links:\n%s", out)
	}
}
