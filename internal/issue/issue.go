// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a rendered troubleshooting page.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	ModsDirNotFoundId
	ModLoadFailedId
	GatewayListenFailedId
	TemplatesImportFailedId
	FrameDecodeFailedId
)

type (
	// MarkdownMsg is the markdown body of an Issue.
	MarkdownMsg string

	// HttpLink is a documentation link appended to a rendered Issue.
	HttpLink string

	// Issue is a troubleshooting page shown after an operator-facing failure.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the page with the named glamour style ("dark", "light",
// "notty", "auto").
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the configuration

The configuration file could not be read or did not match the schema.

## Things you can try
- Print the file that is being read:
~~~
$ addonbridge config path
~~~
- Check durations use Go syntax, for example ` + "`\"50ms\"`" + ` or ` + "`\"1s\"`" + `.
- Check ` + "`gateway.addr`" + ` is a ` + "`host:port`" + ` pair.
- Look for ` + "`ADDONBRIDGE_*`" + ` environment variables overriding the file.
- Regenerate a default file somewhere else and compare:
~~~
$ addonbridge config init /tmp/addonbridge.cue
~~~`,
	}

	modsDirNotFoundIssue = &Issue{
		id: ModsDirNotFoundId,
		mdMsg: `
# No mod scripts found

The mods directory is missing or holds no scripts with the configured prefix.

## Things you can try
- Scripts are named ` + "`<script_prefix><name>.lua`" + `, for example ` + "`scripts_tswow_hello.lua`" + `.
- A relative ` + "`mods_dir`" + ` is resolved against ` + "`data_dir`" + `.
- Check the effective paths:
~~~
$ addonbridge config show
~~~`,
	}

	modLoadFailedIssue = &Issue{
		id: ModLoadFailedId,
		mdMsg: `
# A mod failed to load

The mod script raised an error, or its manifest declared a message that could
not be registered. Everything the mod registered before the failure has been
revoked; the mod stays failed until its files change.

## Things you can try
- Check the opcode is not already owned by another mod, or set
  ` + "`force = true`" + ` on the manifest entry to take it over.
- Payload sizes must be between 0 and 244 bytes.
- Mods missing from ` + "`modules.txt`" + ` in the data directory are never loaded.`,
	}

	gatewayListenFailedIssue = &Issue{
		id: GatewayListenFailedId,
		mdMsg: `
# The gateway could not start

The websocket gateway failed to listen on ` + "`gateway.addr`" + `.

## Things you can try
- Another process may hold the port. Pick a different one:
~~~
$ addonbridge serve --addr 127.0.0.1:0
~~~`,
	}

	templatesImportFailedIssue = &Issue{
		id: TemplatesImportFailedId,
		mdMsg: `
# Template import failed

## Things you can try
- Every ` + "`[[item]]`" + ` and ` + "`[[creature]]`" + ` entry needs a non-zero ` + "`id`" + `.
- Creature ` + "`models`" + ` holds at most four display ids.
- The store lives at ` + "`templates.path`" + `, by default ` + "`<data_dir>/templates.db`" + `.`,
	}

	frameDecodeFailedIssue = &Issue{
		id: FrameDecodeFailedId,
		mdMsg: `
# Not an addon frame

Frames are the base64 encoding of a 4-byte magic, a 2-byte little-endian opcode
and up to 244 payload bytes. Encoded frames always start with ` + "`SGAP`" + `.

## Things you can try
~~~
$ addonbridge frame encode 5 616263
~~~`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		modsDirNotFoundIssue.Id():       modsDirNotFoundIssue,
		modLoadFailedIssue.Id():         modLoadFailedIssue,
		gatewayListenFailedIssue.Id():   gatewayListenFailedIssue,
		templatesImportFailedIssue.Id(): templatesImportFailedIssue,
		frameDecodeFailedIssue.Id():     frameDecodeFailedIssue,
	}
)

// Values returns every Issue ordered by Id.
func Values() []*Issue {
	ids := make([]Id, 0, len(issues))
	for id := range issues {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

// Get returns the Issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
