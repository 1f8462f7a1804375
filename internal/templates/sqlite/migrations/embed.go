// SPDX-License-Identifier: MPL-2.0

// Package migrations embeds the template store schema.
package migrations

import "embed"

// FS contains the embedded SQLite migrations.
//
//go:embed *.sql
var FS embed.FS
