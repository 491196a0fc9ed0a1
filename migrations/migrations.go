// Package migrations embeds the versioned schema for the ledger.
// Schema changes are new numbered files, applied once at startup;
// existing files are never edited after they ship.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
