// Package migrations embeds the versioned PostgreSQL schema of the session
// store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
