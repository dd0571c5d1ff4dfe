// Package migrations embeds the schema owned by the retro pay service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
