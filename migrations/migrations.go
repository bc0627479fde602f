// Package migrations embeds the SQL schema files for the checkout service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
