// Package migrations embeds the SQL migration files for wascrape.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
