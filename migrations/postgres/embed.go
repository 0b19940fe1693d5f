// Package migrations embeds SQL migration files.
package migrations

import "embed"

// IndexFS contains the schema for the Postgres-backed index store.
//
//go:embed index/*.sql
var IndexFS embed.FS

// IndexDir is the directory within IndexFS where migrations live.
const IndexDir = "index"
