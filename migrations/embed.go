// Package migrations ships the PostgreSQL schema for the durable audit sink.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
