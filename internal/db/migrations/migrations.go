// Package migrations embebe el esquema SQL para goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
