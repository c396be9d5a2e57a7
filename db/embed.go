// Package db embeds the SQL schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for every table the pricing engine reads or writes.
//
//go:embed migrations/001_schema.sql
var Schema string
