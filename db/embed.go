// Package db provides the embedded catalog schema.
package db

import _ "embed"

// Schema creates the catalog table and loads the default entries.
//
//go:embed migrations/001_catalog.sql
var Schema string
