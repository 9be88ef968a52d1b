package migrations

import "embed"

// Files exposes embedded SQL migration files, one directory per backend.
//
//go:embed sqlite/*.sql postgres/*.sql
var Files embed.FS
