// Package backend opens a storage.Ledger by backend name.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/yolubot/boardnews/internal/storage"
	"github.com/yolubot/boardnews/internal/storage/csvbackend"
	"github.com/yolubot/boardnews/internal/storage/jsonbackend"
	"github.com/yolubot/boardnews/internal/storage/postgres"
	"github.com/yolubot/boardnews/internal/storage/sqlite"
)

// Names lists the supported backend names.
var Names = []string{"sqlite", "postgres", "json", "csv", "none"}

// Valid reports whether name is a supported backend.
func Valid(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Open returns the ledger for name. "none" yields a nil ledger, which the
// pipeline treats as an empty ledger that never records anything.
func Open(ctx context.Context, name, dsn string) (storage.Ledger, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite":
		return sqlite.New(dsn)
	case "postgres":
		return postgres.New(ctx, dsn)
	case "json":
		return jsonbackend.New(dsn)
	case "csv":
		return csvbackend.New(dsn)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q (want one of %s)", name, strings.Join(Names, ", "))
	}
}
