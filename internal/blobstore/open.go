package blobstore

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendFS       = "fs"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Path       string // sqlite database file or fs root
	DSN        string // postgres
	QuotaBytes int64
}

// Open returns the configured store.
func Open(ctx context.Context, o Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch o.Backend {
	case BackendMemory, "":
		return NewMemory(o.QuotaBytes), nil
	case BackendSQLite:
		s, err = OpenSQLite(o.Path, o.QuotaBytes)
	case BackendFS:
		s, err = NewFS(o.Path, o.QuotaBytes)
	case BackendPostgres:
		s, err = OpenPostgres(ctx, o.DSN, o.QuotaBytes)
	default:
		return nil, fmt.Errorf("blobstore: unknown backend %q", o.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
