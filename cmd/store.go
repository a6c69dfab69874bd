package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hillwinds/benetl/internal/store"
	"github.com/hillwinds/benetl/pkg/directory"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = "analytics.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initDirectory() (directory.Directory, error) {
	return directory.NewFileClient(directory.Options{Path: cfg.Data.DirectoryFile})
}
