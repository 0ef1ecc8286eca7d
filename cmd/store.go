package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shade-units/internal/config"
	"github.com/sells-group/shade-units/internal/store"
)

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Driver {
	case "sqlite":
		st, err = store.NewSQLite(c.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{
			MaxConns: c.MaxConns,
			MinConns: c.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
