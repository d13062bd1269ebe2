package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/reconcile"
	"github.com/sells-group/contractor-cli/pkg/geocode"
)

const defaultSQLiteDSN = "contractors.db"

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (contractor.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	var (
		st  contractor.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		st, err = contractor.NewSQLite(dsn)
	case "postgres":
		st, err = contractor.ConnectPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newReconciler wires the geocoder when enabled.
func newReconciler(st contractor.Store) *reconcile.Reconciler {
	var opts []reconcile.Option
	if cfg.Geocode.Enabled {
		opts = append(opts, reconcile.WithGeocoder(geocode.New(
			geocode.WithGoogleAPIKey(cfg.Geocode.GoogleAPIKey),
			geocode.WithRateLimit(cfg.Geocode.RateLimit),
			geocode.WithCacheSize(cfg.Geocode.CacheSize),
		)))
	}
	return reconcile.New(st, opts...)
}
