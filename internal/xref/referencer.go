package xref

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/config"
	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/reconcile"
)

// Source names the cross-reference pass in contractor provenance.
const Source = "crossref"

// Options configures a Referencer.
type Options struct {
	BatchSize   int
	BatchDelay  time.Duration
	LookupDelay time.Duration
	// Limit caps the records processed in one run. Zero means no cap.
	Limit int
}

// OptionsFromConfig maps the xref config section onto Options.
func OptionsFromConfig(cfg config.XrefConfig) Options {
	return Options{
		BatchSize:   cfg.BatchSize,
		BatchDelay:  time.Duration(cfg.BatchDelayMs) * time.Millisecond,
		LookupDelay: time.Duration(cfg.LookupDelayMs) * time.Millisecond,
		Limit:       cfg.Limit,
	}
}

// Summary counts the outcome of a run. Processed equals Updated + NotFound
// + Errors.
type Summary struct {
	Processed int
	Updated   int
	NotFound  int
	Errors    int
}

// Referencer runs the cross-reference pass.
type Referencer struct {
	store  contractor.Store
	lookup Lookup
	opts   Options
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	log    *zap.Logger
}

// New creates a Referencer.
func New(store contractor.Store, lookup Lookup, opts Options) *Referencer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	return &Referencer{
		store:  store,
		lookup: lookup,
		opts:   opts,
		now:    time.Now,
		sleep:  sleepCtx,
		log:    zap.L().With(zap.String("component", "xref")),
	}
}

// Run pages through license-verified contractors missing contact data and
// tries to fill the gaps. Per-record failures are counted and never stop
// the run; listing failures and cancellation do.
func (r *Referencer) Run(ctx context.Context) (Summary, error) {
	var (
		sum     Summary
		afterID string
		start   = time.Now()
	)
	defer func() {
		r.log.Info("cross-reference finished",
			zap.Int("processed", sum.Processed),
			zap.Int("updated", sum.Updated),
			zap.Int("not_found", sum.NotFound),
			zap.Int("errors", sum.Errors),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	for batchNum := 0; ; batchNum++ {
		size := r.opts.BatchSize
		if r.opts.Limit > 0 {
			remaining := r.opts.Limit - sum.Processed
			if remaining <= 0 {
				return sum, nil
			}
			size = min(size, remaining)
		}
		if batchNum > 0 {
			if err := r.sleep(ctx, r.opts.BatchDelay); err != nil {
				return sum, eris.Wrap(err, "xref: run cancelled")
			}
		}

		batch, err := r.store.ListMissingContact(ctx, afterID, size)
		if err != nil {
			return sum, eris.Wrap(err, "xref: list missing contact")
		}
		if len(batch) == 0 {
			return sum, nil
		}

		for i := range batch {
			if i > 0 {
				if err := r.sleep(ctx, r.opts.LookupDelay); err != nil {
					return sum, eris.Wrap(err, "xref: run cancelled")
				}
			}
			if err := ctx.Err(); err != nil {
				return sum, eris.Wrap(err, "xref: run cancelled")
			}

			rec := &batch[i]
			updated, err := r.enrich(ctx, rec)
			if err != nil && ctx.Err() != nil {
				return sum, eris.Wrap(ctx.Err(), "xref: run cancelled")
			}
			sum.Processed++
			switch {
			case err != nil:
				sum.Errors++
				r.log.Warn("cross-reference failed",
					zap.String("id", rec.ID),
					zap.String("license", rec.LicenseNumber),
					zap.Error(err),
				)
			case updated:
				sum.Updated++
			default:
				sum.NotFound++
			}
		}
		afterID = batch[len(batch)-1].ID
		r.log.Debug("batch done", zap.Int("batch", batchNum), zap.Int("size", len(batch)))

		if len(batch) < size {
			return sum, nil
		}
	}
}

// enrich tries each key until one fills a missing field, then saves the
// record. It reports whether the record changed. A lookup error on one key
// falls through to the next; it is returned only when no key produced a
// hit.
func (r *Referencer) enrich(ctx context.Context, rec *contractor.Contractor) (bool, error) {
	var lastErr error
	for _, key := range Keys(rec) {
		q := Query{Key: key, City: rec.City, State: rec.State}
		found, err := r.lookup.Find(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lastErr = err
			continue
		}
		found = found.Normalized()
		if !found.Fills(rec) {
			continue
		}

		before := *rec
		cand := contractor.Candidate{
			Source:       Source,
			Authority:    contractor.AuthorityCrossRef,
			BusinessName: rec.BusinessName,
			Phone:        found.Phone,
			Email:        found.Email,
			Website:      found.Website,
		}
		reconcile.Merge(rec, &cand, r.now())
		if err := r.store.Update(ctx, rec); err != nil {
			*rec = before
			return false, eris.Wrapf(err, "xref: update %s", rec.ID)
		}
		r.log.Debug("filled contact",
			zap.String("id", rec.ID),
			zap.String("key", string(key.Kind)),
			zap.String("lookup", found.Source),
			zap.Bool("phone", before.Phone == "" && rec.Phone != ""),
			zap.Bool("email", before.Email == "" && rec.Email != ""),
			zap.Bool("website", before.Website == "" && rec.Website != ""),
		)
		return true, nil
	}
	return false, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
