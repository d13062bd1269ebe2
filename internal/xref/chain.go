package xref

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Chain tries lookups in order and returns the first hit.
type Chain []Lookup

// Name implements Lookup.
func (c Chain) Name() string { return "chain" }

// Find implements Lookup. A failing lookup is logged and skipped; the
// error is only returned when every lookup failed.
func (c Chain) Find(ctx context.Context, q Query) (Contact, error) {
	var errs []error
	for _, l := range c {
		found, err := l.Find(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return Contact{}, ctx.Err()
			}
			zap.L().Debug("lookup failed",
				zap.String("component", "xref"),
				zap.String("lookup", l.Name()),
				zap.String("key", string(q.Key.Kind)),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if !found.IsZero() {
			if found.Source == "" {
				found.Source = l.Name()
			}
			return found, nil
		}
	}
	if len(errs) > 0 && len(errs) == len(c) {
		return Contact{}, errors.Join(errs...)
	}
	return Contact{}, nil
}
