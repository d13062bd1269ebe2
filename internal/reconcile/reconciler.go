package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/normalize"
	"github.com/sells-group/contractor-cli/pkg/geocode"
)

// Outcome describes one upsert.
type Outcome struct {
	Contractor *contractor.Contractor
	Created    bool
	// MatchedBy names the identity rule that found the existing record.
	MatchedBy string
	// Changed is false when an existing record gained nothing.
	Changed bool
}

// Summary counts a batch of upserts.
type Summary struct {
	Processed int
	Created   int
	Updated   int
	Errors    int
}

// Add folds another summary into s.
func (s *Summary) Add(o Summary) {
	s.Processed += o.Processed
	s.Created += o.Created
	s.Updated += o.Updated
	s.Errors += o.Errors
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithGeocoder fills coordinates for records that have an address but none.
func WithGeocoder(g geocode.Gateway) Option {
	return func(r *Reconciler) { r.geo = g }
}

// WithPolicy replaces the default identity policy.
func WithPolicy(p IdentityPolicy) Option {
	return func(r *Reconciler) { r.policy = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler writes candidates to the canonical store. It is safe for
// concurrent use; upserts sharing a license number or name key run one at a
// time.
type Reconciler struct {
	store  contractor.Store
	policy IdentityPolicy
	geo    geocode.Gateway
	locks  *keyLock
	now    func() time.Time
	log    *zap.Logger
}

// New creates a Reconciler over store.
func New(store contractor.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		policy: DefaultPolicy(),
		locks:  newKeyLock(),
		now:    time.Now,
		log:    zap.L().With(zap.String("component", "reconcile")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert creates or updates the contractor the candidate describes.
func (r *Reconciler) Upsert(ctx context.Context, c contractor.Candidate) (Outcome, error) {
	if c.BusinessName == "" {
		return Outcome{}, eris.New("reconcile: candidate has no business name")
	}

	var licKey string
	if c.License.Number != "" {
		licKey = "license:" + c.License.Number
	}
	unlock := r.locks.lock(licKey, "name:"+normalize.NameKey(c.BusinessName))
	defer unlock()

	existing, matchedBy, err := r.policy.Resolve(ctx, r.store, &c)
	if err != nil {
		return Outcome{}, err
	}

	if existing == nil {
		rec := NewContractor(&c, r.now())
		if err := r.ensureAccount(ctx, rec); err != nil {
			return Outcome{}, err
		}
		r.geocode(ctx, rec)
		if err := r.store.Create(ctx, rec); err != nil {
			return Outcome{}, eris.Wrapf(err, "reconcile: create %s", rec.BusinessName)
		}
		r.log.Debug("created contractor",
			zap.String("id", rec.ID),
			zap.String("name", rec.BusinessName),
			zap.String("source", c.Source),
		)
		return Outcome{Contractor: rec, Created: true, Changed: true}, nil
	}

	changed := Merge(existing, &c, r.now())
	if existing.AccountID == "" {
		if err := r.ensureAccount(ctx, existing); err != nil {
			return Outcome{}, err
		}
		changed = true
	}
	if existing.Latitude == nil {
		r.geocode(ctx, existing)
		changed = changed || existing.Latitude != nil
	}
	if err := r.store.Update(ctx, existing); err != nil {
		return Outcome{}, eris.Wrapf(err, "reconcile: update %s", existing.ID)
	}
	r.log.Debug("updated contractor",
		zap.String("id", existing.ID),
		zap.String("matched_by", matchedBy),
		zap.Bool("changed", changed),
		zap.String("source", c.Source),
	)
	return Outcome{Contractor: existing, MatchedBy: matchedBy, Changed: changed}, nil
}

// ReconcileAll upserts candidates in order. Per-record failures are logged
// and counted; only ctx cancellation stops the batch early.
func (r *Reconciler) ReconcileAll(ctx context.Context, cands []contractor.Candidate) (Summary, error) {
	var sum Summary
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Processed++
		out, err := r.Upsert(ctx, c)
		if err != nil {
			sum.Errors++
			r.log.Warn("upsert failed",
				zap.String("name", c.BusinessName),
				zap.String("source", c.Source),
				zap.Error(err),
			)
			continue
		}
		if out.Created {
			sum.Created++
		} else {
			sum.Updated++
		}
	}
	return sum, nil
}

// ensureAccount links the record to a login account, synthesizing a
// placeholder email when the business has none.
func (r *Reconciler) ensureAccount(ctx context.Context, rec *contractor.Contractor) error {
	email := rec.Email
	if email == "" {
		email = contractor.PlaceholderEmail(rec.BusinessName)
	}
	display := rec.DisplayName
	if display == "" {
		display = rec.BusinessName
	}
	id, err := r.store.EnsureAccount(ctx, email, display)
	if err != nil {
		return eris.Wrapf(err, "reconcile: ensure account for %s", rec.BusinessName)
	}
	rec.AccountID = id
	return nil
}

// geocode fills coordinates when possible. Failures leave them empty.
func (r *Reconciler) geocode(ctx context.Context, rec *contractor.Contractor) {
	if r.geo == nil || rec.Latitude != nil || (rec.Street == "" && rec.City == "") {
		return
	}
	p, err := r.geo.Geocode(ctx, rec.AddressLine())
	if err != nil {
		r.log.Debug("geocode failed", zap.String("name", rec.BusinessName), zap.Error(err))
		return
	}
	if p == nil {
		return
	}
	lat, lng := p.Lat, p.Lng
	rec.Latitude, rec.Longitude = &lat, &lng
}
