package scraper

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contractor-cli/internal/config"
	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/session"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Concurrency bounds how many adapters run at once. 1 runs them in
	// registration order, one after another.
	Concurrency int
	// Pacing is the pause after an adapter finishes, per category.
	Pacing map[Category]time.Duration
	// DefaultLocation is used when neither the run nor the adapter names one.
	DefaultLocation Location
	// Session and Interactive configure the shared and the interactive
	// session opened for each run.
	Session     session.Options
	Interactive session.Options
}

// EngineOptionsFromConfig maps the scrape config section onto EngineOptions.
func EngineOptionsFromConfig(cfg config.ScrapeConfig) EngineOptions {
	pacing := make(map[Category]time.Duration, len(Categories))
	for _, c := range Categories {
		pacing[c] = cfg.Pacing(c.String())
	}
	base := session.Options{
		UserAgent:          cfg.UserAgent,
		Timeout:            time.Duration(cfg.TimeoutSecs) * time.Second,
		InteractiveTimeout: time.Duration(cfg.InteractiveTimeout) * time.Second,
		HostInterval:       time.Duration(cfg.HostIntervalMs) * time.Millisecond,
		MaxRetries:         cfg.MaxRetries,
	}
	interactive := base
	interactive.Name = "interactive"
	interactive.Interactive = true
	base.Name = "shared"

	return EngineOptions{
		Concurrency:     cfg.Concurrency,
		Pacing:          pacing,
		DefaultLocation: ParseLocation(cfg.DefaultLocation),
		Session:         base,
		Interactive:     interactive,
	}
}

// AdapterReport is the outcome of one adapter within a run.
type AdapterReport struct {
	Name     string
	Category Category
	Records  int
	Err      error
	Skipped  bool
	Elapsed  time.Duration
}

// RunResult is the deduplicated output of one run.
type RunResult struct {
	Candidates []contractor.Candidate
	Adapters   []AdapterReport
	// Raw counts records returned by adapters before dedupe.
	Raw        int
	Duplicates int
	// Invalid counts records dropped for lacking a usable name.
	Invalid int
}

// Failed returns the number of adapters that errored.
func (r *RunResult) Failed() int {
	n := 0
	for _, a := range r.Adapters {
		if a.Err != nil {
			n++
		}
	}
	return n
}

// Engine orchestrates adapter runs.
type Engine struct {
	reg    *Registry
	opener session.Opener
	opts   EngineOptions
	sleep  func(ctx context.Context, d time.Duration) error
	log    *zap.Logger
}

// NewEngine creates a scraper engine.
func NewEngine(reg *Registry, opener session.Opener, opts EngineOptions) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.DefaultLocation.IsZero() {
		opts.DefaultLocation = Location{City: "Phoenix", State: "AZ"}
	}
	return &Engine{
		reg:    reg,
		opener: opener,
		opts:   opts,
		sleep:  sleepCtx,
		log:    zap.L().With(zap.String("component", "scraper.engine")),
	}
}

// RunAll runs every registered adapter in registration order.
func (e *Engine) RunAll(ctx context.Context, loc Location) (*RunResult, error) {
	return e.run(ctx, "all", e.reg.All(), loc)
}

// RunCategory runs the adapters of one category.
func (e *Engine) RunCategory(ctx context.Context, cat Category, loc Location) (*RunResult, error) {
	return e.run(ctx, cat.String(), e.reg.ByCategory(cat), loc)
}

// RunAuthenticated runs the member-only adapters.
func (e *Engine) RunAuthenticated(ctx context.Context, loc Location) (*RunResult, error) {
	return e.RunCategory(ctx, Authenticated, loc)
}

// RunPublicRecords runs the public-records adapters.
func (e *Engine) RunPublicRecords(ctx context.Context, loc Location) (*RunResult, error) {
	return e.RunCategory(ctx, PublicRecords, loc)
}

// RunSources runs the named adapters in the order given.
func (e *Engine) RunSources(ctx context.Context, names []string, loc Location) (*RunResult, error) {
	adapters, err := e.reg.Select(nil, names)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, "sources", adapters, loc)
}

// sessions holds the sessions acquired for one run.
type sessions struct {
	shared      session.Session
	interactive session.Session
}

func (s *sessions) forCategory(c Category) session.Session {
	if c.Interactive() {
		return s.interactive
	}
	return s.shared
}

func (s *sessions) close(log *zap.Logger) {
	for _, sess := range []session.Session{s.shared, s.interactive} {
		if sess == nil {
			continue
		}
		if err := sess.Close(); err != nil {
			log.Warn("close session", zap.Error(err))
		}
	}
}

func (e *Engine) openSessions(ctx context.Context, adapters []Adapter) (*sessions, error) {
	var needShared, needInteractive bool
	for _, a := range adapters {
		if a.Category().Interactive() {
			needInteractive = true
		} else {
			needShared = true
		}
	}

	s := &sessions{}
	if needShared {
		sess, err := e.opener.Open(ctx, e.opts.Session)
		if err != nil {
			return nil, eris.Wrap(err, "scraper: open session")
		}
		s.shared = sess
	}
	if needInteractive {
		opts := e.opts.Interactive
		opts.Interactive = true
		sess, err := e.opener.Open(ctx, opts)
		if err != nil {
			s.close(e.log)
			return nil, eris.Wrap(err, "scraper: open interactive session")
		}
		s.interactive = sess
	}
	return s, nil
}

func (e *Engine) run(ctx context.Context, label string, adapters []Adapter, loc Location) (*RunResult, error) {
	log := e.log.With(zap.String("run", label))
	result := &RunResult{}

	if len(adapters) == 0 {
		log.Info("no adapters selected")
		return result, nil
	}
	log.Info("starting run", zap.Int("adapters", len(adapters)), zap.String("location", loc.String()))

	sess, err := e.openSessions(ctx, adapters)
	if err != nil {
		return nil, err
	}
	defer sess.close(log)

	records := make([][]contractor.RawRecord, len(adapters))
	result.Adapters = make([]AdapterReport, len(adapters))

	g := new(errgroup.Group)
	g.SetLimit(e.opts.Concurrency)

	for i, a := range adapters {
		report := &result.Adapters[i]
		report.Name = a.Name()
		report.Category = a.Category()

		// Cancellation is honoured between adapters.
		if ctx.Err() != nil {
			report.Skipped = true
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				report.Skipped = true
				return nil
			}
			aLog := log.With(zap.String("adapter", a.Name()), zap.String("category", a.Category().String()))

			start := time.Now()
			recs, err := e.scrapeOne(ctx, a, sess.forCategory(a.Category()), e.locationFor(a, loc))
			report.Elapsed = time.Since(start)

			if err != nil {
				aLog.Error("adapter failed", zap.Error(err), zap.Duration("elapsed", report.Elapsed))
				report.Err = err
			} else {
				records[i] = recs
				report.Records = len(recs)
				aLog.Info("adapter complete", zap.Int("records", len(recs)), zap.Duration("elapsed", report.Elapsed))
			}

			if i < len(adapters)-1 {
				if d := e.opts.Pacing[a.Category()]; d > 0 {
					_ = e.sleep(ctx, d)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	e.dedupe(result, adapters, records)

	skipped := 0
	for _, r := range result.Adapters {
		if r.Skipped {
			skipped++
		}
	}
	log.Info("run complete",
		zap.Int("candidates", len(result.Candidates)),
		zap.Int("raw", result.Raw),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("invalid", result.Invalid),
		zap.Int("failed", result.Failed()),
		zap.Int("skipped", skipped),
	)

	if err := ctx.Err(); err != nil {
		return result, eris.Wrap(err, "scraper: run cancelled")
	}
	return result, nil
}

// scrapeOne invokes an adapter, turning a panic into an error.
func (e *Engine) scrapeOne(ctx context.Context, a Adapter, sess session.Session, loc Location) (recs []contractor.RawRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("scraper: adapter %s panicked: %v", a.Name(), r)
		}
	}()
	recs, err = a.Scrape(ctx, sess, loc)
	if recs == nil && err == nil {
		recs = []contractor.RawRecord{}
	}
	return recs, err
}

func (e *Engine) locationFor(a Adapter, loc Location) Location {
	if !loc.IsZero() {
		return loc
	}
	if dl, ok := a.(DefaultLocator); ok {
		if l := dl.DefaultLocation(); !l.IsZero() {
			return l
		}
	}
	return e.opts.DefaultLocation
}

// dedupe normalizes records in adapter order. The first record seen for a
// key wins; later ones only fill its empty fields.
func (e *Engine) dedupe(result *RunResult, adapters []Adapter, records [][]contractor.RawRecord) {
	index := make(map[string]int)
	for i, recs := range records {
		for _, raw := range recs {
			result.Raw++
			c, ok := contractor.NewCandidate(adapters[i].Name(), raw)
			key := c.DedupKey()
			if !ok || key == "" {
				result.Invalid++
				continue
			}
			if at, seen := index[key]; seen {
				result.Candidates[at].Absorb(c)
				result.Duplicates++
				continue
			}
			index[key] = len(result.Candidates)
			result.Candidates = append(result.Candidates, c)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
