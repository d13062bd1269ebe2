package feed

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contractor-cli/internal/config"
	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/fetcher"
	"github.com/sells-group/contractor-cli/internal/license"
	"github.com/sells-group/contractor-cli/internal/reconcile"
)

// DefaultSource names the feed in contractor provenance.
const DefaultSource = "license_feed"

// Upserter writes candidates to the store.
type Upserter interface {
	Upsert(ctx context.Context, c contractor.Candidate) (reconcile.Outcome, error)
}

// Options configures an Importer.
type Options struct {
	URL       string
	TempDir   string
	BatchSize int
	Workers   int
	Source    string
}

// OptionsFromConfig maps the feed config section onto Options.
func OptionsFromConfig(cfg config.FeedConfig) Options {
	return Options{
		URL:       cfg.URL,
		TempDir:   cfg.TempDir,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
	}
}

// Importer synchronizes the store with the registry snapshot.
type Importer struct {
	store      contractor.Store
	upserter   Upserter
	fetcher    fetcher.Fetcher
	classifier *license.Classifier
	opts       Options
	now        func() time.Time
	log        *zap.Logger
}

// New creates an Importer. Runs are recorded in store; records go through
// up.
func New(store contractor.Store, up Upserter, f fetcher.Fetcher, cls *license.Classifier, opts Options) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	if cls == nil {
		cls = license.NewClassifier()
	}
	return &Importer{
		store:      store,
		upserter:   up,
		fetcher:    f,
		classifier: cls,
		opts:       opts,
		now:        time.Now,
		log:        zap.L().With(zap.String("component", "feed")),
	}
}

// Run downloads the configured snapshot and imports it.
func (im *Importer) Run(ctx context.Context) (*contractor.ImportRun, error) {
	if im.opts.URL == "" {
		return nil, eris.New("feed: no url configured")
	}
	return im.track(ctx, im.opts.URL, func(ctx context.Context, run *contractor.ImportRun) error {
		dir, err := im.workDir()
		if err != nil {
			return stageErr(StageDownload, err)
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		dst := filepath.Join(dir, "snapshot"+extFor(im.opts.URL))
		start := time.Now()
		n, err := im.fetcher.DownloadToFile(ctx, im.opts.URL, dst)
		if err != nil {
			return stageErr(StageDownload, eris.Wrap(err, "feed: download"))
		}
		im.log.Info("downloaded snapshot",
			zap.String("url", im.opts.URL),
			zap.Int64("bytes", n),
			zap.Duration("elapsed", time.Since(start)),
		)
		return im.importPath(ctx, run, dst, dir)
	})
}

// ImportFile imports a snapshot already on disk.
func (im *Importer) ImportFile(ctx context.Context, file string) (*contractor.ImportRun, error) {
	return im.track(ctx, "file://"+file, func(ctx context.Context, run *contractor.ImportRun) error {
		if _, err := os.Stat(file); err != nil {
			return stageErr(StageDownload, eris.Wrapf(err, "feed: open %s", file))
		}
		dir, err := im.workDir()
		if err != nil {
			return stageErr(StagePreprocess, err)
		}
		defer os.RemoveAll(dir) //nolint:errcheck
		return im.importPath(ctx, run, file, dir)
	})
}

// track records the run before and after fn.
func (im *Importer) track(ctx context.Context, source string, fn func(context.Context, *contractor.ImportRun) error) (*contractor.ImportRun, error) {
	run := &contractor.ImportRun{
		Source:    source,
		Status:    contractor.RunStatusRunning,
		StartedAt: im.now().UTC(),
	}
	if err := im.store.CreateImportRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "feed: create import run")
	}
	log := im.log.With(zap.String("run_id", run.ID), zap.String("source", source))
	log.Info("import started")

	err := fn(ctx, run)

	finished := im.now().UTC()
	run.FinishedAt = &finished
	run.Status = contractor.RunStatusComplete
	if err != nil {
		run.Status = contractor.RunStatusFailed
		run.Error = err.Error()
	}
	// The run row is closed out even when ctx was cancelled.
	if ferr := im.store.FinishImportRun(context.WithoutCancel(ctx), run); ferr != nil {
		log.Error("failed to record import run", zap.Error(ferr))
	}

	log.Info("import finished",
		zap.String("status", string(run.Status)),
		zap.Int("processed", run.Processed),
		zap.Int("new", run.New),
		zap.Int("updated", run.Updated),
		zap.Int("errors", run.Errors),
		zap.Int("skipped", run.Skipped),
		zap.Bool("balanced", run.Balanced()),
	)
	return run, err
}

func (im *Importer) workDir() (string, error) {
	base := im.opts.TempDir
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", eris.Wrap(err, "feed: create temp dir")
		}
	}
	dir, err := os.MkdirTemp(base, "feed-*")
	if err != nil {
		return "", eris.Wrap(err, "feed: create work dir")
	}
	return dir, nil
}

func extFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".csv"
	}
	if ext := strings.ToLower(path.Ext(u.Path)); ext == ".xlsx" {
		return ext
	}
	return ".csv"
}

// importPath runs preprocess, parse, classify and upsert over a local file.
func (im *Importer) importPath(ctx context.Context, run *contractor.ImportRun, file, workDir string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		rows <-chan fetcher.Row
		errs <-chan error
	)
	if strings.EqualFold(filepath.Ext(file), ".xlsx") {
		rows, errs = fetcher.StreamXLSX(ctx, file, fetcher.XLSXOptions{TrimSpace: true})
	} else {
		clean := filepath.Join(workDir, "clean.csv")
		dropped, err := stripPreamble(file, clean)
		if err != nil {
			return stageErr(StagePreprocess, err)
		}
		im.log.Debug("stripped preamble", zap.Int("lines", dropped))

		f, err := os.Open(clean)
		if err != nil {
			return stageErr(StagePreprocess, eris.Wrap(err, "feed: open clean file"))
		}
		defer f.Close() //nolint:errcheck
		rows, errs = fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{LazyQuotes: true, TrimSpace: true})
	}

	return im.consume(ctx, cancel, run, rows, errs)
}

// consume parses rows into batches and upserts them with a worker pool.
// cancel stops the row stream early.
func (im *Importer) consume(ctx context.Context, cancel context.CancelFunc, run *contractor.ImportRun, rows <-chan fetcher.Row, errs <-chan error) error {
	var mu sync.Mutex
	count := func(f func()) {
		mu.Lock()
		f()
		mu.Unlock()
	}

	batches := make(chan []contractor.Candidate, im.opts.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < im.opts.Workers; w++ {
		g.Go(func() error {
			for batch := range batches {
				if err := im.upsertBatch(gctx, batch, count, run); err != nil {
					return err
				}
			}
			return nil
		})
	}

	parseErr := im.parse(gctx, run, rows, count, batches)
	close(batches)
	upsertErr := g.Wait()

	if parseErr != nil || upsertErr != nil {
		cancel()
	}
	// Drain so the reader goroutine can exit.
	for range rows {
	}
	streamErr := <-errs

	switch {
	case upsertErr != nil:
		return stageErr(StageUpsert, upsertErr)
	case parseErr != nil:
		return parseErr
	case streamErr != nil:
		return stageErr(StageParse, streamErr)
	}
	return nil
}

// parse reads the header, then classifies each row and hands full batches
// to the workers.
func (im *Importer) parse(ctx context.Context, run *contractor.ImportRun, rows <-chan fetcher.Row, count func(func()), batches chan<- []contractor.Candidate) error {
	var header Header
	batch := make([]contractor.Candidate, 0, im.opts.BatchSize)
	now := im.now()

	send := func() error {
		if len(batch) == 0 {
			return nil
		}
		select {
		case batches <- batch:
		case <-ctx.Done():
			return stageErr(StageUpsert, ctx.Err())
		}
		batch = make([]contractor.Candidate, 0, im.opts.BatchSize)
		return nil
	}

	for row := range rows {
		if header == nil {
			if !isHeader(strings.Join(row.Fields, ",")) {
				// spreadsheet preamble rows
				continue
			}
			h, err := ParseHeader(row.Fields)
			if err != nil {
				return stageErr(StageParse, err)
			}
			header = h
			continue
		}

		rec, err := header.ParseRecord(row.Line, row.Fields)
		if errors.Is(err, errBlankRow) {
			count(func() { run.Skipped++ })
			continue
		}
		if err != nil {
			im.log.Warn("skipping row", zap.String("stage", string(StageParse)), zap.Int("line", row.Line), zap.Error(err))
			count(func() {
				run.Processed++
				run.Errors++
			})
			continue
		}

		batch = append(batch, rec.Candidate(im.opts.Source, im.classifier, now))
		if len(batch) == im.opts.BatchSize {
			if err := send(); err != nil {
				return err
			}
		}
	}
	if header == nil {
		return stageErr(StageParse, eris.New("feed: header row not found"))
	}
	return send()
}

func (im *Importer) upsertBatch(ctx context.Context, batch []contractor.Candidate, count func(func()), run *contractor.ImportRun) error {
	var processed, created, updated, failed int
	defer count(func() {
		run.Processed += processed
		run.New += created
		run.Updated += updated
		run.Errors += failed
	})

	for i := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := im.upserter.Upsert(ctx, batch[i])
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		processed++
		switch {
		case err != nil:
			im.log.Warn("upsert failed",
				zap.String("stage", string(StageUpsert)),
				zap.String("license", batch[i].License.Number),
				zap.Error(err),
			)
			failed++
		case out.Created:
			created++
		default:
			updated++
		}
	}
	im.log.Debug("batch upserted",
		zap.Int("size", len(batch)),
		zap.Int("new", created),
		zap.Int("updated", updated),
		zap.Int("errors", failed),
	)
	return nil
}
