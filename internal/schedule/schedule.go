// Package schedule runs the pipeline's recurring jobs (feed import,
// cross-reference, scrape) on cron specs.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Job is a named unit of recurring work.
type Job struct {
	Name string
	// Spec is a six-field cron expression, seconds first. Descriptors such
	// as "@daily" are accepted too.
	Spec string
	Run  func(ctx context.Context) error
}

// Entry describes a registered job.
type Entry struct {
	Name string
	Spec string
	Next time.Time
}

// Scheduler wraps a cron runner. Overlapping runs of one job are skipped
// and panics are recovered.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[cron.EntryID]Job
}

// New creates a scheduler evaluating specs in loc. A nil loc means local
// time.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	log := zap.L().With(zap.String("component", "schedule"))
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(
				cron.SkipIfStillRunning(cl),
				cron.Recover(cl),
			),
		),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[cron.EntryID]Job),
	}
}

// LoadLocation resolves a timezone name. Empty means local time.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: load timezone %q", name)
	}
	return loc, nil
}

// Add registers a job. Jobs with an empty spec are ignored.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		s.log.Info("job not scheduled", zap.String("job", job.Name))
		return nil
	}
	if job.Run == nil {
		return eris.Errorf("schedule: job %s has no run func", job.Name)
	}
	id, err := s.cron.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return eris.Wrapf(err, "schedule: add job %s", job.Name)
	}
	s.mu.Lock()
	s.entries[id] = job
	s.mu.Unlock()
	s.log.Info("job scheduled", zap.String("job", job.Name), zap.String("spec", job.Spec))
	return nil
}

func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	log := s.log.With(zap.String("job", job.Name))
	log.Info("job started")
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Error("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	log.Info("job finished", zap.Duration("elapsed", time.Since(start)))
}

// Entries lists registered jobs with their next run time. Next is zero
// until the scheduler has started.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.cron.Entries() {
		job, ok := s.entries[e.ID]
		if !ok {
			continue
		}
		out = append(out, Entry{Name: job.Name, Spec: job.Spec, Next: e.Next})
	}
	return out
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them to return
// or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "schedule: wait for running jobs")
	}
}

// Run schedules until ctx is cancelled, then stops and waits up to grace
// for running jobs.
func (s *Scheduler) Run(ctx context.Context, grace time.Duration) error {
	s.Start()
	<-ctx.Done()
	s.log.Info("scheduler stopping")
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	return s.Stop(waitCtx)
}

// cronLogger routes cron's logging through zap.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
