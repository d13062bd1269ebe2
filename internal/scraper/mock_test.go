package scraper

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/session"
)

// stubAdapter returns fixed records or an error.
type stubAdapter struct {
	name     string
	category Category
	records  []contractor.RawRecord
	err      error
	panics   bool
	onScrape func(ctx context.Context)

	calls   atomic.Int32
	gotLoc  Location
	gotSess session.Session
	mu      sync.Mutex
}

func (s *stubAdapter) Name() string       { return s.name }
func (s *stubAdapter) Category() Category { return s.category }

func (s *stubAdapter) Scrape(ctx context.Context, sess session.Session, loc Location) ([]contractor.RawRecord, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.gotLoc = loc
	s.gotSess = sess
	s.mu.Unlock()
	if s.onScrape != nil {
		s.onScrape(ctx)
	}
	if s.panics {
		panic("selector exploded")
	}
	return s.records, s.err
}

// locatedAdapter has its own default search area.
type locatedAdapter struct {
	stubAdapter
	def Location
}

func (l *locatedAdapter) DefaultLocation() Location { return l.def }

// fakeSession records Close calls.
type fakeSession struct {
	opts   session.Options
	closed atomic.Int32
}

func (f *fakeSession) Get(context.Context, string) (*session.Page, error) { return nil, nil }

func (f *fakeSession) PostForm(context.Context, string, url.Values) (*session.Page, error) {
	return nil, nil
}

func (f *fakeSession) Close() error {
	f.closed.Add(1)
	return nil
}

// fakeOpener hands out fakeSessions and remembers them.
type fakeOpener struct {
	mu       sync.Mutex
	sessions []*fakeSession
	err      error
	failOn   int // 1-based Open call that fails; 0 never
}

func (o *fakeOpener) Open(_ context.Context, opts session.Options) (session.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil && (o.failOn == 0 || o.failOn == len(o.sessions)+1) {
		return nil, o.err
	}
	s := &fakeSession{opts: opts}
	o.sessions = append(o.sessions, s)
	return s, nil
}

func (o *fakeOpener) allClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.sessions {
		if s.closed.Load() != 1 {
			return false
		}
	}
	return true
}
