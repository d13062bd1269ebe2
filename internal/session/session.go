// Package session provides the browsing sessions source adapters scrape
// through: cookie-carrying, rate-limited HTTP clients that hand back parsed
// HTML documents.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/contractor-cli/internal/resilience"
)

// ErrClosed is returned by a session used after Close.
var ErrClosed = errors.New("session: closed")

// StatusError reports a non-retryable HTTP failure.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("session: status %d from %s", e.Code, e.URL)
}

// Page is a fetched, parsed document.
type Page struct {
	// URL is the final URL after redirects.
	URL       string
	Status    int
	Header    http.Header
	Body      []byte
	Doc       *goquery.Document
	Challenge ChallengeType
}

// Text returns the collapsed text of the first element matching selector.
func (p *Page) Text(selector string) string {
	if p == nil || p.Doc == nil {
		return ""
	}
	return strings.Join(strings.Fields(p.Doc.Find(selector).First().Text()), " ")
}

// Resolve makes href absolute against the page URL.
func (p *Page) Resolve(href string) string {
	href = strings.TrimSpace(href)
	base, err := url.Parse(p.URL)
	if err != nil || href == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// Session is one browsing context. Cookies persist across calls until
// Close.
type Session interface {
	Get(ctx context.Context, rawURL string) (*Page, error)
	PostForm(ctx context.Context, rawURL string, form url.Values) (*Page, error)
	Close() error
}

// Options configures a session.
type Options struct {
	Name         string
	UserAgent    string
	Timeout      time.Duration
	HostInterval time.Duration
	MaxRetries   int
	// Interactive sessions serve public-records sources that may put a
	// human check in front of the form; they get the longer timeout.
	Interactive        bool
	InteractiveTimeout time.Duration
	Backoff            *resilience.Backoff
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (compatible; contractor-cli/1.0)"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.InteractiveTimeout <= 0 {
		o.InteractiveTimeout = 2 * time.Minute
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.Name == "" {
		o.Name = "default"
	}
	return o
}

// Opener creates sessions. The orchestrator owns their lifecycle.
type Opener interface {
	Open(ctx context.Context, opts Options) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, opts Options) (Session, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, opts Options) (Session, error) {
	return f(ctx, opts)
}
