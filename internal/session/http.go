package session

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/sells-group/contractor-cli/internal/resilience"
)

const maxBodyBytes = 4 << 20

// HTTPOpener opens HTTP sessions. Fields of Base fill whatever the caller's
// Options leave empty.
type HTTPOpener struct {
	Base Options
	// Transport overrides the round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Open implements Opener.
func (o *HTTPOpener) Open(_ context.Context, opts Options) (Session, error) {
	return NewHTTP(merge(o.Base, opts), o.Transport)
}

func merge(base, o Options) Options {
	if o.UserAgent == "" {
		o.UserAgent = base.UserAgent
	}
	if o.Timeout == 0 {
		o.Timeout = base.Timeout
	}
	if o.InteractiveTimeout == 0 {
		o.InteractiveTimeout = base.InteractiveTimeout
	}
	if o.HostInterval == 0 {
		o.HostInterval = base.HostInterval
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = base.MaxRetries
	}
	if o.Backoff == nil {
		o.Backoff = base.Backoff
	}
	return o
}

// HTTPSession is a Session over net/http with a cookie jar.
type HTTPSession struct {
	opts   Options
	client *http.Client
	retry  resilience.Backoff
	log    *zap.Logger

	mu       sync.Mutex
	closed   bool
	limiters map[string]*rate.Limiter
}

// NewHTTP creates an HTTP session. transport may be nil.
func NewHTTP(opts Options, transport http.RoundTripper) (*HTTPSession, error) {
	opts = opts.withDefaults()

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, eris.Wrap(err, "session: cookie jar")
	}
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	timeout := opts.Timeout
	if opts.Interactive {
		timeout = opts.InteractiveTimeout
	}

	retry := resilience.DefaultBackoff()
	if opts.Backoff != nil {
		retry = *opts.Backoff
	}
	retry.Attempts = opts.MaxRetries

	return &HTTPSession{
		opts:     opts,
		client:   &http.Client{Jar: jar, Timeout: timeout, Transport: transport},
		retry:    retry,
		log:      zap.L().With(zap.String("component", "session"), zap.String("session", opts.Name)),
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// Get fetches and parses a page.
func (s *HTTPSession) Get(ctx context.Context, rawURL string) (*Page, error) {
	return s.do(ctx, http.MethodGet, rawURL, nil)
}

// PostForm submits a url-encoded form and parses the response page.
func (s *HTTPSession) PostForm(ctx context.Context, rawURL string, form url.Values) (*Page, error) {
	return s.do(ctx, http.MethodPost, rawURL, form)
}

// Close releases idle connections. Later calls fail with ErrClosed.
func (s *HTTPSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.client.CloseIdleConnections()
	}
	return nil
}

func (s *HTTPSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *HTTPSession) limiterFor(host string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[host]
	if !ok {
		if s.opts.HostInterval > 0 {
			lim = rate.NewLimiter(rate.Every(s.opts.HostInterval), 1)
		} else {
			lim = rate.NewLimiter(rate.Inf, 1)
		}
		s.limiters[host] = lim
	}
	return lim
}

func (s *HTTPSession) do(ctx context.Context, method, rawURL string, form url.Values) (*Page, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, eris.Errorf("session: invalid url %q", rawURL)
	}

	b := s.retry
	b.OnRetry = resilience.LogRetry("session", u.Redacted())

	return resilience.DoVal(ctx, b, func(ctx context.Context) (*Page, error) {
		if err := s.limiterFor(u.Host).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "session: rate limiter wait")
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
		if err != nil {
			return nil, eris.Wrap(err, "session: create request")
		}
		req.Header.Set("User-Agent", s.opts.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, resilience.Transient(eris.Wrapf(err, "session: %s %s", method, u.Redacted()), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		page, err := readPage(resp)
		if err != nil {
			return nil, err
		}

		if page.Challenge != ChallengeNone {
			s.log.Debug("challenge detected", zap.String("url", page.URL), zap.String("challenge", string(page.Challenge)))
			return page, nil
		}
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(&StatusError{URL: page.URL, Code: resp.StatusCode}, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, &StatusError{URL: page.URL, Code: resp.StatusCode}
		}
		return page, nil
	})
}

// readPage decodes the body to UTF-8 using the declared or sniffed charset
// and parses it.
func readPage(resp *http.Response) (*Page, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "session: read body"), 0)
	}

	utf8Body := raw
	if r, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type")); err == nil {
		if decoded, err := io.ReadAll(r); err == nil {
			utf8Body = decoded
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return nil, eris.Wrap(err, "session: parse html")
	}

	return &Page{
		URL:       resp.Request.URL.String(),
		Status:    resp.StatusCode,
		Header:    resp.Header,
		Body:      utf8Body,
		Doc:       doc,
		Challenge: DetectChallenge(resp.StatusCode, resp.Header, utf8Body),
	}, nil
}
