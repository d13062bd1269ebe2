package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/contractor-cli/internal/resilience"
)

// ErrTooManyRedirects is returned when a download exceeds MaxRedirects.
var ErrTooManyRedirects = errors.New("fetcher: too many redirects")

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// MaxRedirects caps followed redirects. Negative disables redirects.
	MaxRedirects int
	// HostInterval is the minimum spacing between requests to one host.
	HostInterval time.Duration
	// Backoff overrides the retry schedule; Attempts comes from MaxRetries.
	Backoff *resilience.Backoff
}

// HTTPFetcher implements Fetcher using net/http with retry and per-host
// rate limiting.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	retry  resilience.Backoff

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "contractor-cli/1.0"
	}

	retry := resilience.DefaultBackoff()
	if opts.Backoff != nil {
		retry = *opts.Backoff
	}
	retry.Attempts = opts.MaxRetries

	f := &HTTPFetcher{
		opts:     opts,
		retry:    retry,
		limiters: make(map[string]*rate.Limiter),
	}
	f.client = &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: f.checkRedirect,
	}
	return f
}

func (f *HTTPFetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if f.opts.MaxRedirects < 0 || len(via) > f.opts.MaxRedirects {
		zap.L().Warn("redirect limit reached",
			zap.String("to", req.URL.Redacted()),
			zap.Int("redirects", len(via)),
		)
		return ErrTooManyRedirects
	}
	zap.L().Debug("following redirect",
		zap.String("from", via[len(via)-1].URL.Redacted()),
		zap.String("to", req.URL.Redacted()),
	)
	return nil
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil || f.opts.HostInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(f.opts.HostInterval), 1)
		f.limiters[u.Host] = lim
	}
	return lim
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	b := f.retry
	b.OnRetry = resilience.LogRetry("fetcher", req.URL.Redacted())

	return resilience.DoVal(ctx, b, func(ctx context.Context) (*http.Response, error) {
		if err := f.limiterFor(req.URL.String()).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			if errors.Is(err, ErrTooManyRedirects) {
				return nil, err
			}
			return nil, resilience.Transient(eris.Wrap(err, "fetcher: request"), 0)
		}

		if resilience.RetryableStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			return nil, resilience.Transient(
				eris.Errorf("fetcher: http %d from %s", resp.StatusCode, req.URL.Redacted()),
				resp.StatusCode,
			)
		}
		return resp, nil
	})
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: download")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, req.URL.Redacted())
	}

	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes it to the given path. A partial
// file is removed on failure.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}

	n, err := io.Copy(file, body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, eris.Wrap(err, "fetcher: write file")
	}

	return n, nil
}
