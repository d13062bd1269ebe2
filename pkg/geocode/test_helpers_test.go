package geocode

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/contractor-cli/internal/resilience"
)

// newTestClient builds a Client whose Census and Google URLs are redirected
// to the given test servers. An empty server URL leaves that provider alone.
func newTestClient(censusSrv, googleSrv string, opts ...Option) *Client {
	rewrites := map[string]string{}
	if censusSrv != "" {
		rewrites[censusOneLineURL] = censusSrv
	}
	if googleSrv != "" {
		rewrites[googleGeocodeURL] = googleSrv
	}
	c := &Client{
		httpClient: &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, rewrites: rewrites}},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		cache:      newCache(100),
		census:     resilience.NewBreaker("test.census", 2, time.Hour),
		google:     resilience.NewBreaker("test.google", 2, time.Hour),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rewriteTransport redirects requests whose URL starts with a known prefix
// to a test server.
type rewriteTransport struct {
	base     http.RoundTripper
	rewrites map[string]string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	for prefix, target := range t.rewrites {
		if !strings.HasPrefix(origURL, prefix) {
			continue
		}
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(target + origURL[len(prefix):])
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}
