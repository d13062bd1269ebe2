package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contractor-cli/internal/resilience"
)

func newTestSession(t *testing.T, opts Options) *HTTPSession {
	t.Helper()
	if opts.Backoff == nil {
		opts.Backoff = &resilience.Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond}
	}
	s, err := NewHTTP(opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGet_ParsesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body><h1>  Acme
			Stone </h1><a class="next" href="/page/2">next</a></body></html>`)
	}))
	defer srv.Close()

	s := newTestSession(t, Options{UserAgent: "test-agent"})
	page, err := s.Get(context.Background(), srv.URL+"/dir")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Equal(t, "Acme Stone", page.Text("h1"))
	assert.Equal(t, srv.URL+"/page/2", page.Resolve(page.Doc.Find("a.next").AttrOr("href", "")))
	assert.Equal(t, ChallengeNone, page.Challenge)
}

func TestGet_DecodesLatin1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body><p>Pe\xf1a Masonry</p></body></html>"))
	}))
	defer srv.Close()

	page, err := newTestSession(t, Options{}).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Peña Masonry", page.Text("p"))
}

func TestCookiesPersistAcrossRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pro", r.PostForm.Get("user"))
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		_, _ = io.WriteString(w, `<div class="welcome">hi</div>`)
	})
	mux.HandleFunc("/members", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `<ul><li>member</li></ul>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t, Options{})
	ctx := context.Background()

	_, err := s.Get(ctx, srv.URL+"/members")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)

	_, err = s.PostForm(ctx, srv.URL+"/login", url.Values{"user": {"pro"}})
	require.NoError(t, err)

	page, err := s.Get(ctx, srv.URL+"/members")
	require.NoError(t, err)
	assert.Equal(t, "member", page.Text("li"))
}

func TestGet_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "<p>ok</p>")
	}))
	defer srv.Close()

	page, err := newTestSession(t, Options{MaxRetries: 2}).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", page.Text("p"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_ChallengeReturnsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "<html>Checking your browser</html>")
	}))
	defer srv.Close()

	page, err := newTestSession(t, Options{}).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, ChallengeCloudflare, page.Challenge)
	assert.Equal(t, http.StatusForbidden, page.Status)
}

func TestClose(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err := s.Get(context.Background(), "http://example.com")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGet_InvalidURL(t *testing.T) {
	_, err := newTestSession(t, Options{}).Get(context.Background(), "not a url")
	require.Error(t, err)
}

func TestHTTPOpener_MergesBase(t *testing.T) {
	o := &HTTPOpener{Base: Options{UserAgent: "base-agent", Timeout: 7 * time.Second, InteractiveTimeout: time.Minute}}

	sess, err := o.Open(context.Background(), Options{Name: "belgard"})
	require.NoError(t, err)
	hs := sess.(*HTTPSession)
	assert.Equal(t, "base-agent", hs.opts.UserAgent)
	assert.Equal(t, 7*time.Second, hs.client.Timeout)

	sess, err = o.Open(context.Background(), Options{Name: "roc", Interactive: true})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, sess.(*HTTPSession).client.Timeout)
}

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   ChallengeType
	}{
		{"cf header", 403, http.Header{"Cf-Ray": {"x"}}, "", ChallengeCloudflare},
		{"cf body", 200, http.Header{}, "Checking your browser before accessing", ChallengeCloudflare},
		{"recaptcha", 200, http.Header{}, `<div class="g-recaptcha" data-sitekey="k"></div>`, ChallengeCaptcha},
		{"js shell", 200, http.Header{}, "<noscript>Please enable JavaScript</noscript>", ChallengeJSShell},
		{"clean", 200, http.Header{}, "<html><body>Contractor search</body></html>", ChallengeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectChallenge(tt.status, tt.header, []byte(tt.body)))
		})
	}
}

func TestFormFieldsAndHiddenFields(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<form id="search">
			<input type="hidden" name="__VIEWSTATE" value="vs1">
			<input type="text" name="license">
			<select name="class"></select>
		</form>`))
	require.NoError(t, err)

	assert.Equal(t, []string{"__VIEWSTATE:hidden", "license:text", "class"}, FormFields(doc))
	assert.Equal(t, map[string]string{"__VIEWSTATE": "vs1"}, HiddenFields(doc, "form#search"))
	assert.Nil(t, FormFields(nil))
	assert.Empty(t, HiddenFields(nil, "form"))
}
