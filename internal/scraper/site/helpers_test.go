package site

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/contractor-cli/internal/resilience"
	"github.com/sells-group/contractor-cli/internal/session"
)

func newTestSession(t *testing.T) *session.HTTPSession {
	t.Helper()
	s, err := session.NewHTTP(session.Options{
		Name:    "test",
		Backoff: &resilience.Backoff{Initial: time.Millisecond, Max: time.Millisecond},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func html(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}
