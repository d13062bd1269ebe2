package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contractor-cli/internal/config"
	"github.com/sells-group/contractor-cli/internal/scraper"
)

var phoenix = scraper.Location{City: "Phoenix", State: "AZ"}

func TestSelectorAdapter_FallsBackToSecondStrategy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/find", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Phoenix, AZ", r.URL.Query().Get("location"))
		html(w, `<div class="map">
			<span data-dealer-name="Acme Stone LLC" data-phone="480.555.1234" data-address="1 Stone Way, Tempe, AZ 85281"></span>
			<span data-dealer-name="Desert Pavers" data-phone=""></span>
		</div>`)
	})
	srv := newServer(t, mux)

	a := NewSelectorAdapter(Site{
		Name:          "belgard",
		SearchURL:     srv.URL + "/find?location={location}",
		Manufacturer:  "Belgard",
		Certification: "Belgard Authorized Contractor",
		Strategies: []Strategy{
			{Name: "cards", Item: ".dealer-card", Fields: Fields{BusinessName: "h3"}},
			{Name: "map", Item: "[data-dealer-name]", Fields: Fields{BusinessName: "@data-dealer-name", Phone: "@data-phone", Address: "@data-address"}},
		},
	}, scraper.Manufacturer, phoenix)

	recs, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Acme Stone LLC", recs[0].BusinessName)
	assert.Equal(t, "480.555.1234", recs[0].Phone)
	assert.Equal(t, "1 Stone Way, Tempe, AZ 85281", recs[0].Address)
	assert.Equal(t, []string{"Belgard"}, recs[0].Manufacturers)
	assert.Equal(t, []string{"Belgard Authorized Contractor"}, recs[1].Certifications)
	assert.Contains(t, recs[0].SourceURL, "/find")
}

func TestSelectorAdapter_PagesUntilEmpty(t *testing.T) {
	var (
		mu    sync.Mutex
		pages []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/pros", func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Query().Get("page")
		mu.Lock()
		pages = append(pages, p)
		mu.Unlock()
		if p == "3" {
			html(w, `<p>No more results</p>`)
			return
		}
		html(w, fmt.Sprintf(`<article class="pro">
			<h2>Pro %s</h2>
			<p>Call <a href="tel:+1480555000%s">us</a> or write info%s@pros.com</p>
			<div class="years">Serving since: 12 years</div>
			<ul class="tags"><li>Pavers, Walls</li><li>Fire Pits</li></ul>
		</article>`, p, p, p))
	})
	srv := newServer(t, mux)

	a := NewSelectorAdapter(Site{
		Name:      "houzz",
		SearchURL: srv.URL + "/pros?loc={location}&page={page}",
		MaxPages:  5,
		Strategies: []Strategy{{Item: "article.pro", Fields: Fields{
			BusinessName: "h2",
			Years:        ".years",
			Specialties:  ".tags li",
		}}},
	}, scraper.Directory, phoenix)

	recs, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"1", "2", "3"}, pages)
	mu.Unlock()
	require.Len(t, recs, 2)
	assert.Equal(t, "Pro 1", recs[0].BusinessName)
	assert.Equal(t, "+14805550001", recs[0].Phone)
	assert.Equal(t, "info1@pros.com", recs[0].Email)
	require.NotNil(t, recs[0].YearsInBusiness)
	assert.Equal(t, 12, *recs[0].YearsInBusiness)
	assert.Equal(t, []string{"Pavers", "Walls", "Fire Pits"}, recs[0].Specialties)
}

func TestSelectorAdapter_FollowsNextLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/members", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("p") == "2" {
			html(w, `<table class="m"><tr><td class="co">Second Co</td><td><a href="mailto:hi@second.co">mail</a></td></tr></table>`)
			return
		}
		html(w, `<table class="m"><tr><td class="co">First Co</td><td><a class="web" href="https://first.co/">site</a></td></tr></table>
			<a rel="next" href="/members?p=2">next</a>`)
	})
	srv := newServer(t, mux)

	a := NewSelectorAdapter(Site{
		Name:         "icpi",
		SearchURL:    srv.URL + "/members",
		NextSelector: "a[rel='next']",
		Strategies:   []Strategy{{Item: "table.m tr", Fields: Fields{BusinessName: "td.co", Website: "a.web@href"}}},
	}, scraper.Association, phoenix)

	recs, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "https://first.co/", recs[0].Website)
	assert.Equal(t, "Second Co", recs[1].BusinessName)
	assert.Equal(t, "mailto:hi@second.co", recs[1].Email)
}

func TestSelectorAdapter_FirstPageErrorFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := newServer(t, mux)

	a := NewSelectorAdapter(Site{
		Name:       "gone",
		SearchURL:  srv.URL + "/x",
		Strategies: []Strategy{{Item: "div", Fields: Fields{BusinessName: "h2"}}},
	}, scraper.Local, phoenix)

	recs, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.Error(t, err)
	assert.Nil(t, recs)
}

func TestSelectorAdapter_NoResultsIsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		html(w, `<p>Nothing near you</p>`)
	})
	srv := newServer(t, mux)

	a := NewSelectorAdapter(Site{
		Name:       "empty",
		SearchURL:  srv.URL + "/",
		Strategies: []Strategy{{Item: ".card", Fields: Fields{BusinessName: "h2"}}},
	}, scraper.Local, phoenix)

	recs, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func loginServer(t *testing.T, welcome bool) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			html(w, `<form id="login" action="/session">
				<input type="hidden" name="csrf" value="tok-1">
				<input name="email"><input type="password" name="password">
			</form>`)
			return
		}
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("csrf") != "tok-1" || r.PostForm.Get("password") != "secret" {
			html(w, `<div class="login-error">Invalid credentials</div>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "member", Value: "1", Path: "/"})
		if welcome {
			html(w, `<a class="logout" href="/logout">Log out</a>`)
			return
		}
		html(w, `<p>Thanks</p>`)
	})
	mux.HandleFunc("/directory", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("member"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		html(w, `<div class="row"><span class="company">Acme Stone</span><span class="phone">480-555-1234</span></div>`)
	})
	return newServer(t, mux).URL
}

func authSite(base string) Site {
	return Site{
		Name:      "ncma_members",
		SearchURL: base + "/directory?state={state}",
		Login: &Login{
			URL:             base + "/login",
			Form:            "form#login",
			UsernameField:   "email",
			PasswordField:   "password",
			SuccessSelector: "a.logout",
			FailureSelector: ".login-error",
		},
		Strategies: []Strategy{{Item: ".row", Fields: Fields{BusinessName: ".company", Phone: ".phone"}}},
	}
}

func TestAuthAdapter_LoginThenSearch(t *testing.T) {
	base := loginServer(t, true)
	a := NewAuthAdapter(authSite(base), phoenix, config.Credential{Username: "pro@acme.com", Password: "secret"}, false)

	recs, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Acme Stone", recs[0].BusinessName)
	assert.Equal(t, scraper.Authenticated, a.Category())
}

func TestAuthAdapter_UnconfirmedLoginFails(t *testing.T) {
	base := loginServer(t, false)
	a := NewAuthAdapter(authSite(base), phoenix, config.Credential{Username: "pro@acme.com", Password: "secret"}, false)

	recs, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginUnconfirmed))
	assert.Nil(t, recs)
}

func TestAuthAdapter_UnconfirmedLoginAllowed(t *testing.T) {
	base := loginServer(t, false)
	a := NewAuthAdapter(authSite(base), phoenix, config.Credential{Username: "pro@acme.com", Password: "secret"}, true)

	recs, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestAuthAdapter_Rejected(t *testing.T) {
	base := loginServer(t, true)
	a := NewAuthAdapter(authSite(base), phoenix, config.Credential{Username: "pro@acme.com", Password: "wrong"}, true)

	_, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginRejected))
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestAuthAdapter_NoCredentials(t *testing.T) {
	a := NewAuthAdapter(authSite("http://127.0.0.1:1"), phoenix, config.Credential{}, true)
	_, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	assert.True(t, errors.Is(err, ErrNoCredentials))
}

func TestRecordsAdapter_SubmitsSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			html(w, `<form id="contractor-search" action="/results"><input type="hidden" name="__VIEWSTATE" value="vs"></form>`)
			return
		}
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "vs", r.PostForm.Get("__VIEWSTATE"))
		assert.Equal(t, "Tempe", r.PostForm.Get("city"))
		assert.Equal(t, "CR-23", r.PostForm.Get("classification"))
		html(w, `<table class="results"><tbody>
			<tr><td class="business-name">ACME STONE</td><td class="license-number">ROC 123</td><td class="address">1 Stone Way, Tempe, AZ 85281</td></tr>
		</tbody></table>`)
	})
	srv := newServer(t, mux)

	a := NewRecordsAdapter(Site{
		Name: "az_roc",
		Search: &SearchForm{
			URL:    srv.URL + "/search",
			Form:   "form#contractor-search",
			Fields: map[string]string{"city": "{city}", "classification": "CR-23"},
		},
		Strategies: []Strategy{{Item: "table.results tbody tr", Fields: Fields{
			BusinessName: "td.business-name",
			License:      "td.license-number",
			Address:      "td.address",
		}}},
	}, phoenix)

	recs, err := a.Scrape(context.Background(), newTestSession(t), scraper.Location{City: "Tempe", State: "AZ"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ROC123", recs[0].LicenseNumber)
	assert.Equal(t, "ACME STONE", recs[0].BusinessName)
}

func TestRecordsAdapter_GetMethod(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("zip") == "" {
			html(w, `<form action="/search"><input name="zip"></form>`)
			return
		}
		assert.Equal(t, "85281", r.URL.Query().Get("zip"))
		html(w, `<div class="hit"><b>Desert Tile</b></div>`)
	})
	srv := newServer(t, mux)

	a := NewRecordsAdapter(Site{
		Name:       "county",
		Search:     &SearchForm{URL: srv.URL + "/search", Method: "get", Fields: map[string]string{"zip": "{zip}"}},
		Strategies: []Strategy{{Item: ".hit", Fields: Fields{BusinessName: "b"}}},
	}, phoenix)

	recs, err := a.Scrape(context.Background(), newTestSession(t), scraper.Location{Zip: "85281"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Desert Tile", recs[0].BusinessName)
}

func TestRecordsAdapter_ChallengeYieldsEmpty(t *testing.T) {
	var posted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posted.Store(true)
		}
		html(w, `<form id="contractor-search"><input name="license"><div class="g-recaptcha" data-sitekey="k"></div></form>`)
	})
	srv := newServer(t, mux)

	a := NewRecordsAdapter(Site{
		Name:       "az_roc",
		Search:     &SearchForm{URL: srv.URL + "/search", Form: "form#contractor-search"},
		Strategies: []Strategy{{Item: "tr", Fields: Fields{BusinessName: "td"}}},
	}, phoenix)

	recs, err := a.Scrape(context.Background(), newTestSession(t), phoenix)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
	assert.False(t, posted.Load())
}

func TestLicenseNumber(t *testing.T) {
	tests := map[string]string{
		"ROC123":               "ROC123",
		"License: ROC #123456": "ROC123456",
		"roc 318200":           "ROC318200",
		"Lic. 2345":            "2345",
		"":                     "",
		"not listed":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, licenseNumber(in), in)
	}
}
