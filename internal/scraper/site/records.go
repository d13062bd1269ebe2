package site

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/scraper"
	"github.com/sells-group/contractor-cli/internal/session"
)

// RecordsAdapter fills in a public-records search form. A bot challenge
// on the form or the results is expected and yields no records rather than
// an error.
type RecordsAdapter struct {
	site   Site
	defLoc scraper.Location
	log    *zap.Logger
}

// NewRecordsAdapter creates an adapter for a public-records search form.
func NewRecordsAdapter(s Site, defaultLocation scraper.Location) *RecordsAdapter {
	if s.DefaultLocation != "" {
		defaultLocation = scraper.ParseLocation(s.DefaultLocation)
	}
	return &RecordsAdapter{
		site:   s,
		defLoc: defaultLocation,
		log:    zap.L().With(zap.String("component", "site"), zap.String("adapter", s.Name)),
	}
}

// Name implements scraper.Adapter.
func (a *RecordsAdapter) Name() string { return a.site.Name }

// Category implements scraper.Adapter.
func (a *RecordsAdapter) Category() scraper.Category { return scraper.PublicRecords }

// DefaultLocation implements scraper.DefaultLocator.
func (a *RecordsAdapter) DefaultLocation() scraper.Location { return a.defLoc }

// Scrape implements scraper.Adapter.
func (a *RecordsAdapter) Scrape(ctx context.Context, sess session.Session, loc scraper.Location) ([]contractor.RawRecord, error) {
	sf := a.site.Search
	formSel := sf.Form
	if formSel == "" {
		formSel = "form"
	}

	page, err := sess.Get(ctx, sf.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "site: %s search form", a.site.Name)
	}
	if a.blocked(page) {
		return []contractor.RawRecord{}, nil
	}

	form := page.Doc.Find(formSel).First()
	if form.Length() == 0 {
		return nil, eris.Errorf("site: %s search form %q not found", a.site.Name, formSel)
	}
	action := page.URL
	if href, ok := form.Attr("action"); ok && href != "" {
		action = page.Resolve(href)
	}

	values := url.Values{}
	for k, v := range session.HiddenFields(page.Doc, formSel) {
		values.Set(k, v)
	}
	for k, v := range sf.Fields {
		values.Set(k, expand(v, loc, 1, false))
	}

	var results *session.Page
	if strings.EqualFold(sf.Method, http.MethodGet) {
		u, perr := url.Parse(action)
		if perr != nil {
			return nil, eris.Wrapf(perr, "site: %s form action", a.site.Name)
		}
		u.RawQuery = values.Encode()
		results, err = sess.Get(ctx, u.String())
	} else {
		results, err = sess.PostForm(ctx, action, values)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "site: %s submit search", a.site.Name)
	}
	if a.blocked(results) {
		return []contractor.RawRecord{}, nil
	}

	recs, strategy := extract(results, a.site.Strategies)
	if recs == nil {
		recs = []contractor.RawRecord{}
	}
	tag(recs, a.site)
	a.log.Info("search complete", zap.String("strategy", strategy), zap.Int("records", len(recs)))
	return recs, nil
}

// blocked logs the challenge with the page's form fields so the form can be
// mapped by hand later.
func (a *RecordsAdapter) blocked(p *session.Page) bool {
	if p.Challenge == session.ChallengeNone {
		return false
	}
	a.log.Warn("bot challenge detected, skipping source",
		zap.String("challenge", string(p.Challenge)),
		zap.String("url", p.URL),
		zap.Strings("form_fields", session.FormFields(p.Doc)),
	)
	return true
}
