package xref

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/normalize"
	"github.com/sells-group/contractor-cli/internal/session"
)

// DefaultResultSelector matches one search hit on a directory results page.
const DefaultResultSelector = ".result, .listing, .search-result"

// DirectoryLookup queries a web directory's search page. The search URL
// template may use {query}, {city} and {state}.
type DirectoryLookup struct {
	sess     session.Session
	template string
	item     string
	log      *zap.Logger
}

// NewDirectoryLookup creates a lookup over sess. An empty item selector
// uses DefaultResultSelector.
func NewDirectoryLookup(sess session.Session, searchURL, item string) *DirectoryLookup {
	if item == "" {
		item = DefaultResultSelector
	}
	return &DirectoryLookup{
		sess:     sess,
		template: searchURL,
		item:     item,
		log:      zap.L().With(zap.String("component", "xref"), zap.String("lookup", "directory")),
	}
}

// Name implements Lookup.
func (d *DirectoryLookup) Name() string { return "directory" }

func (d *DirectoryLookup) searchURL(q Query) string {
	return strings.NewReplacer(
		"{query}", url.QueryEscape(q.Key.Value),
		"{city}", url.QueryEscape(q.City),
		"{state}", url.QueryEscape(q.State),
	).Replace(d.template)
}

// Find implements Lookup. The first result carrying any contact data
// wins. A bot challenge is a miss.
func (d *DirectoryLookup) Find(ctx context.Context, q Query) (Contact, error) {
	page, err := d.sess.Get(ctx, d.searchURL(q))
	if err != nil {
		return Contact{}, eris.Wrapf(err, "xref: directory search %q", q.Key.Value)
	}
	if page.Challenge != session.ChallengeNone {
		d.log.Warn("directory search blocked",
			zap.String("challenge", string(page.Challenge)),
			zap.String("url", page.URL),
			zap.Strings("form_fields", session.FormFields(page.Doc)),
		)
		return Contact{}, nil
	}

	var found Contact
	page.Doc.Find(d.item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = contactFrom(page, s)
		return found.IsZero()
	})
	found.Source = d.Name()
	return found, nil
}

// contactFrom reads tel:, mailto: and outbound links from a result, with
// text scanning as the fallback for phone and email.
func contactFrom(page *session.Page, s *goquery.Selection) Contact {
	var c Contact
	s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "tel:"):
			if c.Phone == "" {
				c.Phone = normalize.Phone(href)
			}
		case strings.HasPrefix(lower, "mailto:"):
			if c.Email == "" {
				c.Email = normalize.Email(href)
			}
		case c.Website == "" && isOutbound(page.URL, page.Resolve(href)):
			c.Website = normalize.Website(page.Resolve(href))
		}
	})

	text := s.Text()
	if c.Phone == "" {
		c.Phone = normalize.ExtractPhone(text)
	}
	if c.Email == "" {
		c.Email = normalize.ExtractEmail(text)
	}
	return c
}

// isOutbound reports whether link points off the directory's own host.
func isOutbound(pageURL, link string) bool {
	p, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	l, err := url.Parse(link)
	if err != nil || l.Host == "" {
		return false
	}
	return (l.Scheme == "http" || l.Scheme == "https") && !strings.EqualFold(l.Hostname(), p.Hostname())
}
