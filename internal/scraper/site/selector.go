package site

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/scraper"
	"github.com/sells-group/contractor-cli/internal/session"
)

const defaultMaxPages = 5

// SelectorAdapter reads an unauthenticated search results page, following
// pagination up to MaxPages.
type SelectorAdapter struct {
	site     Site
	category scraper.Category
	defLoc   scraper.Location
	log      *zap.Logger
}

// NewSelectorAdapter creates an adapter for an unauthenticated site.
func NewSelectorAdapter(s Site, cat scraper.Category, defaultLocation scraper.Location) *SelectorAdapter {
	if s.DefaultLocation != "" {
		defaultLocation = scraper.ParseLocation(s.DefaultLocation)
	}
	return &SelectorAdapter{
		site:     s,
		category: cat,
		defLoc:   defaultLocation,
		log:      zap.L().With(zap.String("component", "site"), zap.String("adapter", s.Name)),
	}
}

// Name implements scraper.Adapter.
func (a *SelectorAdapter) Name() string { return a.site.Name }

// Category implements scraper.Adapter.
func (a *SelectorAdapter) Category() scraper.Category { return a.category }

// DefaultLocation implements scraper.DefaultLocator.
func (a *SelectorAdapter) DefaultLocation() scraper.Location { return a.defLoc }

// Scrape implements scraper.Adapter.
func (a *SelectorAdapter) Scrape(ctx context.Context, sess session.Session, loc scraper.Location) ([]contractor.RawRecord, error) {
	return a.search(ctx, sess, loc)
}

func (a *SelectorAdapter) search(ctx context.Context, sess session.Session, loc scraper.Location) ([]contractor.RawRecord, error) {
	maxPages := a.site.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	paged := strings.Contains(a.site.SearchURL, "{page}")

	out := []contractor.RawRecord{}
	next := expand(a.site.SearchURL, loc, 1, true)
	visited := map[string]bool{}

	for page := 1; page <= maxPages && next != ""; page++ {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "site: search cancelled")
		}
		if visited[next] {
			break
		}
		visited[next] = true

		p, err := sess.Get(ctx, next)
		if err != nil {
			if page == 1 {
				return nil, eris.Wrapf(err, "site: %s search", a.site.Name)
			}
			a.log.Warn("stopping pagination", zap.Int("page", page), zap.Error(err))
			break
		}

		recs, strategy := extract(p, a.site.Strategies)
		if len(recs) == 0 {
			if p.Challenge != session.ChallengeNone {
				a.log.Warn("bot challenge on results page",
					zap.String("challenge", string(p.Challenge)),
					zap.String("url", p.URL),
				)
			} else if page == 1 {
				a.log.Info("no results", zap.String("url", p.URL))
			}
			break
		}
		tag(recs, a.site)
		out = append(out, recs...)
		a.log.Debug("page extracted",
			zap.Int("page", page),
			zap.String("strategy", strategy),
			zap.Int("records", len(recs)),
		)

		switch {
		case a.site.NextSelector != "":
			href, ok := p.Doc.Find(a.site.NextSelector).First().Attr("href")
			next = ""
			if ok {
				next = p.Resolve(href)
			}
		case paged:
			next = expand(a.site.SearchURL, loc, page+1, true)
		default:
			next = ""
		}
	}
	return out, nil
}
