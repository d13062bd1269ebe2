package site

import (
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/config"
	"github.com/sells-group/contractor-cli/internal/scraper"
)

// Options carries the runtime settings adapters need beyond the catalog.
type Options struct {
	Credentials          map[string]config.Credential
	AllowUnverifiedLogin bool
	// DefaultLocation applies to sites that name none.
	DefaultLocation scraper.Location
}

// Adapters builds one adapter per enabled site, in catalog order.
func (c *Catalog) Adapters(opts Options) ([]scraper.Adapter, error) {
	def := opts.DefaultLocation
	if def.IsZero() {
		def = scraper.ParseLocation(c.DefaultLocation)
	}

	var out []scraper.Adapter
	for _, s := range c.Sites {
		if s.Disabled {
			zap.L().Debug("site disabled", zap.String("adapter", s.Name))
			continue
		}
		cat, err := scraper.ParseCategory(s.Category)
		if err != nil {
			return nil, err
		}
		switch cat {
		case scraper.Authenticated:
			out = append(out, NewAuthAdapter(s, def, opts.Credentials[s.Name], opts.AllowUnverifiedLogin))
		case scraper.PublicRecords:
			out = append(out, NewRecordsAdapter(s, def))
		default:
			out = append(out, NewSelectorAdapter(s, cat, def))
		}
	}
	return out, nil
}

// Register adds the catalog's adapters to reg.
func Register(reg *scraper.Registry, c *Catalog, opts Options) error {
	adapters, err := c.Adapters(opts)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		reg.Register(a)
	}
	return nil
}
