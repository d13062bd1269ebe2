// Package site implements source adapters driven by a declarative catalog
// of CSS selector recipes. The catalog ships embedded and can be extended
// or overridden from a YAML file without a rebuild.
package site

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contractor-cli/internal/scraper"
)

//go:embed sites.yaml
var embeddedCatalog []byte

// Catalog is the list of configured sources.
type Catalog struct {
	DefaultLocation string `yaml:"default_location"`
	Sites           []Site `yaml:"sites"`
}

// Site describes one source.
type Site struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	// SearchURL may contain {location}, {city}, {state}, {zip} and {page}.
	SearchURL       string `yaml:"search_url"`
	DefaultLocation string `yaml:"default_location"`
	MaxPages        int    `yaml:"max_pages"`
	NextSelector    string `yaml:"next_selector"`
	// Manufacturer and Certification tag every record from a vendor or
	// association roster.
	Manufacturer  string      `yaml:"manufacturer"`
	Certification string      `yaml:"certification"`
	Strategies    []Strategy  `yaml:"strategies"`
	Login         *Login      `yaml:"login"`
	Search        *SearchForm `yaml:"search"`
	Disabled      bool        `yaml:"disabled"`
}

// Strategy is one way of reading result items off a page. Strategies are
// tried in order until one yields records.
type Strategy struct {
	Name   string `yaml:"name"`
	Item   string `yaml:"item"`
	Fields Fields `yaml:"fields"`
}

// Fields maps record fields to selectors relative to an item. A selector
// is "css" for element text, "css@attr" for an attribute or "@attr" for an
// attribute of the item itself.
type Fields struct {
	Name           string `yaml:"name"`
	BusinessName   string `yaml:"business_name"`
	Phone          string `yaml:"phone"`
	Email          string `yaml:"email"`
	Website        string `yaml:"website"`
	Address        string `yaml:"address"`
	Description    string `yaml:"description"`
	License        string `yaml:"license"`
	Years          string `yaml:"years"`
	Specialties    string `yaml:"specialties"`
	Certifications string `yaml:"certifications"`
}

// Login describes a member login form.
type Login struct {
	URL             string `yaml:"url"`
	Form            string `yaml:"form"`
	UsernameField   string `yaml:"username_field"`
	PasswordField   string `yaml:"password_field"`
	SuccessSelector string `yaml:"success_selector"`
	FailureSelector string `yaml:"failure_selector"`
}

// SearchForm describes a public-records search form. Field values may use
// the same placeholders as SearchURL.
type SearchForm struct {
	URL    string            `yaml:"url"`
	Form   string            `yaml:"form"`
	Method string            `yaml:"method"`
	Fields map[string]string `yaml:"fields"`
}

// LoadCatalog parses the embedded catalog and, when path is set, merges the
// sites of that file over it: a site with a known name replaces the
// embedded entry, new names are appended.
func LoadCatalog(path string) (*Catalog, error) {
	cat, err := ParseCatalog(embeddedCatalog)
	if err != nil {
		return nil, eris.Wrap(err, "site: embedded catalog")
	}
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "site: read catalog %s", path)
	}
	override, err := ParseCatalog(data)
	if err != nil {
		return nil, eris.Wrapf(err, "site: catalog %s", path)
	}
	cat.merge(override)
	return cat, nil
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, eris.Wrap(err, "site: parse catalog")
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) merge(o *Catalog) {
	if o.DefaultLocation != "" {
		c.DefaultLocation = o.DefaultLocation
	}
	pos := make(map[string]int, len(c.Sites))
	for i, s := range c.Sites {
		pos[s.Name] = i
	}
	for _, s := range o.Sites {
		if i, ok := pos[s.Name]; ok {
			c.Sites[i] = s
			continue
		}
		pos[s.Name] = len(c.Sites)
		c.Sites = append(c.Sites, s)
	}
}

// Validate checks every site for the pieces its category needs.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool)
	var problems []string
	for i, s := range c.Sites {
		label := s.Name
		if label == "" {
			label = "#" + strconv.Itoa(i)
			problems = append(problems, label+": missing name")
		}
		if seen[s.Name] {
			problems = append(problems, label+": duplicate name")
		}
		seen[s.Name] = true

		cat, err := scraper.ParseCategory(s.Category)
		if err != nil {
			problems = append(problems, label+": "+err.Error())
			continue
		}
		if len(s.Strategies) == 0 {
			problems = append(problems, label+": no strategies")
		}
		for _, st := range s.Strategies {
			if st.Item == "" || (st.Fields.BusinessName == "" && st.Fields.Name == "") {
				problems = append(problems, label+": strategy "+st.Name+" needs item and a name field")
			}
		}
		switch cat {
		case scraper.Authenticated:
			if s.Login == nil || s.Login.URL == "" {
				problems = append(problems, label+": authenticated site needs login.url")
			}
			if s.SearchURL == "" {
				problems = append(problems, label+": missing search_url")
			}
		case scraper.PublicRecords:
			if s.Search == nil || s.Search.URL == "" {
				problems = append(problems, label+": public records site needs search.url")
			}
		default:
			if s.SearchURL == "" {
				problems = append(problems, label+": missing search_url")
			}
		}
	}
	if len(problems) > 0 {
		return eris.Errorf("site: invalid catalog: %s", strings.Join(problems, "; "))
	}
	return nil
}
