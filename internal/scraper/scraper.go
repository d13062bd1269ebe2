// Package scraper runs source adapters against contractor directories,
// vendor dealer locators, association rosters and public records, and folds
// their output into one deduplicated candidate set per run.
package scraper

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/normalize"
	"github.com/sells-group/contractor-cli/internal/session"
)

// Category groups adapters by the kind of source they read.
type Category int

const (
	// Manufacturer covers vendor dealer locators.
	Manufacturer Category = iota + 1
	// Directory covers general business directories.
	Directory
	// Association covers trade and industry association rosters.
	Association
	// Local covers local listing sites.
	Local
	// Authenticated covers member-only sources that need a login.
	Authenticated
	// PublicRecords covers government search forms.
	PublicRecords
)

// Categories lists every category in run order.
var Categories = []Category{Manufacturer, Directory, Association, Local, Authenticated, PublicRecords}

// String returns the category name used in config and logs.
func (c Category) String() string {
	switch c {
	case Manufacturer:
		return "manufacturer"
	case Directory:
		return "directory"
	case Association:
		return "association"
	case Local:
		return "local"
	case Authenticated:
		return "authenticated"
	case PublicRecords:
		return "public_records"
	default:
		return "unknown"
	}
}

// Interactive reports whether adapters in the category run on the separate
// long-timeout session.
func (c Category) Interactive() bool {
	return c == Authenticated || c == PublicRecords
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manufacturer", "manufacturers":
		return Manufacturer, nil
	case "directory", "directories":
		return Directory, nil
	case "association", "associations":
		return Association, nil
	case "local":
		return Local, nil
	case "authenticated", "auth":
		return Authenticated, nil
	case "public_records", "public-records", "records":
		return PublicRecords, nil
	default:
		return 0, eris.Errorf("unknown category: %q (valid: manufacturer, directory, association, local, authenticated, public_records)", s)
	}
}

// Location is the search area hint handed to adapters.
type Location struct {
	City  string
	State string
	Zip   string
}

// ParseLocation reads "City, ST", "City, ST 85281", "85281", "ST" or a bare
// city name.
func ParseLocation(s string) Location {
	s = normalize.Collapse(s)
	if s == "" {
		return Location{}
	}
	if !strings.Contains(s, ",") {
		if z := normalize.Zip(s); z != "" {
			return Location{Zip: z}
		}
		if st := normalize.State(s); st != "" {
			return Location{State: st}
		}
		return Location{City: normalize.City(s)}
	}
	a := normalize.ParseAddress(s)
	if a.Street != "" && a.City == "" {
		return Location{City: normalize.City(a.Street), State: a.State, Zip: a.Zip}
	}
	return Location{City: a.City, State: a.State, Zip: a.Zip}
}

// IsZero reports whether no part of the location is set.
func (l Location) IsZero() bool {
	return l.City == "" && l.State == "" && l.Zip == ""
}

// String formats the location the way search forms expect it.
func (l Location) String() string {
	var b strings.Builder
	b.WriteString(l.City)
	if l.State != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(l.State)
	}
	if l.Zip != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(l.Zip)
	}
	return b.String()
}

// Adapter extracts raw records from one source.
type Adapter interface {
	// Name returns the unique source identifier (e.g. "belgard", "roc").
	Name() string

	// Category returns the kind of source.
	Category() Category

	// Scrape returns the records found for loc. No results is an empty
	// slice and a nil error. Failures are returned, never panicked.
	Scrape(ctx context.Context, sess session.Session, loc Location) ([]contractor.RawRecord, error)
}

// DefaultLocator is implemented by adapters that have their own search area
// when the run gives none.
type DefaultLocator interface {
	DefaultLocation() Location
}
