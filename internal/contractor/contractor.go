// Package contractor defines the contractor records that flow through the
// pipeline and the store that persists them.
package contractor

import (
	"time"
)

// Authority ranks how far a source is trusted for license facts. Only the
// license feed may overwrite license fields on an existing record.
type Authority int

const (
	// AuthorityScrape marks directory, vendor and association pages.
	AuthorityScrape Authority = iota
	// AuthorityCrossRef marks contact data found by the cross-reference pass.
	AuthorityCrossRef
	// AuthorityLicenseFeed marks the government license registry.
	AuthorityLicenseFeed
)

func (a Authority) String() string {
	switch a {
	case AuthorityScrape:
		return "scrape"
	case AuthorityCrossRef:
		return "crossref"
	case AuthorityLicenseFeed:
		return "license_feed"
	default:
		return "unknown"
	}
}

// RawRecord is what a source adapter extracts from a page, before any
// normalization.
type RawRecord struct {
	Name            string
	BusinessName    string
	Phone           string
	Email           string
	Website         string
	Address         string
	Specialties     []string
	Certifications  []string
	Manufacturers   []string
	Description     string
	YearsInBusiness *int
	LicenseNumber   string
	SourceURL       string
}

// License holds registry facts about a contractor license.
type License struct {
	Number      string
	Class       string
	ClassDetail string
	ClassType   string
	Status      string
	Issued      *time.Time
	Expires     *time.Time
}

// Contractor is the persisted, reconciled entity. Records are never deleted
// by the pipeline.
type Contractor struct {
	ID        string
	AccountID string

	BusinessName string
	DisplayName  string
	ContactName  string
	NameKey      string

	Phone   string
	Email   string
	Website string

	Street    string
	City      string
	State     string
	Zip       string
	Latitude  *float64
	Longitude *float64

	Specialties     []string
	Categories      []string
	Certifications  []string
	Manufacturers   []string
	Description     string
	YearsInBusiness *int

	LicenseNumber      string
	LicenseClass       string
	LicenseClassDetail string
	LicenseClassType   string
	LicenseStatus      string
	LicenseIssued      *time.Time
	LicenseExpires     *time.Time
	LicenseVerified    bool
	IsVerified         bool

	Sources        []string
	LastSource     string
	LastImportedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddressLine joins the stored address parts for geocoding.
func (c *Contractor) AddressLine() string {
	line := c.Street
	for _, p := range []string{c.City, joinNonEmpty(c.State, c.Zip)} {
		if p == "" {
			continue
		}
		if line != "" {
			line += ", "
		}
		line += p
	}
	return line
}

// MissingContact reports whether any of phone, email or website is empty.
func (c *Contractor) MissingContact() bool {
	return c.Phone == "" || c.Email == "" || c.Website == ""
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

// RunStatus is the lifecycle state of an ImportRun.
type RunStatus string

// ImportRun statuses.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ImportRun records the counts of one bulk feed import. Processed is
// expected to equal New + Updated + Errors.
type ImportRun struct {
	ID         string
	Source     string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Processed  int
	New        int
	Updated    int
	Errors     int
	Skipped    int
	Error      string
}

// Balanced reports whether the counts add up.
func (r *ImportRun) Balanced() bool {
	return r.Processed == r.New+r.Updated+r.Errors
}
