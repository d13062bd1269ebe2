package reconcile

import (
	"slices"
	"time"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/normalize"
)

// NewContractor builds the first stored version of a candidate.
func NewContractor(c *contractor.Candidate, now time.Time) *contractor.Contractor {
	rec := &contractor.Contractor{BusinessName: c.BusinessName}
	Merge(rec, c, now)
	return rec
}

// Merge folds a candidate into a stored record without destroying data:
// empty fields are filled, sets are unioned, and existing values are kept.
// License facts are the exception; the license feed overwrites them. It
// reports whether any descriptive field changed.
func Merge(rec *contractor.Contractor, c *contractor.Candidate, now time.Time) bool {
	changed := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	union := func(dst *[]string, add []string) {
		merged := normalize.Set(*dst, add)
		if len(merged) != len(*dst) {
			changed = true
		}
		*dst = merged
	}

	fill(&rec.BusinessName, c.BusinessName)
	if c.DBA != "" {
		fill(&rec.DisplayName, c.DBA)
	}
	if c.Name != "" && c.Name != c.BusinessName {
		fill(&rec.ContactName, c.Name)
	}

	fill(&rec.Phone, c.Phone)
	fill(&rec.Email, c.Email)
	fill(&rec.Website, c.Website)

	if rec.Street == "" && rec.City == "" && !c.Address.IsZero() {
		rec.Street, rec.City, rec.State, rec.Zip = c.Address.Street, c.Address.City, c.Address.State, c.Address.Zip
		changed = true
	} else {
		fill(&rec.Street, c.Address.Street)
		fill(&rec.City, c.Address.City)
		fill(&rec.State, c.Address.State)
		fill(&rec.Zip, c.Address.Zip)
	}

	union(&rec.Specialties, c.Specialties)
	union(&rec.Categories, c.Categories)
	union(&rec.Certifications, c.Certifications)
	union(&rec.Manufacturers, c.Manufacturers)
	fill(&rec.Description, c.Description)

	if c.Authority == contractor.AuthorityLicenseFeed {
		if mergeLicense(rec, c) {
			changed = true
		}
	} else {
		fill(&rec.LicenseNumber, c.License.Number)
		if rec.YearsInBusiness == nil && c.YearsInBusiness != nil {
			y := *c.YearsInBusiness
			rec.YearsInBusiness = &y
			changed = true
		}
	}

	if c.Source != "" && !slices.Contains(rec.Sources, c.Source) {
		rec.Sources = append(slices.Clone(rec.Sources), c.Source)
		slices.Sort(rec.Sources)
		changed = true
	}
	rec.LastSource = c.Source
	t := now.UTC()
	rec.LastImportedAt = &t
	return changed
}

// mergeLicense copies registry facts onto the record. Years in business is
// derived from the issue date, so it follows the feed too.
func mergeLicense(rec *contractor.Contractor, c *contractor.Candidate) bool {
	l := c.License
	before := []any{
		rec.LicenseNumber, rec.LicenseClass, rec.LicenseClassDetail, rec.LicenseClassType, rec.LicenseStatus,
		fmtTime(rec.LicenseIssued), fmtTime(rec.LicenseExpires), rec.LicenseVerified, rec.IsVerified, fmtInt(rec.YearsInBusiness),
	}

	if l.Number != "" {
		rec.LicenseNumber = l.Number
	}
	rec.LicenseClass = l.Class
	rec.LicenseClassDetail = l.ClassDetail
	rec.LicenseClassType = l.ClassType
	rec.LicenseStatus = l.Status
	rec.LicenseIssued = l.Issued
	rec.LicenseExpires = l.Expires
	if c.Verified {
		rec.LicenseVerified = true
		rec.IsVerified = true
	}
	if c.YearsInBusiness != nil {
		y := *c.YearsInBusiness
		rec.YearsInBusiness = &y
	}

	after := []any{
		rec.LicenseNumber, rec.LicenseClass, rec.LicenseClassDetail, rec.LicenseClassType, rec.LicenseStatus,
		fmtTime(rec.LicenseIssued), fmtTime(rec.LicenseExpires), rec.LicenseVerified, rec.IsVerified, fmtInt(rec.YearsInBusiness),
	}
	return !slices.Equal(before, after)
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func fmtInt(n *int) int {
	if n == nil {
		return -1
	}
	return *n
}
