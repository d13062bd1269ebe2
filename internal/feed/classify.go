package feed

import (
	"strings"
	"time"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/license"
)

// inactiveStatuses are registry statuses that do not count as a verified
// license.
var inactiveStatuses = map[string]bool{
	"expired":   true,
	"revoked":   true,
	"suspended": true,
	"cancelled": true,
	"canceled":  true,
	"inactive":  true,
	"lapsed":    true,
}

// Verified reports whether the row describes a license in good standing.
// Exports that omit the status column list active licenses only.
func (r Record) Verified() bool {
	return !inactiveStatuses[strings.ToLower(r.Status)]
}

// Candidate turns a classified registry row into a reconcile candidate.
// Years in business is zero when the issue date is unknown.
func (r Record) Candidate(source string, cls *license.Classifier, now time.Time) contractor.Candidate {
	class := cls.Classify(r.Class, r.ClassDetail)

	c := contractor.Candidate{
		Source:       source,
		Authority:    contractor.AuthorityLicenseFeed,
		Name:         r.QualifyingParty,
		BusinessName: r.BusinessName,
		DBA:          r.DBA,
		Address:      r.FullAddress(),
		Specialties:  class.Specialties,
		Categories:   class.Categories,
		License: contractor.License{
			Number:      r.LicenseNumber,
			Class:       class.Code,
			ClassDetail: r.ClassDetail,
			ClassType:   r.ClassType,
			Status:      r.Status,
			Issued:      r.Issued,
			Expires:     r.Expires,
		},
		Verified: r.Verified(),
	}
	years := 0
	if r.Issued != nil {
		years = YearsInBusiness(*r.Issued, now)
	}
	c.YearsInBusiness = &years
	return c
}
