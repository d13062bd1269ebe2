package contractor

import (
	"strings"

	"github.com/sells-group/contractor-cli/internal/normalize"
)

// Candidate is a normalized record ready for reconciliation.
type Candidate struct {
	Source    string
	Authority Authority

	Name         string
	BusinessName string
	DBA          string

	Phone   string
	Email   string
	Website string
	Address normalize.Address

	Specialties    []string
	Categories     []string
	Certifications []string
	Manufacturers  []string
	Description    string

	YearsInBusiness *int

	License  License
	Verified bool
}

// NewCandidate normalizes a scraped record. It reports false when the record
// carries no usable name.
func NewCandidate(source string, r RawRecord) (Candidate, bool) {
	c := Candidate{
		Source:         source,
		Authority:      AuthorityScrape,
		Name:           normalize.Collapse(r.Name),
		BusinessName:   normalize.Collapse(r.BusinessName),
		Phone:          normalize.Phone(r.Phone),
		Email:          normalize.Email(r.Email),
		Website:        normalize.Website(r.Website),
		Address:        normalize.ParseAddress(r.Address),
		Specialties:    normalize.Set(r.Specialties),
		Certifications: normalize.Set(r.Certifications),
		Manufacturers:  normalize.Set(r.Manufacturers),
		Description:    strings.TrimSpace(r.Description),
		License:        License{Number: strings.ToUpper(strings.TrimSpace(r.LicenseNumber))},
	}
	if r.YearsInBusiness != nil && *r.YearsInBusiness >= 0 {
		y := *r.YearsInBusiness
		c.YearsInBusiness = &y
	}
	if c.BusinessName == "" {
		c.BusinessName = c.Name
	}
	return c, c.BusinessName != ""
}

// DisplayName is the public-facing name: the DBA when one exists.
func (c *Candidate) DisplayName() string {
	if c.DBA != "" {
		return c.DBA
	}
	return c.BusinessName
}

// DedupKey groups records that describe the same business within one run:
// the name key plus the first of phone, email or address.
func (c *Candidate) DedupKey() string {
	name := normalize.NameKey(c.BusinessName)
	if name == "" {
		return ""
	}
	switch {
	case c.Phone != "":
		return name + "|p:" + c.Phone
	case c.Email != "":
		return name + "|e:" + c.Email
	case !c.Address.IsZero():
		return name + "|a:" + strings.ToLower(c.Address.String())
	}
	return name
}

// Absorb fills c's empty fields from other and unions its sets. Values
// already present in c are kept.
func (c *Candidate) Absorb(other Candidate) {
	fill(&c.Name, other.Name)
	fill(&c.DBA, other.DBA)
	fill(&c.Phone, other.Phone)
	fill(&c.Email, other.Email)
	fill(&c.Website, other.Website)
	fill(&c.Description, other.Description)
	fill(&c.License.Number, other.License.Number)
	if c.Address.IsZero() {
		c.Address = other.Address
	} else {
		fill(&c.Address.Street, other.Address.Street)
		fill(&c.Address.City, other.Address.City)
		fill(&c.Address.State, other.Address.State)
		fill(&c.Address.Zip, other.Address.Zip)
	}
	if c.YearsInBusiness == nil {
		c.YearsInBusiness = other.YearsInBusiness
	}
	c.Specialties = normalize.Set(c.Specialties, other.Specialties)
	c.Categories = normalize.Set(c.Categories, other.Categories)
	c.Certifications = normalize.Set(c.Certifications, other.Certifications)
	c.Manufacturers = normalize.Set(c.Manufacturers, other.Manufacturers)
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}
