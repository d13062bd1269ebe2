// Package reconcile decides whether a normalized candidate is a new
// contractor or another sighting of a stored one, and merges it in.
package reconcile

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/normalize"
)

// Matcher is one identity rule. Find returns nil when the rule does not
// apply or finds nothing.
type Matcher struct {
	Name string
	Find func(ctx context.Context, s contractor.Store, c *contractor.Candidate) (*contractor.Contractor, error)
}

// IdentityPolicy is an ordered list of matchers; the first hit wins.
type IdentityPolicy []Matcher

// DefaultPolicy matches by license number, then exact business name, then
// loose name key within the same city.
func DefaultPolicy() IdentityPolicy {
	return IdentityPolicy{ByLicense, ByExactName, ByNameCity}
}

// Resolve runs the matchers in order and reports which one matched.
func (p IdentityPolicy) Resolve(ctx context.Context, s contractor.Store, c *contractor.Candidate) (*contractor.Contractor, string, error) {
	for _, m := range p {
		found, err := m.Find(ctx, s, c)
		if err != nil {
			return nil, "", eris.Wrapf(err, "reconcile: match by %s", m.Name)
		}
		if found != nil {
			return found, m.Name, nil
		}
	}
	return nil, "", nil
}

// ByLicense matches on the registry license number.
var ByLicense = Matcher{
	Name: "license",
	Find: func(ctx context.Context, s contractor.Store, c *contractor.Candidate) (*contractor.Contractor, error) {
		if c.License.Number == "" {
			return nil, nil
		}
		return s.FindByLicense(ctx, c.License.Number)
	},
}

// ByExactName matches the case-insensitive business name. When several
// stored records share the name, one with the same phone is preferred.
var ByExactName = Matcher{
	Name: "exact_name",
	Find: func(ctx context.Context, s contractor.Store, c *contractor.Candidate) (*contractor.Contractor, error) {
		found, err := s.FindByName(ctx, c.BusinessName)
		if err != nil {
			return nil, err
		}
		return pick(compatible(found, c), c), nil
	},
}

// ByNameCity matches the loose name key (legal suffixes dropped) within the
// candidate's city.
var ByNameCity = Matcher{
	Name: "name_city",
	Find: func(ctx context.Context, s contractor.Store, c *contractor.Candidate) (*contractor.Contractor, error) {
		key := normalize.NameKey(c.BusinessName)
		if key == "" || c.Address.City == "" {
			return nil, nil
		}
		found, err := s.FindByNameKey(ctx, key, c.Address.City)
		if err != nil {
			return nil, err
		}
		return pick(compatible(found, c), c), nil
	},
}

// compatible drops records licensed under a different number than the
// candidate's; those are different businesses sharing a name.
func compatible(found []contractor.Contractor, c *contractor.Candidate) []contractor.Contractor {
	if c.License.Number == "" {
		return found
	}
	out := found[:0:0]
	for _, f := range found {
		if f.LicenseNumber == "" || strings.EqualFold(f.LicenseNumber, c.License.Number) {
			out = append(out, f)
		}
	}
	return out
}

func pick(found []contractor.Contractor, c *contractor.Candidate) *contractor.Contractor {
	switch len(found) {
	case 0:
		return nil
	case 1:
		return &found[0]
	}
	if c.Phone != "" {
		for i := range found {
			if found[i].Phone == c.Phone {
				return &found[i]
			}
		}
	}
	if c.Address.City != "" {
		for i := range found {
			if strings.EqualFold(found[i].City, c.Address.City) {
				return &found[i]
			}
		}
	}
	return &found[0]
}
