// Package xref fills missing phone, email and website values on
// license-verified contractors by searching external sources with
// progressively weaker keys.
package xref

import (
	"context"
	"strings"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/normalize"
)

// KeyKind is the kind of search key.
type KeyKind string

// Search keys, strongest first.
const (
	KeyLicense      KeyKind = "license"
	KeyBusinessName KeyKind = "business_name"
	KeyDisplayName  KeyKind = "display_name"
)

// Key is one search key for a contractor.
type Key struct {
	Kind  KeyKind
	Value string
}

// Keys returns the search keys for c in priority order: license number,
// business name, then display name (the DBA, else the contact name).
// Empty keys and repeats of an earlier value are dropped.
func Keys(c *contractor.Contractor) []Key {
	display := c.DisplayName
	if display == "" {
		display = c.ContactName
	}
	candidates := []Key{
		{KeyLicense, c.LicenseNumber},
		{KeyBusinessName, c.BusinessName},
		{KeyDisplayName, display},
	}

	seen := make(map[string]bool, len(candidates))
	keys := make([]Key, 0, len(candidates))
	for _, k := range candidates {
		k.Value = normalize.Collapse(k.Value)
		id := strings.ToLower(k.Value)
		if k.Value == "" || seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, k)
	}
	return keys
}

// Query is a lookup request: a key plus the locality that narrows it.
type Query struct {
	Key   Key
	City  string
	State string
}

// Text joins the key and locality into a free-text search string.
func (q Query) Text() string {
	return strings.TrimSpace(strings.Join(strings.Fields(q.Key.Value+" "+q.City+" "+q.State), " "))
}

// Contact is contact data found by a lookup.
type Contact struct {
	Phone   string
	Email   string
	Website string
	// Source names the lookup that produced the data.
	Source string
}

// Normalized returns c with every field canonicalized; unusable values
// become empty.
func (c Contact) Normalized() Contact {
	return Contact{
		Phone:   normalize.Phone(c.Phone),
		Email:   normalize.Email(c.Email),
		Website: normalize.Website(c.Website),
		Source:  c.Source,
	}
}

// IsZero reports whether c carries no contact data.
func (c Contact) IsZero() bool {
	return c.Phone == "" && c.Email == "" && c.Website == ""
}

// Fills reports whether c supplies a value for a field rec is missing.
func (c Contact) Fills(rec *contractor.Contractor) bool {
	return (rec.Phone == "" && c.Phone != "") ||
		(rec.Email == "" && c.Email != "") ||
		(rec.Website == "" && c.Website != "")
}

// Lookup searches one external source. A miss is a zero Contact and a nil
// error.
type Lookup interface {
	Name() string
	Find(ctx context.Context, q Query) (Contact, error)
}
