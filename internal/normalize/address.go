package normalize

import (
	"regexp"
	"strings"
)

// Address is a decomposed postal address. When a free-text address cannot
// be split, the raw string is kept as Street.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// String joins the parts back into a single geocodable line.
func (a Address) String() string {
	var b strings.Builder
	b.WriteString(a.Street)
	if a.City != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.City)
	}
	tail := strings.TrimSpace(a.State + " " + a.Zip)
	if tail != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tail)
	}
	return b.String()
}

// IsZero reports whether no part is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// abbrToState maps lowercase state abbreviations to lowercase full names.
var abbrToState = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut", "de": "delaware",
	"fl": "florida", "ga": "georgia", "hi": "hawaii", "id": "idaho",
	"il": "illinois", "in": "indiana", "ia": "iowa", "ks": "kansas",
	"ky": "kentucky", "la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota", "ms": "mississippi",
	"mo": "missouri", "mt": "montana", "ne": "nebraska", "nv": "nevada",
	"nh": "new hampshire", "nj": "new jersey", "nm": "new mexico", "ny": "new york",
	"nc": "north carolina", "nd": "north dakota", "oh": "ohio", "ok": "oklahoma",
	"or": "oregon", "pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah",
	"vt": "vermont", "va": "virginia", "wa": "washington", "wv": "west virginia",
	"wi": "wisconsin", "wy": "wyoming", "dc": "district of columbia",
}

var stateToAbbr = func() map[string]string {
	m := make(map[string]string, len(abbrToState))
	for abbr, full := range abbrToState {
		m[full] = abbr
	}
	return m
}()

// State returns the upper-case two letter code for an abbreviation or full
// state name, or "" when it is not a US state.
func State(s string) string {
	lower := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ".")))
	if _, ok := abbrToState[lower]; ok {
		return strings.ToUpper(lower)
	}
	if abbr, ok := stateToAbbr[lower]; ok {
		return strings.ToUpper(abbr)
	}
	return ""
}

var (
	zipRe      = regexp.MustCompile(`^(\d{5})(?:-?\d{4})?$`)
	stateZipRe = regexp.MustCompile(`^(.*?)\s*([A-Za-z][A-Za-z .]*?)\s+(\d{5}(?:-?\d{4})?)$`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// Zip returns the five digit ZIP prefix, or "" if s is not a ZIP code.
func Zip(s string) string {
	m := zipRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseAddress splits "street, city, ST 12345" style text. Inputs without a
// comma come back as {Street: raw}. Unrecognized tails are kept as City.
func ParseAddress(raw string) Address {
	raw = strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
	if raw == "" {
		return Address{}
	}

	parts := splitComma(raw)
	if n := len(parts); n > 1 {
		switch strings.ToUpper(strings.ReplaceAll(parts[n-1], ".", "")) {
		case "US", "USA", "UNITED STATES":
			parts = parts[:n-1]
		}
	}
	if len(parts) < 2 {
		return Address{Street: raw}
	}

	addr := Address{Street: parts[0]}
	rest := parts[1:]
	if len(parts) == 2 && !strings.ContainsAny(parts[0], "0123456789") {
		// "Tempe, AZ 85281": no street line, only a locality
		if st, z, p := splitStateZip(parts[1]); (st != "" || z != "") && p == "" {
			return Address{City: City(parts[0]), State: st, Zip: z}
		}
	}
	last := rest[len(rest)-1]

	var city string
	state, zip, prefix := splitStateZip(last)
	switch {
	case state != "" || zip != "":
		city = prefix
		if city == "" && len(rest) > 1 {
			city = rest[len(rest)-2]
			rest = rest[:len(rest)-1]
		}
		if len(rest) > 1 && prefix == "" {
			// street continuation such as "Suite 4"
			addr.Street = strings.Join(append([]string{parts[0]}, rest[:len(rest)-1]...), ", ")
		}
	default:
		city = last
		if len(rest) > 1 {
			addr.Street = strings.Join(append([]string{parts[0]}, rest[:len(rest)-1]...), ", ")
		}
	}

	addr.City = City(city)
	addr.State = state
	addr.Zip = zip
	return addr
}

// splitStateZip parses a trailing "City ST 12345", "ST 12345", "ST" or
// "12345" segment.
func splitStateZip(s string) (state, zip, prefix string) {
	if z := Zip(s); z != "" {
		return "", z, ""
	}
	if st := State(s); st != "" {
		return st, "", ""
	}

	if m := stateZipRe.FindStringSubmatch(s); m != nil {
		if st := stateSuffix(m[1] + " " + m[2]); st.code != "" {
			return st.code, Zip(m[3]), st.prefix
		}
	}

	if st := stateSuffix(s); st.code != "" {
		return st.code, "", st.prefix
	}
	return "", "", ""
}

type stateMatch struct {
	code   string
	prefix string
}

// stateSuffix finds the longest trailing run of words that names a state.
func stateSuffix(s string) stateMatch {
	words := strings.Fields(s)
	for take := min(3, len(words)); take >= 1; take-- {
		cand := strings.Join(words[len(words)-take:], " ")
		if code := State(cand); code != "" {
			return stateMatch{code: code, prefix: strings.Join(words[:len(words)-take], " ")}
		}
	}
	return stateMatch{}
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
