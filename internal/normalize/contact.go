package normalize

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	emailRe     = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	emailFullRe = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
)

// Email lowercases a valid address, or returns "" if raw is not one.
func Email(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "mailto:")
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if !emailFullRe.MatchString(raw) {
		return ""
	}
	return strings.ToLower(raw)
}

// ExtractEmail returns the first email address found in free text.
func ExtractEmail(text string) string {
	return Email(emailRe.FindString(text))
}

// Website returns an absolute http(s) URL with a lowercase host, or "" for
// values that are not web links.
func Website(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	for _, p := range []string{"mailto:", "tel:", "javascript:", "#"} {
		if strings.HasPrefix(lower, p) {
			return ""
		}
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	out := u.String()
	return strings.TrimSuffix(out, "/")
}

// Set trims, drops empties and case-insensitive duplicates, and sorts. The
// first spelling seen for each value wins.
func Set(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, v := range list {
			v = Collapse(v)
			if v == "" {
				continue
			}
			k := strings.ToLower(v)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}
