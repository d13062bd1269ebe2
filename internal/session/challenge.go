package session

import (
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ChallengeType describes the kind of bot check detected.
type ChallengeType string

// Challenge kinds.
const (
	ChallengeNone       ChallengeType = ""
	ChallengeCloudflare ChallengeType = "cloudflare"
	ChallengeCaptcha    ChallengeType = "captcha"
	ChallengeJSShell    ChallengeType = "js_shell"
)

// DetectChallenge checks a response for signs of anti-bot protection.
func DetectChallenge(status int, header http.Header, body []byte) ChallengeType {
	// Cloudflare: 403/503 with cf-* headers.
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || header.Get("cf-cache-status") != "" ||
			strings.EqualFold(header.Get("server"), "cloudflare") {
			return ChallengeCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return ChallengeCloudflare
	}

	if strings.Contains(lower, "g-recaptcha") ||
		strings.Contains(lower, "h-captcha") ||
		strings.Contains(lower, "captcha") {
		return ChallengeCaptcha
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return ChallengeJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return ChallengeJSShell
		}
	}

	return ChallengeNone
}

// FormFields lists the named inputs of every form on the page, for
// diagnosing a blocked search form.
func FormFields(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	var names []string
	doc.Find("form input[name], form select[name], form textarea[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if typ, _ := s.Attr("type"); typ != "" {
			name += ":" + strings.ToLower(typ)
		}
		names = append(names, name)
	})
	return names
}

// HiddenFields returns the hidden inputs of the form matching selector,
// such as CSRF tokens and view state.
func HiddenFields(doc *goquery.Document, formSelector string) map[string]string {
	out := map[string]string{}
	if doc == nil {
		return out
	}
	doc.Find(formSelector).First().Find(`input[type="hidden"][name]`).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		val, _ := s.Attr("value")
		out[name] = val
	})
	return out
}
