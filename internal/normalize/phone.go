// Package normalize canonicalizes the loosely formatted contact fields that
// source pages and the license feed produce: phones, addresses, emails,
// websites and business names.
package normalize

import (
	"regexp"
	"strings"
)

var phoneRe = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)

// Phone formats a US number as "(AAA) BBB-CCCC". Ten digit numbers and
// eleven digit numbers with a leading 1 are reformatted; anything else is
// returned trimmed but otherwise unchanged.
func Phone(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "tel:")
	if raw == "" {
		return ""
	}

	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}

	switch {
	case len(digits) == 11 && digits[0] == '1':
		digits = digits[1:]
	case len(digits) != 10:
		return raw
	}

	return "(" + string(digits[0:3]) + ") " + string(digits[3:6]) + "-" + string(digits[6:10])
}

// ExtractPhone finds the first phone-shaped run in free text and formats it.
func ExtractPhone(text string) string {
	m := phoneRe.FindString(text)
	if m == "" {
		return ""
	}
	return Phone(m)
}
