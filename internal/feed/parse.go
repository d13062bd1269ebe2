package feed

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/normalize"
)

// Column identifies a field of the registry export.
type Column int

// Registry export columns.
const (
	ColSeq Column = iota
	ColLicense
	ColBusinessName
	ColAddress
	ColCity
	ColState
	ColZip
	ColClass
	ColClassDetail
	ColClassType
	ColQualifyingParty
	ColIssued
	ColExpires
	ColStatus
	ColDBA
)

var columnNames = map[string]Column{
	"#":                 ColSeq,
	"no":                ColSeq,
	"license no":        ColLicense,
	"license number":    ColLicense,
	"business name":     ColBusinessName,
	"address":           ColAddress,
	"street":            ColAddress,
	"city":              ColCity,
	"state":             ColState,
	"zip":               ColZip,
	"zip code":          ColZip,
	"class":             ColClass,
	"class detail":      ColClassDetail,
	"class type":        ColClassType,
	"qualifying party":  ColQualifyingParty,
	"issued date":       ColIssued,
	"issue date":        ColIssued,
	"expiration date":   ColExpires,
	"status":            ColStatus,
	"doing business as": ColDBA,
	"dba":               ColDBA,
}

var requiredColumns = []Column{ColSeq, ColLicense, ColBusinessName}

var headerPunct = regexp.MustCompile(`[^a-z0-9# ]+`)

// Header maps columns to field positions.
type Header map[Column]int

// ParseHeader maps a header row. Unknown columns are ignored; a missing
// required column is an error.
func ParseHeader(fields []string) (Header, error) {
	h := make(Header)
	for i, f := range fields {
		name := normalize.Collapse(headerPunct.ReplaceAllString(strings.ToLower(f), " "))
		if col, ok := columnNames[name]; ok {
			if _, dup := h[col]; !dup {
				h[col] = i
			}
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := h[col]; !ok {
			missing = append(missing, requiredName(col))
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("feed: header missing required columns: %s", strings.Join(missing, ", "))
	}
	return h, nil
}

func requiredName(c Column) string {
	switch c {
	case ColSeq:
		return "#"
	case ColLicense:
		return "License No"
	default:
		return "Business Name"
	}
}

func (h Header) get(fields []string, c Column) string {
	i, ok := h[c]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// Record is one registry row.
type Record struct {
	Line            int
	Seq             string
	LicenseNumber   string
	BusinessName    string
	Address         string
	City            string
	State           string
	Zip             string
	Class           string
	ClassDetail     string
	ClassType       string
	QualifyingParty string
	Issued          *time.Time
	Expires         *time.Time
	Status          string
	DBA             string
}

// errBlankRow marks rows with no content; they are skipped, not counted.
var errBlankRow = eris.New("feed: blank row")

// ParseRecord decodes a data row. Rows without a sequence number, license
// number or business name are rejected. An unreadable date is logged and
// left nil; the row is kept.
func (h Header) ParseRecord(line int, fields []string) (Record, error) {
	blank := true
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			blank = false
			break
		}
	}
	if blank {
		return Record{}, errBlankRow
	}

	r := Record{
		Line:            line,
		Seq:             h.get(fields, ColSeq),
		LicenseNumber:   strings.ToUpper(strings.Join(strings.Fields(h.get(fields, ColLicense)), "")),
		BusinessName:    normalize.Collapse(h.get(fields, ColBusinessName)),
		Address:         normalize.Collapse(h.get(fields, ColAddress)),
		City:            h.get(fields, ColCity),
		State:           h.get(fields, ColState),
		Zip:             h.get(fields, ColZip),
		Class:           h.get(fields, ColClass),
		ClassDetail:     normalize.Collapse(h.get(fields, ColClassDetail)),
		ClassType:       normalize.Collapse(h.get(fields, ColClassType)),
		QualifyingParty: normalize.Collapse(h.get(fields, ColQualifyingParty)),
		Status:          normalize.Collapse(h.get(fields, ColStatus)),
		DBA:             normalize.Collapse(h.get(fields, ColDBA)),
	}

	var missing []string
	if r.Seq == "" {
		missing = append(missing, "#")
	}
	if r.LicenseNumber == "" {
		missing = append(missing, "License No")
	}
	if r.BusinessName == "" {
		missing = append(missing, "Business Name")
	}
	if len(missing) > 0 {
		return r, eris.Errorf("feed: line %d missing %s", line, strings.Join(missing, ", "))
	}

	r.Issued = h.date(fields, ColIssued, "issued", line, r.LicenseNumber)
	r.Expires = h.date(fields, ColExpires, "expires", line, r.LicenseNumber)
	return r, nil
}

func (h Header) date(fields []string, col Column, label string, line int, lic string) *time.Time {
	t, err := ParseDate(h.get(fields, col))
	if err != nil {
		zap.L().Warn("unparsable date, leaving empty",
			zap.String("component", "feed"),
			zap.Int("line", line),
			zap.String("license", lic),
			zap.String("column", label),
			zap.Error(err),
		)
		return nil
	}
	return t
}

// FullAddress joins the address and locality columns into one line for
// parsing.
func (r Record) FullAddress() normalize.Address {
	if r.City == "" && r.State == "" && r.Zip == "" {
		return normalize.ParseAddress(r.Address)
	}
	line := r.Address
	if r.City != "" {
		line += ", " + r.City
	}
	if tail := strings.TrimSpace(r.State + " " + r.Zip); tail != "" {
		line += ", " + tail
	}
	return normalize.ParseAddress(strings.TrimPrefix(line, ", "))
}

var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate reads the date formats seen in registry exports, including
// spreadsheet serial day numbers. Empty input is a nil date.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 1 && n < 100000 {
		t := excelEpoch.AddDate(0, 0, int(math.Floor(n)))
		return &t, nil
	}
	return nil, eris.Errorf("feed: unrecognized date %q", s)
}

// daysPerYear averages leap years in.
const daysPerYear = 365.25

// YearsInBusiness is floor((now - issued) / 365.25 days), never negative.
func YearsInBusiness(issued, now time.Time) int {
	days := now.Sub(issued).Hours() / 24
	years := int(math.Floor(days / daysPerYear))
	if years < 0 {
		return 0
	}
	return years
}
