package site

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/normalize"
	"github.com/sells-group/contractor-cli/internal/scraper"
	"github.com/sells-group/contractor-cli/internal/session"
)

var (
	yearsRe   = regexp.MustCompile(`\d{1,3}`)
	licenseRe = regexp.MustCompile(`(?i)\b(?:license|lic)?[\s.:#]*\b([a-z]{1,4})?[\s#:-]*(\d{3,8})\b`)
)

// extract applies strategies in order and returns the records of the first
// one that finds any, along with its name.
func extract(page *session.Page, strategies []Strategy) ([]contractor.RawRecord, string) {
	if page == nil || page.Doc == nil {
		return nil, ""
	}
	for _, st := range strategies {
		var out []contractor.RawRecord
		page.Doc.Find(st.Item).Each(func(_ int, item *goquery.Selection) {
			if rec, ok := extractItem(page, item, st.Fields); ok {
				out = append(out, rec)
			}
		})
		if len(out) > 0 {
			return out, st.Name
		}
	}
	return nil, ""
}

func extractItem(page *session.Page, item *goquery.Selection, f Fields) (contractor.RawRecord, bool) {
	rec := contractor.RawRecord{
		Name:         pick(item, f.Name),
		BusinessName: pick(item, f.BusinessName),
		Address:      pick(item, f.Address),
		Description:  pick(item, f.Description),
		SourceURL:    page.URL,
	}
	if rec.BusinessName == "" {
		rec.BusinessName = rec.Name
	}
	if rec.BusinessName == "" {
		return rec, false
	}

	rec.Phone = pick(item, f.Phone)
	if rec.Phone == "" {
		if tel, ok := item.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			rec.Phone = strings.TrimPrefix(tel, "tel:")
		} else {
			rec.Phone = normalize.ExtractPhone(item.Text())
		}
	}

	rec.Email = pick(item, f.Email)
	if rec.Email == "" {
		if mail, ok := item.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
			rec.Email = mail
		} else {
			rec.Email = normalize.ExtractEmail(item.Text())
		}
	}

	if w := pick(item, f.Website); w != "" {
		rec.Website = page.Resolve(w)
	}
	rec.LicenseNumber = licenseNumber(pick(item, f.License))
	if y := yearsRe.FindString(pick(item, f.Years)); y != "" {
		if n, err := strconv.Atoi(y); err == nil {
			rec.YearsInBusiness = &n
		}
	}
	rec.Specialties = pickAll(item, f.Specialties)
	rec.Certifications = pickAll(item, f.Certifications)
	return rec, true
}

// licenseNumber reduces "License: ROC #123456" style text to "ROC123456".
func licenseNumber(s string) string {
	m := licenseRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1]) + m[2]
}

// pick reads one value. "css" returns the text of the first match,
// "css@attr" its attribute and "@attr" the item's own attribute.
func pick(item *goquery.Selection, sel string) string {
	if sel == "" {
		return ""
	}
	css, attr, _ := strings.Cut(sel, "@")
	target := item
	if css = strings.TrimSpace(css); css != "" {
		target = item.Find(css).First()
	}
	if attr != "" {
		v, _ := target.Attr(strings.TrimSpace(attr))
		return strings.TrimSpace(v)
	}
	return normalize.Collapse(target.Text())
}

// pickAll reads every match of a selector. A single match holding a comma
// separated list is split.
func pickAll(item *goquery.Selection, sel string) []string {
	if sel == "" {
		return nil
	}
	css, attr, _ := strings.Cut(sel, "@")
	var out []string
	item.Find(strings.TrimSpace(css)).Each(func(_ int, s *goquery.Selection) {
		v := normalize.Collapse(s.Text())
		if attr != "" {
			v, _ = s.Attr(strings.TrimSpace(attr))
		}
		for _, part := range strings.Split(v, ",") {
			if part = normalize.Collapse(part); part != "" {
				out = append(out, part)
			}
		}
	})
	return out
}

// expand fills the location and page placeholders of a URL template or
// form value. Values are query-escaped when escape is set.
func expand(tmpl string, loc scraper.Location, page int, escape bool) string {
	q := func(s string) string {
		if escape {
			return url.QueryEscape(s)
		}
		return s
	}
	return strings.NewReplacer(
		"{location}", q(loc.String()),
		"{city}", q(loc.City),
		"{state}", q(loc.State),
		"{zip}", q(loc.Zip),
		"{page}", strconv.Itoa(page),
	).Replace(tmpl)
}

// tag adds the site-wide manufacturer and certification to each record.
func tag(recs []contractor.RawRecord, s Site) {
	for i := range recs {
		if s.Manufacturer != "" {
			recs[i].Manufacturers = append(recs[i].Manufacturers, s.Manufacturer)
		}
		if s.Certification != "" {
			recs[i].Certifications = append(recs[i].Certifications, s.Certification)
		}
	}
}
