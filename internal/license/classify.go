// Package license maps registry license-class codes and their free-text
// detail to trade specialties and categories.
package license

import (
	"regexp"
	"strings"

	"github.com/sells-group/contractor-cli/internal/normalize"
)

// Fallback values for codes the table does not know.
const (
	GeneralSpecialty = "General Construction Services"
	GeneralCategory  = "General Contracting"
)

// Class describes one license-class code.
type Class struct {
	Code        string
	Title       string
	Specialties []string
	Categories  []string
}

// Classification is the result of classifying a code and its detail. Both
// slices are sorted sets.
type Classification struct {
	Code        string
	Known       bool
	Specialties []string
	Categories  []string
}

var classes = []Class{
	{"A", "General Engineering", []string{"General Engineering"}, []string{GeneralCategory}},
	{"B", "General Commercial", []string{"Commercial Construction"}, []string{GeneralCategory}},
	{"B-1", "General Commercial Contractor", []string{"Commercial Construction"}, []string{GeneralCategory}},
	{"B-2", "General Small Commercial", []string{"Commercial Construction", "Remodeling"}, []string{GeneralCategory}},
	{"KB-1", "Dual Building Contractor", []string{"Home Building", "Commercial Construction"}, []string{GeneralCategory}},
	{"KB-2", "Dual Residential and Small Commercial", []string{"Home Building", "Remodeling"}, []string{GeneralCategory}},
	{"B-3", "General Remodeling and Repair", []string{"Remodeling", "Repairs"}, []string{"Remodeling"}},
	{"CR-2", "Excavation, Grading and Oil Surfacing", []string{"Excavation", "Grading"}, []string{"Site Work"}},
	{"CR-3", "Awnings, Canopies, Carports and Patio Covers", []string{"Awnings", "Patio Covers"}, []string{"Outdoor Living"}},
	{"CR-5", "Direct Installation", []string{"Fixture Installation"}, []string{"Specialty Trades"}},
	{"CR-6", "Swimming Pools", []string{"Swimming Pools", "Spas"}, []string{"Pools & Spas"}},
	{"CR-7", "Carpentry, Remodeling and Repairs", []string{"Carpentry", "Remodeling"}, []string{"Carpentry"}},
	{"CR-8", "Floor Covering", []string{"Flooring"}, []string{"Flooring"}},
	{"CR-9", "Concrete", []string{"Concrete"}, []string{"Masonry & Concrete"}},
	{"CR-10", "Drywall", []string{"Drywall"}, []string{"Interior Finishes"}},
	{"CR-11", "Electrical", []string{"Electrical"}, []string{"Electrical"}},
	{"CR-13", "Fencing", []string{"Fencing"}, []string{"Outdoor Living"}},
	{"CR-14", "Fire Protection Systems", []string{"Fire Sprinklers"}, []string{"Fire Protection"}},
	{"CR-15", "Glazing", []string{"Glass", "Windows"}, []string{"Windows & Doors"}},
	{"CR-16", "Insulation", []string{"Insulation"}, []string{"Energy Efficiency"}},
	{"CR-17", "Landscaping and Irrigation", []string{"Landscaping", "Irrigation"}, []string{"Landscaping"}},
	{"CR-21", "Hardscaping and Irrigation", []string{"Hardscaping", "Pavers"}, []string{"Landscaping"}},
	{"CR-23", "Masonry", []string{"Masonry", "Stonework"}, []string{"Masonry & Concrete"}},
	{"CR-29", "Ornamental Metals", []string{"Metal Work", "Railings"}, []string{"Specialty Trades"}},
	{"CR-31", "Cabinets and Millwork", []string{"Cabinetry", "Millwork"}, []string{"Carpentry"}},
	{"CR-34", "Painting and Wall Covering", []string{"Painting", "Wall Covering"}, []string{"Interior Finishes"}},
	{"CR-37", "Plumbing", []string{"Plumbing"}, []string{"Plumbing"}},
	{"CR-39", "Air Conditioning and Refrigeration", []string{"HVAC", "Refrigeration"}, []string{"HVAC"}},
	{"CR-40", "Steel and Aluminum Erection", []string{"Steel Erection"}, []string{"Specialty Trades"}},
	{"CR-42", "Roofing", []string{"Roofing"}, []string{"Roofing"}},
	{"CR-45", "Solar Plumbing", []string{"Solar Water Heating", "Plumbing"}, []string{"Solar"}},
	{"CR-48", "Tile and Terrazzo", []string{"Tile", "Terrazzo"}, []string{"Flooring"}},
	{"CR-53", "Water Conditioning Equipment", []string{"Water Treatment"}, []string{"Plumbing"}},
	{"CR-57", "Wrecking and Demolition", []string{"Demolition"}, []string{"Site Work"}},
	{"CR-61", "Carpentry, Remodeling and Repairs", []string{"Carpentry", "Remodeling", "Repairs"}, []string{"Remodeling"}},
	{"CR-62", "Pest Control Structures", []string{"Pest Exclusion"}, []string{"Specialty Trades"}},
	{"CR-65", "Low Voltage Communication Systems", []string{"Low Voltage", "Security Systems"}, []string{"Electrical"}},
	{"CR-67", "Solar Electric", []string{"Solar Panels", "Electrical"}, []string{"Solar"}},
	{"CR-79", "Evaporative Coolers", []string{"Evaporative Cooling"}, []string{"HVAC"}},
}

// keywordRule adds specialties when the class detail matches.
type keywordRule struct {
	re          *regexp.Regexp
	specialties []string
	categories  []string
}

var keywordRules = []keywordRule{
	{regexp.MustCompile(`\bkitchens?\b`), []string{"Kitchen Remodeling"}, []string{"Remodeling"}},
	{regexp.MustCompile(`\bbath(room)?s?\b`), []string{"Bathroom Remodeling"}, []string{"Remodeling"}},
	{regexp.MustCompile(`\btiles?\b`), []string{"Tile"}, []string{"Flooring"}},
	{regexp.MustCompile(`\bconcrete\b`), []string{"Concrete"}, []string{"Masonry & Concrete"}},
	{regexp.MustCompile(`\b(stone|masonry|brick|block)\b`), []string{"Masonry", "Stonework"}, []string{"Masonry & Concrete"}},
	{regexp.MustCompile(`\bpavers?\b`), []string{"Pavers"}, []string{"Landscaping"}},
	{regexp.MustCompile(`\bsolar\b`), []string{"Solar Panels"}, []string{"Solar"}},
	{regexp.MustCompile(`\broof(s|ing)?\b`), []string{"Roofing"}, []string{"Roofing"}},
	{regexp.MustCompile(`\bpools?\b`), []string{"Swimming Pools"}, []string{"Pools & Spas"}},
	{regexp.MustCompile(`\bcabinet(s|ry)?\b`), []string{"Cabinetry"}, []string{"Carpentry"}},
	{regexp.MustCompile(`\bcounter ?tops?\b`), []string{"Countertops"}, []string{"Remodeling"}},
	{regexp.MustCompile(`\bwindows?\b`), []string{"Windows"}, []string{"Windows & Doors"}},
	{regexp.MustCompile(`\bdoors?\b`), []string{"Doors"}, []string{"Windows & Doors"}},
	{regexp.MustCompile(`\bgarage\b`), []string{"Garage Doors"}, []string{"Windows & Doors"}},
	{regexp.MustCompile(`\bstucco\b`), []string{"Stucco"}, []string{"Masonry & Concrete"}},
	{regexp.MustCompile(`\bfenc(e|es|ing)\b`), []string{"Fencing"}, []string{"Outdoor Living"}},
	{regexp.MustCompile(`\bfloor(s|ing)?\b`), []string{"Flooring"}, []string{"Flooring"}},
	{regexp.MustCompile(`\bpaint(ing)?\b`), []string{"Painting"}, []string{"Interior Finishes"}},
	{regexp.MustCompile(`\b(hvac|air condition(ing)?|heating)\b`), []string{"HVAC"}, []string{"HVAC"}},
	{regexp.MustCompile(`\blandscap(e|ing)\b`), []string{"Landscaping"}, []string{"Landscaping"}},
}

// Classifier classifies license codes against a fixed table.
type Classifier struct {
	byCode map[string]Class
}

// NewClassifier builds a classifier over the built-in table plus extra
// entries; extra entries replace built-ins with the same code.
func NewClassifier(extra ...Class) *Classifier {
	c := &Classifier{byCode: make(map[string]Class, len(classes)+len(extra))}
	for _, cl := range classes {
		c.byCode[cl.Code] = cl
	}
	for _, cl := range extra {
		cl.Code = NormalizeCode(cl.Code)
		c.byCode[cl.Code] = cl
	}
	return c
}

// Lookup returns the table entry for a code.
func (c *Classifier) Lookup(code string) (Class, bool) {
	cl, ok := c.byCode[NormalizeCode(code)]
	return cl, ok
}

// Classify maps a code and free-text detail to specialties and categories.
// Unknown codes get the general construction fallback in addition to any
// keyword matches. The result depends only on the inputs.
func (c *Classifier) Classify(code, detail string) Classification {
	out := Classification{Code: NormalizeCode(code)}

	var specialties, categories []string
	if cl, ok := c.byCode[out.Code]; ok {
		out.Known = true
		specialties = append(specialties, cl.Specialties...)
		categories = append(categories, cl.Categories...)
	} else {
		specialties = append(specialties, GeneralSpecialty)
		categories = append(categories, GeneralCategory)
	}

	d := strings.ToLower(detail)
	for _, rule := range keywordRules {
		if rule.re.MatchString(d) {
			specialties = append(specialties, rule.specialties...)
			categories = append(categories, rule.categories...)
		}
	}

	out.Specialties = normalize.Set(specialties)
	out.Categories = normalize.Set(categories)
	return out
}

var codeRe = regexp.MustCompile(`^([A-Z]+)[\s\-]*(\d+[A-Z]?)$`)

// NormalizeCode upper-cases a code and puts a single hyphen between its
// letter prefix and number: "cr 23" and "CR23" become "CR-23".
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if m := codeRe.FindStringSubmatch(code); m != nil {
		return m[1] + "-" + m[2]
	}
	return code
}
