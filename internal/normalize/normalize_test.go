package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"4805551234", "(480) 555-1234"},
		{"14805551234", "(480) 555-1234"},
		{"480-555-1234", "(480) 555-1234"},
		{"+1 (480) 555.1234", "(480) 555-1234"},
		{"tel:+14805551234", "(480) 555-1234"},
		{"555-1234", "555-1234"},
		{"  555-1234 ", "555-1234"},
		{"24805551234", "24805551234"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Phone(tt.in))
		})
	}
}

func TestExtractPhone(t *testing.T) {
	assert.Equal(t, "(602) 555-0188", ExtractPhone("Call us today at 602.555.0188 for a quote"))
	assert.Equal(t, "", ExtractPhone("no number here"))
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Address
	}{
		{"no comma", "123 Main St", Address{Street: "123 Main St"}},
		{"full", "1 Stone Way, Tempe, AZ 85281", Address{Street: "1 Stone Way", City: "Tempe", State: "AZ", Zip: "85281"}},
		{"city and state in one part", "77 Quarry Rd, Phoenix AZ 85001", Address{Street: "77 Quarry Rd", City: "Phoenix", State: "AZ", Zip: "85001"}},
		{"suite line", "9 Kiln Ave, Suite 4, Mesa, AZ 85201-1234", Address{Street: "9 Kiln Ave, Suite 4", City: "Mesa", State: "AZ", Zip: "85201"}},
		{"full state name", "12 Brick Ln, Santa Fe, New Mexico 87501", Address{Street: "12 Brick Ln", City: "Santa Fe", State: "NM", Zip: "87501"}},
		{"state without zip", "5 Grout St, Flagstaff, az", Address{Street: "5 Grout St", City: "Flagstaff", State: "AZ"}},
		{"city only", "5 Grout St, Flagstaff", Address{Street: "5 Grout St", City: "Flagstaff"}},
		{"country suffix", "5 Grout St, Flagstaff, AZ 86001, USA", Address{Street: "5 Grout St", City: "Flagstaff", State: "AZ", Zip: "86001"}},
		{"uppercase city", "400 W WASHINGTON ST, SCOTTSDALE, AZ 85251", Address{Street: "400 W WASHINGTON ST", City: "Scottsdale", State: "AZ", Zip: "85251"}},
		{"locality only", "Tempe, AZ 85281", Address{City: "Tempe", State: "AZ", Zip: "85281"}},
		{"empty", "   ", Address{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAddress(tt.in))
		})
	}
}

func TestAddressString(t *testing.T) {
	a := Address{Street: "1 Stone Way", City: "Tempe", State: "AZ", Zip: "85281"}
	assert.Equal(t, "1 Stone Way, Tempe, AZ 85281", a.String())
	assert.Equal(t, "123 Main St", Address{Street: "123 Main St"}.String())
	assert.True(t, Address{}.IsZero())
}

func TestStateAndZip(t *testing.T) {
	assert.Equal(t, "AZ", State("Arizona"))
	assert.Equal(t, "AZ", State(" az "))
	assert.Equal(t, "", State("Sonora"))
	assert.Equal(t, "85281", Zip("85281-0001"))
	assert.Equal(t, "", Zip("8528"))
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "info@acmestone.com", Email("mailto:Info@AcmeStone.com?subject=Quote"))
	assert.Equal(t, "", Email("not-an-email"))
	assert.Equal(t, "office@tileworks.net", ExtractEmail("Email: office@tileworks.net or call"))
	assert.Equal(t, "", ExtractEmail("nothing"))
}

func TestWebsite(t *testing.T) {
	assert.Equal(t, "https://acmestone.com", Website("AcmeStone.com"))
	assert.Equal(t, "http://acmestone.com/about", Website("http://ACMESTONE.com/about#team"))
	assert.Equal(t, "", Website("mailto:a@b.com"))
	assert.Equal(t, "", Website("localhost"))
	assert.Equal(t, "", Website(""))
}

func TestNameKey(t *testing.T) {
	assert.Equal(t, "acme stone", NameKey("Acme Stone, LLC"))
	assert.Equal(t, "acme stone", NameKey("ACME STONE L.L.C."))
	assert.Equal(t, "pena masonry", NameKey("Peña Masonry Inc."))
	assert.Equal(t, "smith and sons roofing", NameKey("Smith & Sons Roofing Co"))
	assert.Equal(t, "llc", NameKey("LLC"))
	assert.Equal(t, "acme stone llc", ExactName("  Acme   Stone LLC "))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "acme-stone-llc", Slug("Acme Stone, LLC"))
	assert.Equal(t, "o-briens-tile-and-stone", Slug("O-Brien's Tile & Stone"))
	assert.Equal(t, "pena-masonry", Slug("Peña Masonry"))
}

func TestCity(t *testing.T) {
	assert.Equal(t, "Scottsdale", City("SCOTTSDALE"))
	assert.Equal(t, "Fountain Hills", City("fountain   hills"))
	assert.Equal(t, "", City(""))
}

func TestSet(t *testing.T) {
	got := Set([]string{"Tile", "stone", " "}, []string{"STONE", "Brick", "tile"})
	assert.Equal(t, []string{"Brick", "stone", "Tile"}, got)
	assert.Nil(t, Set(nil))
}
