package site

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contractor-cli/internal/config"
	"github.com/sells-group/contractor-cli/internal/scraper"
)

func TestLoadCatalog_Embedded(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, "Phoenix, AZ", cat.DefaultLocation)
	require.NotEmpty(t, cat.Sites)

	adapters, err := cat.Adapters(Options{})
	require.NoError(t, err)
	require.Len(t, adapters, len(cat.Sites))

	seen := map[scraper.Category]int{}
	for _, a := range adapters {
		seen[a.Category()]++
	}
	for _, c := range scraper.Categories {
		assert.Positive(t, seen[c], c.String())
	}

	roc, ok := findAdapter(adapters, "az_roc").(*RecordsAdapter)
	require.True(t, ok)
	assert.Equal(t, scraper.Location{City: "Phoenix", State: "AZ"}, roc.DefaultLocation())

	_, ok = findAdapter(adapters, "ncma_members").(*AuthAdapter)
	assert.True(t, ok)
}

func TestLoadCatalog_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_location: "Tucson, AZ"
sites:
  - name: belgard
    category: manufacturer
    search_url: "http://localhost/belgard?loc={location}"
    disabled: true
    strategies:
      - item: ".card"
        fields: {business_name: "h3"}
  - name: tucson_pavers
    category: local
    search_url: "http://localhost/tucson"
    strategies:
      - item: ".card"
        fields: {business_name: "h3"}
`), 0o600))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "Tucson, AZ", cat.DefaultLocation)
	assert.Equal(t, "belgard", cat.Sites[0].Name)
	assert.True(t, cat.Sites[0].Disabled)
	assert.Equal(t, "tucson_pavers", cat.Sites[len(cat.Sites)-1].Name)

	reg := scraper.NewRegistry()
	require.NoError(t, Register(reg, cat, Options{}))
	_, err = reg.Get("belgard")
	assert.Error(t, err)

	a, err := reg.Get("tucson_pavers")
	require.NoError(t, err)
	assert.Equal(t, scraper.Location{City: "Tucson", State: "AZ"}, a.(scraper.DefaultLocator).DefaultLocation())
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad yaml", "sites: [", "parse catalog"},
		{"unknown category", `
sites:
  - name: x
    category: social
    search_url: http://x
    strategies: [{item: a, fields: {business_name: b}}]`, "unknown category"},
		{"duplicate", `
sites:
  - {name: x, category: local, search_url: "http://x", strategies: [{item: a, fields: {business_name: b}}]}
  - {name: x, category: local, search_url: "http://x", strategies: [{item: a, fields: {business_name: b}}]}`, "duplicate name"},
		{"auth without login", `
sites:
  - {name: m, category: authenticated, search_url: "http://x", strategies: [{item: a, fields: {business_name: b}}]}`, "login.url"},
		{"records without search", `
sites:
  - {name: r, category: public_records, strategies: [{item: a, fields: {business_name: b}}]}`, "search.url"},
		{"no strategies", `
sites:
  - {name: s, category: directory, search_url: "http://x"}`, "no strategies"},
		{"strategy without name field", `
sites:
  - {name: s, category: directory, search_url: "http://x", strategies: [{item: a, fields: {phone: b}}]}`, "needs item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAdapters_Credentials(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)

	adapters, err := cat.Adapters(Options{
		Credentials:          map[string]config.Credential{"ncma_members": {Username: "u", Password: "p"}},
		AllowUnverifiedLogin: true,
	})
	require.NoError(t, err)

	auth := findAdapter(adapters, "ncma_members").(*AuthAdapter)
	assert.Equal(t, "u", auth.cred.Username)
	assert.True(t, auth.allowUnverified)
}

func findAdapter(adapters []scraper.Adapter, name string) scraper.Adapter {
	for _, a := range adapters {
		if a.Name() == name {
			return a
		}
	}
	return nil
}
