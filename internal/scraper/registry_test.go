package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_OrderAndLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubAdapter{name: "belgard", category: Manufacturer})
	reg.Register(&stubAdapter{name: "yelp", category: Directory})
	reg.Register(&stubAdapter{name: "techo", category: Manufacturer})

	assert.Equal(t, []string{"belgard", "yelp", "techo"}, reg.AllNames())
	assert.Equal(t, 3, reg.Len())

	a, err := reg.Get("yelp")
	require.NoError(t, err)
	assert.Equal(t, Directory, a.Category())

	_, err = reg.Get("angi")
	assert.Error(t, err)

	mans := reg.ByCategory(Manufacturer)
	require.Len(t, mans, 2)
	assert.Equal(t, "belgard", mans[0].Name())
	assert.Equal(t, "techo", mans[1].Name())
}

func TestRegistry_ReplaceKeepsPosition(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubAdapter{name: "a", category: Local})
	reg.Register(&stubAdapter{name: "b", category: Local})
	reg.Register(&stubAdapter{name: "a", category: Directory})

	assert.Equal(t, []string{"a", "b"}, reg.AllNames())
	a, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, Directory, a.Category())
}

func TestRegistry_Select(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubAdapter{name: "a", category: Local})
	reg.Register(&stubAdapter{name: "b", category: Directory})
	reg.Register(&stubAdapter{name: "c", category: Local})

	all, err := reg.Select(nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	local := Local
	got, err := reg.Select(&local, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[1].Name())

	got, err = reg.Select(&local, []string{"c", "b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Name())

	got, err = reg.Select(nil, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, "c", got[0].Name())
	assert.Equal(t, "a", got[1].Name())

	_, err = reg.Select(nil, []string{"zzz"})
	assert.Error(t, err)
}
