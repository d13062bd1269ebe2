package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleGeocode_Rooftop(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {
					"location": {"lat": 33.4484, "lng": -112.0740},
					"location_type": "ROOFTOP"
				},
				"formatted_address": "200 W Washington St, Phoenix, AZ 85003"
			}]
		}`)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL, WithGoogleAPIKey("test-key"))
	p, err := c.geocodeGoogle(context.Background(), "200 W Washington St, Phoenix, AZ 85003")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "test-key", gotKey)
	assert.InDelta(t, 33.4484, p.Lat, 0.0001)
	assert.Equal(t, "google", p.Source)
	assert.Equal(t, "rooftop", p.Quality)
}

func TestGoogleGeocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL, WithGoogleAPIKey("test-key"))
	p, err := c.geocodeGoogle(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGoogleGeocode_DeniedIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "REQUEST_DENIED", "results": []}`)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL, WithGoogleAPIKey("bad-key"))
	_, err := c.geocodeGoogle(context.Background(), "1 Main St")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestGoogleGeocode_NoKey(t *testing.T) {
	c := newTestClient("", "")
	_, err := c.geocodeGoogle(context.Background(), "1 Main St")
	require.Error(t, err)
}

func TestGoogleLocationTypeToQuality(t *testing.T) {
	assert.Equal(t, "rooftop", googleLocationTypeToQuality("ROOFTOP"))
	assert.Equal(t, "range", googleLocationTypeToQuality("range_interpolated"))
	assert.Equal(t, "centroid", googleLocationTypeToQuality("GEOMETRIC_CENTER"))
	assert.Equal(t, "approximate", googleLocationTypeToQuality("APPROXIMATE"))
	assert.Equal(t, "approximate", googleLocationTypeToQuality(""))
}
