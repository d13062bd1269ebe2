package xref

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contractor-cli/internal/normalize"
	"github.com/sells-group/contractor-cli/internal/resilience"
	"github.com/sells-group/contractor-cli/pkg/google"
)

// PlacesLookup searches Google Places by business name. License numbers
// are not searchable there and always miss.
type PlacesLookup struct {
	client  google.Client
	breaker *resilience.Breaker
	retry   resilience.Backoff
}

// NewPlacesLookup wraps client with retries and a circuit breaker.
func NewPlacesLookup(client google.Client) *PlacesLookup {
	retry := resilience.DefaultBackoff()
	retry.OnRetry = resilience.LogRetry("xref", "google_places")
	return &PlacesLookup{
		client:  client,
		breaker: resilience.NewBreaker("google_places", 5, 0),
		retry:   retry,
	}
}

// Name implements Lookup.
func (p *PlacesLookup) Name() string { return "google_places" }

// Find implements Lookup. Only a place whose name matches the key is
// accepted, and permanently closed places are ignored.
func (p *PlacesLookup) Find(ctx context.Context, q Query) (Contact, error) {
	if q.Key.Kind == KeyLicense {
		return Contact{}, nil
	}

	resp, err := resilience.Guard(ctx, p.breaker, func(ctx context.Context) (*google.TextSearchResponse, error) {
		return resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*google.TextSearchResponse, error) {
			resp, err := p.client.TextSearch(ctx, google.TextSearchRequest{
				TextQuery:      q.Text(),
				MaxResultCount: 5,
				RegionCode:     "US",
			})
			var apiErr *google.APIError
			if errors.As(err, &apiErr) && resilience.RetryableStatus(apiErr.StatusCode) {
				return nil, resilience.Transient(err, apiErr.StatusCode)
			}
			return resp, err
		})
	})
	if err != nil {
		return Contact{}, eris.Wrapf(err, "xref: places search %q", q.Key.Value)
	}

	want := normalize.NameKey(q.Key.Value)
	for _, place := range resp.Places {
		if place.Closed() || normalize.NameKey(place.DisplayName.Text) != want {
			continue
		}
		return Contact{
			Phone:   place.Phone(),
			Website: place.WebsiteURI,
			Source:  p.Name(),
		}, nil
	}
	return Contact{}, nil
}
