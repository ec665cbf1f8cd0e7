package places

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tripkit/internal/provider"
)

const DefaultGoogleAPIBase = "https://maps.googleapis.com"

// GooglePlaces uses the Places Text Search API.
type GooglePlaces struct {
	apiBase string
	apiKey  string
	client  *http.Client
}

func NewGooglePlaces(apiBase, apiKey string, client *http.Client) *GooglePlaces {
	if apiBase == "" {
		apiBase = DefaultGoogleAPIBase
	}
	if client == nil {
		client = provider.SharedHTTPClient(10 * time.Second)
	}
	return &GooglePlaces{apiBase: strings.TrimRight(apiBase, "/"), apiKey: apiKey, client: client}
}

func (g *GooglePlaces) Name() string { return "google_places" }

type textSearchResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		Rating           float64 `json:"rating"`
	} `json:"results"`
}

func (g *GooglePlaces) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("key", g.apiKey)

	var resp textSearchResponse
	if err := provider.FetchJSON(ctx, g.client, g.apiBase+"/maps/api/place/textsearch/json?"+q.Encode(), &resp, g.apiKey); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("places status %s: %s", resp.Status, resp.ErrorMessage)
	}

	if limit <= 0 {
		limit = len(resp.Results)
	}
	out := make([]Place, 0, min(limit, len(resp.Results)))
	for _, r := range resp.Results {
		if len(out) == limit {
			break
		}
		desc := r.FormattedAddress
		if r.Rating > 0 {
			desc = fmt.Sprintf("%s (rating %.1f)", desc, r.Rating)
		}
		out = append(out, Place{Name: r.Name, Descriptor: strings.TrimSpace(desc)})
	}
	return out, nil
}
