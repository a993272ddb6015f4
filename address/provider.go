package address

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"listingdesk/httputil"
	"listingdesk/logging"
)

// MinQueryLength is the shortest query worth sending to a provider.
const MinQueryLength = 3

// Suggestion is one candidate address for a partial query.
type Suggestion struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

type Provider interface {
	Search(ctx context.Context, query string) ([]Suggestion, error)
}

// NominatimProvider searches an OpenStreetMap Nominatim endpoint.
type NominatimProvider struct {
	baseURL string
	country string
	limit   int
	client  *http.Client
}

func NewNominatimProvider(baseURL, country string, client *http.Client) *NominatimProvider {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &NominatimProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		country: country,
		limit:   5,
		client:  client,
	}
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (p *NominatimProvider) Search(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "0")
	params.Set("limit", strconv.Itoa(p.limit))
	if p.country != "" {
		params.Set("countrycodes", p.country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httputil.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("address lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("address lookup %d: %s", resp.StatusCode, string(body))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decode address lookup: %w", err)
	}

	out := make([]Suggestion, 0, len(places))
	for _, pl := range places {
		lat, _ := strconv.ParseFloat(pl.Lat, 64)
		lon, _ := strconv.ParseFloat(pl.Lon, 64)
		out = append(out, Suggestion{Label: pl.DisplayName, Lat: lat, Lon: lon})
	}
	logging.Debugf("Address: %q -> %d suggestions", query, len(out))
	return out, nil
}
