// Package geo wraps the OpenCage reverse-geocoding API. Lookups that
// fail for any reason fall back to a plain coordinate string so the
// caller always gets something displayable.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type Geocoder struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewGeocoder(baseURL, apiKey string, httpClient *http.Client) *Geocoder {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Geocoder{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

// CoordinateFallback formats a raw coordinate pair.
func CoordinateFallback(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', 6, 64) + ", " + strconv.FormatFloat(lon, 'f', 6, 64)
}

// Reverse looks up a formatted address for the coordinates. On any
// lookup failure it returns the coordinate fallback and a nil error;
// only invalid input is an error.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("invalid coordinates: %v, %v", lat, lon)
	}

	addr, err := g.lookup(ctx, lat, lon)
	if err != nil {
		return CoordinateFallback(lat, lon), nil
	}
	return addr, nil
}

func (g *Geocoder) lookup(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("q", fmt.Sprintf("%f,%f", lat, lon))
	q.Set("language", "es")
	q.Set("no_annotations", "1")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoder returned %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Formatted  string `json:"formatted"`
			Components struct {
				Road         string `json:"road"`
				Street       string `json:"street"`
				HouseNumber  string `json:"house_number"`
				City         string `json:"city"`
				Town         string `json:"town"`
				Village      string `json:"village"`
				Municipality string `json:"municipality"`
				State        string `json:"state"`
				Country      string `json:"country"`
			} `json:"components"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(body.Results) == 0 {
		return "", fmt.Errorf("no geocoder results")
	}

	res := body.Results[0]

	road := firstNonEmpty(res.Components.Road, res.Components.Street)
	city := firstNonEmpty(res.Components.City, res.Components.Town, res.Components.Village, res.Components.Municipality)

	var parts []string
	if road != "" {
		if res.Components.HouseNumber != "" {
			parts = append(parts, road+" "+res.Components.HouseNumber)
		} else {
			parts = append(parts, road)
		}
	}
	for _, p := range []string{city, res.Components.State, res.Components.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) == 0 {
		if res.Formatted != "" {
			return res.Formatted, nil
		}
		return "", fmt.Errorf("empty geocoder result")
	}
	return strings.Join(parts, ", "), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
