// Package places is a thin client for the Google Places and Geocoding
// REST APIs. Every call degrades gracefully: the HTTP surface that
// uses it falls back to the demo directory when a lookup fails.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/callpilot/backend/internal/directory"
)

const defaultBaseURL = "https://maps.googleapis.com"

const maxResults = 8

var placeTypeByService = map[string]string{
	"dentist":  "dentist",
	"mechanic": "car_repair",
	"salon":    "hair_care",
}

type Client struct {
	key     string
	baseURL string
	http    *http.Client
}

func NewClient(key string) *Client {
	return &Client{
		key:     key,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithBaseURL exists for tests against a local fixture server.
func NewClientWithBaseURL(key, baseURL string) *Client {
	c := NewClient(key)
	c.baseURL = baseURL
	return c
}

type nearbyResponse struct {
	Results []struct {
		Name     string `json:"name"`
		Vicinity string `json:"vicinity"`
		Rating   float64 `json:"rating"`
		PlaceID  string `json:"place_id"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	Status string `json:"status"`
}

// NearbySearch finds providers of the given service around a point,
// nearest first.
func (c *Client) NearbySearch(ctx context.Context, service string, lat, lng float64, radiusMeters int) ([]directory.Provider, error) {
	placeType, ok := placeTypeByService[strings.ToLower(service)]
	if !ok {
		placeType = "establishment"
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", fmt.Sprintf("%d", radiusMeters))
	params.Set("type", placeType)
	params.Set("key", c.key)

	var resp nearbyResponse
	if err := c.get(ctx, "/maps/api/place/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}

	results := resp.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	providers := make([]directory.Provider, 0, len(results))
	for _, place := range results {
		pLat, pLng := place.Geometry.Location.Lat, place.Geometry.Location.Lng
		km := directory.HaversineKm(lat, lng, pLat, pLng)
		providers = append(providers, directory.Provider{
			Name:       place.Name,
			Phone:      "", // needs a Place Details call
			Rating:     place.Rating,
			Address:    place.Vicinity,
			Lat:        pLat,
			Lng:        pLng,
			DistanceKm: roundKm(km),
			Hours:      "Call for hours",
			PlaceID:    place.PlaceID,
		})
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].DistanceKm < providers[j].DistanceKm })
	return providers, nil
}

type detailsResponse struct {
	Result struct {
		FormattedPhoneNumber     string `json:"formatted_phone_number"`
		InternationalPhoneNumber string `json:"international_phone_number"`
		OpeningHours             struct {
			WeekdayText []string `json:"weekday_text"`
		} `json:"opening_hours"`
	} `json:"result"`
	Status string `json:"status"`
}

// Details holds the phone number and a short opening-hours summary for
// one place.
type Details struct {
	Phone string `json:"phone"`
	Hours string `json:"hours"`
}

func (c *Client) PlaceDetails(ctx context.Context, placeID string) (Details, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "formatted_phone_number,international_phone_number,opening_hours")
	params.Set("key", c.key)

	var resp detailsResponse
	if err := c.get(ctx, "/maps/api/place/details/json", params, &resp); err != nil {
		return Details{}, err
	}

	phone := resp.Result.InternationalPhoneNumber
	if phone == "" {
		phone = resp.Result.FormattedPhoneNumber
	}
	hours := resp.Result.OpeningHours.WeekdayText
	if len(hours) > 3 {
		hours = hours[:3]
	}
	return Details{Phone: phone, Hours: strings.Join(hours, ", ")}, nil
}

type geocodeResponse struct {
	Results []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
	Status string `json:"status"`
}

// Location is a reverse-geocoded point.
type Location struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Area    string `json:"area"`
}

func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (Location, error) {
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("key", c.key)

	var resp geocodeResponse
	if err := c.get(ctx, "/maps/api/geocode/json", params, &resp); err != nil {
		return Location{}, err
	}
	if len(resp.Results) == 0 {
		return Location{}, fmt.Errorf("no geocode results")
	}

	first := resp.Results[0]
	loc := Location{Address: first.FormattedAddress}
	for _, comp := range first.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "locality":
				if loc.City == "" {
					loc.City = comp.LongName
				}
			case "sublocality":
				if loc.Area == "" {
					loc.Area = comp.LongName
				}
			}
		}
	}
	if loc.Area == "" {
		loc.Area = loc.City
	}
	return loc, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places API status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func roundKm(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
