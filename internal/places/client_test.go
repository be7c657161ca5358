package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fixtureServer(t *testing.T, wantPath string, body string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNearbySearch(t *testing.T) {
	srv := fixtureServer(t, "/maps/api/place/nearbysearch/json", `{
		"status": "OK",
		"results": [
			{"name": "Far Dental", "vicinity": "2 Far Road", "rating": 4.1, "place_id": "far",
			 "geometry": {"location": {"lat": 37.80, "lng": -122.40}}},
			{"name": "Near Dental", "vicinity": "1 Near Street", "rating": 4.9, "place_id": "near",
			 "geometry": {"location": {"lat": 37.7750, "lng": -122.4195}}}
		]
	}`)

	c := NewClientWithBaseURL("test-key", srv.URL)
	providers, err := c.NearbySearch(context.Background(), "dentist", 37.7749, -122.4194, 5000)
	if err != nil {
		t.Fatalf("NearbySearch error: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(providers))
	}
	if providers[0].Name != "Near Dental" {
		t.Errorf("nearest provider = %q, want Near Dental", providers[0].Name)
	}
	if providers[0].PlaceID != "near" {
		t.Errorf("place_id = %q", providers[0].PlaceID)
	}
	if providers[0].Hours != "Call for hours" {
		t.Errorf("hours = %q", providers[0].Hours)
	}
	if providers[1].DistanceKm <= providers[0].DistanceKm {
		t.Errorf("results not sorted by distance: %f then %f", providers[0].DistanceKm, providers[1].DistanceKm)
	}
}

func TestPlaceDetails(t *testing.T) {
	srv := fixtureServer(t, "/maps/api/place/details/json", `{
		"status": "OK",
		"result": {
			"formatted_phone_number": "(555) 010-0101",
			"international_phone_number": "+1 555-010-0101",
			"opening_hours": {"weekday_text": ["Mon: 9-5", "Tue: 9-5", "Wed: 9-5", "Thu: 9-5"]}
		}
	}`)

	c := NewClientWithBaseURL("test-key", srv.URL)
	details, err := c.PlaceDetails(context.Background(), "some-place")
	if err != nil {
		t.Fatalf("PlaceDetails error: %v", err)
	}
	if details.Phone != "+1 555-010-0101" {
		t.Errorf("phone = %q, want the international number", details.Phone)
	}
	if details.Hours != "Mon: 9-5, Tue: 9-5, Wed: 9-5" {
		t.Errorf("hours = %q, want first three days", details.Hours)
	}
}

func TestReverseGeocode(t *testing.T) {
	srv := fixtureServer(t, "/maps/api/geocode/json", `{
		"status": "OK",
		"results": [{
			"formatted_address": "1 Market St, San Francisco, CA",
			"address_components": [
				{"long_name": "South Beach", "types": ["sublocality", "political"]},
				{"long_name": "San Francisco", "types": ["locality", "political"]}
			]
		}]
	}`)

	c := NewClientWithBaseURL("test-key", srv.URL)
	loc, err := c.ReverseGeocode(context.Background(), 37.7749, -122.4194)
	if err != nil {
		t.Fatalf("ReverseGeocode error: %v", err)
	}
	if loc.Address != "1 Market St, San Francisco, CA" {
		t.Errorf("address = %q", loc.Address)
	}
	if loc.City != "San Francisco" || loc.Area != "South Beach" {
		t.Errorf("city/area = %q/%q", loc.City, loc.Area)
	}
}

func TestReverseGeocodeNoResults(t *testing.T) {
	srv := fixtureServer(t, "/maps/api/geocode/json", `{"status": "ZERO_RESULTS", "results": []}`)

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.ReverseGeocode(context.Background(), 0, 0); err == nil {
		t.Fatal("ReverseGeocode with no results succeeded")
	}
}

func TestHTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.NearbySearch(context.Background(), "dentist", 0, 0, 1000); err == nil {
		t.Fatal("NearbySearch with 500 response succeeded")
	}
}
