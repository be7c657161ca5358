// Package directory is the demo provider database used when no Google
// Places key is configured. Providers are scattered deterministically
// around the caller's location so the map looks alive without any
// external lookups.
package directory

import (
	"math"
	"math/rand"
	"sort"
	"strings"
)

// Provider is one bookable business near the caller.
type Provider struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Rating     float64 `json:"rating"`
	Address    string  `json:"address"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKm float64 `json:"distance_km"`
	Hours      string  `json:"hours"`
	PlaceID    string  `json:"place_id,omitempty"`
}

var providersByService = map[string][]Provider{
	"dentist": {
		{Name: "SmileCare Dental Clinic", Phone: "+1-555-0101", Rating: 4.8, Address: "123 Health Blvd", Hours: "Mon-Sat 9AM-6PM"},
		{Name: "Downtown Dental Associates", Phone: "+1-555-0102", Rating: 4.5, Address: "456 Main Street", Hours: "Mon-Fri 8AM-5PM"},
		{Name: "Pearl White Dentistry", Phone: "+1-555-0103", Rating: 4.9, Address: "789 Oak Avenue", Hours: "Mon-Fri 9AM-7PM"},
		{Name: "City Smile Center", Phone: "+1-555-0104", Rating: 4.3, Address: "321 Park Lane", Hours: "Mon-Sat 10AM-6PM"},
		{Name: "Gentle Touch Dental", Phone: "+1-555-0105", Rating: 4.7, Address: "654 Elm Street", Hours: "Tue-Sat 9AM-5PM"},
	},
	"mechanic": {
		{Name: "QuickFix Auto Repair", Phone: "+1-555-0201", Rating: 4.6, Address: "100 Auto Row", Hours: "Mon-Sat 7AM-6PM"},
		{Name: "Mike's Garage & Service", Phone: "+1-555-0202", Rating: 4.4, Address: "200 Mechanic Way", Hours: "Mon-Fri 8AM-5PM"},
		{Name: "Elite Auto Works", Phone: "+1-555-0203", Rating: 4.8, Address: "300 Motor Drive", Hours: "Mon-Sat 8AM-7PM"},
		{Name: "Precision Auto Care", Phone: "+1-555-0204", Rating: 4.2, Address: "400 Tire Lane", Hours: "Mon-Fri 7AM-6PM"},
		{Name: "Speedy Lube & Repair", Phone: "+1-555-0205", Rating: 4.5, Address: "500 Service Blvd", Hours: "Mon-Sun 8AM-8PM"},
	},
	"salon": {
		{Name: "Luxe Hair Studio", Phone: "+1-555-0301", Rating: 4.9, Address: "10 Fashion Ave", Hours: "Tue-Sun 10AM-8PM"},
		{Name: "Shear Elegance Salon", Phone: "+1-555-0302", Rating: 4.6, Address: "20 Style Street", Hours: "Mon-Sat 9AM-7PM"},
		{Name: "The Cutting Edge", Phone: "+1-555-0303", Rating: 4.7, Address: "30 Beauty Blvd", Hours: "Tue-Sat 10AM-6PM"},
		{Name: "Glow Up Hair & Spa", Phone: "+1-555-0304", Rating: 4.4, Address: "40 Glamour Lane", Hours: "Mon-Sun 9AM-9PM"},
		{Name: "Urban Roots Salon", Phone: "+1-555-0305", Rating: 4.8, Address: "50 Trend Ave", Hours: "Wed-Mon 11AM-7PM"},
	},
}

// Nearby returns demo providers placed around (lat, lng), nearest
// first. Unknown services fall back to dentists.
func Nearby(service string, lat, lng float64) []Provider {
	key := strings.ToLower(strings.TrimSpace(service))
	base, ok := providersByService[key]
	if !ok {
		base = providersByService["dentist"]
	}
	return scatter(base, lat, lng)
}

// scatter places providers within roughly 3km of the caller. The seed
// is fixed so repeated lookups from the same spot return the same map.
func scatter(base []Provider, lat, lng float64) []Provider {
	rng := rand.New(rand.NewSource(42))
	out := make([]Provider, len(base))
	for i, p := range base {
		offsetLat := (rng.Float64() - 0.5) * 0.06
		offsetLng := (rng.Float64() - 0.5) * 0.06
		p.Lat = round6(lat + offsetLat)
		p.Lng = round6(lng + offsetLng)
		p.DistanceKm = round1(HaversineKm(lat, lng, p.Lat, p.Lng))
		out[i] = p
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

// HaversineKm is the great-circle distance between two coordinates.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371
	dlat := radians(lat2 - lat1)
	dlng := radians(lng2 - lng1)
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dlng/2)*math.Sin(dlng/2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
