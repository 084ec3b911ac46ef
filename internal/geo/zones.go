// Package geo answers proximity queries against a fixed table of
// high-sensitivity zones (hospitals, schools, markets).
package geo

import (
	"math"

	"github.com/aawaaz/grievance-engine/internal/config"
)

// EarthRadiusKm is the mean Earth radius used by Haversine
const EarthRadiusKm = 6371.0

// Zone is a named circle on the map
type Zone struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radius_km"`
}

// Index is an immutable zone table. Safe for concurrent use.
type Index struct {
	zones []Zone
}

// NewIndex builds an index over zones
func NewIndex(zones []Zone) *Index {
	cp := make([]Zone, len(zones))
	copy(cp, zones)
	return &Index{zones: cp}
}

// FromRules builds an index from the configured rule set
func FromRules(rules *config.Rules) *Index {
	zones := make([]Zone, 0, len(rules.Zones))
	for _, z := range rules.Zones {
		zones = append(zones, Zone{Name: z.Name, Kind: z.Kind, Lat: z.Lat, Lng: z.Lng, RadiusKm: z.RadiusKm})
	}
	return NewIndex(zones)
}

// Zones returns a copy of the zone table
func (ix *Index) Zones() []Zone {
	cp := make([]Zone, len(ix.zones))
	copy(cp, ix.zones)
	return cp
}

// Containing returns the first zone whose radius contains the point
func (ix *Index) Containing(lat, lng float64) (Zone, bool) {
	for _, z := range ix.zones {
		if Haversine(lat, lng, z.Lat, z.Lng) <= z.RadiusKm {
			return z, true
		}
	}
	return Zone{}, false
}

// Nearest returns the zone whose center is closest to the point and the
// distance to it in km. ok is false when the index is empty.
func (ix *Index) Nearest(lat, lng float64) (zone Zone, distanceKm float64, ok bool) {
	distanceKm = math.Inf(1)
	for _, z := range ix.zones {
		d := Haversine(lat, lng, z.Lat, z.Lng)
		if d < distanceKm {
			zone, distanceKm, ok = z, d, true
		}
	}
	return zone, distanceKm, ok
}

// Haversine returns the great-circle distance in km between two points
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
