// Package geo looks up network operators near a site.
// The reference set is static demo data; production deployments swap in a
// coverage dataset behind the Locator interface.
package geo

import (
	"context"
	"math"
	"sort"

	"fibre-cost/core/types"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula
const EarthRadiusKm = 6371.0

// DefaultK is the default number of providers returned
const DefaultK = 3

// Locator finds the providers nearest to a coordinate
type Locator interface {
	FindNearest(ctx context.Context, lat, lon float64, k int) ([]types.NearbyProvider, error)
}

// StaticLocator searches a fixed provider list
type StaticLocator struct {
	providers []types.NearbyProvider
}

// NewStaticLocator creates a locator over providers.
// A nil list uses the built-in reference set.
func NewStaticLocator(providers []types.NearbyProvider) *StaticLocator {
	if providers == nil {
		providers = ReferenceProviders()
	}
	return &StaticLocator{providers: providers}
}

// FindNearest returns the k closest providers in ascending distance.
// At least one provider is returned when the set is non-empty.
func (l *StaticLocator) FindNearest(ctx context.Context, lat, lon float64, k int) ([]types.NearbyProvider, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := make([]types.NearbyProvider, len(l.providers))
	for i, p := range l.providers {
		p.DistanceKm = HaversineKm(lat, lon, p.Latitude, p.Longitude)
		items[i] = p
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DistanceKm < items[j].DistanceKm
	})

	if k < 1 {
		k = 1
	}
	if k > len(items) {
		k = len(items)
	}
	return items[:k], nil
}

// HaversineKm is the great-circle distance between two points
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Pow(math.Sin(dLon/2), 2)
	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ReferenceProviders returns the demo reference set (Mumbai, Delhi NCR, Bengaluru)
func ReferenceProviders() []types.NearbyProvider {
	return []types.NearbyProvider{
		// Mumbai
		{Name: "Jio", Latitude: 19.0760, Longitude: 72.8777, Notes: "High density zone"},
		{Name: "Airtel", Latitude: 19.0896, Longitude: 72.8656, Notes: "Fiber core nearby"},
		{Name: "BSNL", Latitude: 19.0176, Longitude: 72.8562, Notes: "Legacy infrastructure area"},
		// Delhi NCR
		{Name: "Jio", Latitude: 28.6139, Longitude: 77.2090, Notes: "Metro cluster"},
		{Name: "Airtel", Latitude: 28.4595, Longitude: 77.0266, Notes: "Backbone ring nearby"},
		{Name: "BSNL", Latitude: 28.5355, Longitude: 77.3910, Notes: "Legacy exchange region"},
		// Bengaluru
		{Name: "Jio", Latitude: 12.9716, Longitude: 77.5946},
		{Name: "Airtel", Latitude: 12.9352, Longitude: 77.6245},
		{Name: "BSNL", Latitude: 12.9141, Longitude: 77.6320},
	}
}
