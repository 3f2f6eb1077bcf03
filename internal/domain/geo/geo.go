// Package geo contains geolocation types and distance math used by
// session validation.
package geo

import "context"

// Location describes a resolved geographic position for an IP address.
type Location struct {
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	City      string  `json:"city"`
	Timezone  string  `json:"timezone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Resolver looks up the location for an IP address.
// A nil Location with a nil error means the address is unknown;
// callers treat unknown locations as a soft skip, not a failure.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*Location, error)
}

// SameCountry reports whether both locations are known and share a country.
func SameCountry(a, b *Location) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Country != "" && a.Country == b.Country
}
