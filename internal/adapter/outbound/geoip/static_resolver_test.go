package geoip

import (
	"context"
	"testing"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/geo"
)

func testEntries() []Entry {
	return []Entry{
		{CIDR: "203.0.113.0/24", Location: geo.Location{Country: "US", Region: "NY", City: "New York", Timezone: "America/New_York", Latitude: 40.7128, Longitude: -74.0060}},
		{CIDR: "203.0.113.128/25", Location: geo.Location{Country: "US", Region: "NJ", City: "Newark", Timezone: "America/New_York", Latitude: 40.7357, Longitude: -74.1724}},
		{CIDR: "198.51.100.0/24", Location: geo.Location{Country: "GB", Region: "ENG", City: "London", Timezone: "Europe/London", Latitude: 51.5074, Longitude: -0.1278}},
		{CIDR: "2001:db8::/32", Location: geo.Location{Country: "AU", Region: "NSW", City: "Sydney", Timezone: "Australia/Sydney", Latitude: -33.8688, Longitude: 151.2093}},
	}
}

func TestStaticResolver_Resolve(t *testing.T) {
	t.Parallel()

	r, err := NewStaticResolver(testEntries())
	if err != nil {
		t.Fatalf("NewStaticResolver() error: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name     string
		ip       string
		wantCity string
	}{
		{"v4 match", "203.0.113.10", "New York"},
		{"most specific prefix wins", "203.0.113.200", "Newark"},
		{"second table entry", "198.51.100.77", "London"},
		{"v6 match", "2001:db8::1", "Sydney"},
		{"v4-mapped v6 unmapped first", "::ffff:198.51.100.77", "London"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := r.Resolve(ctx, tt.ip)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.ip, err)
			}
			if loc == nil {
				t.Fatalf("Resolve(%q) = nil, want %s", tt.ip, tt.wantCity)
			}
			if loc.City != tt.wantCity {
				t.Errorf("Resolve(%q).City = %q, want %q", tt.ip, loc.City, tt.wantCity)
			}
		})
	}
}

func TestStaticResolver_UnknownAddress(t *testing.T) {
	t.Parallel()

	r, err := NewStaticResolver(testEntries())
	if err != nil {
		t.Fatalf("NewStaticResolver() error: %v", err)
	}

	loc, err := r.Resolve(context.Background(), "192.0.2.1")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if loc != nil {
		t.Errorf("Resolve() uncovered address = %+v, want nil", loc)
	}
}

func TestStaticResolver_MalformedAddress(t *testing.T) {
	t.Parallel()

	r, err := NewStaticResolver(testEntries())
	if err != nil {
		t.Fatalf("NewStaticResolver() error: %v", err)
	}

	if _, err := r.Resolve(context.Background(), "not-an-ip"); err == nil {
		t.Error("Resolve() accepted a malformed address")
	}
}

func TestStaticResolver_InvalidCIDR(t *testing.T) {
	t.Parallel()

	_, err := NewStaticResolver([]Entry{{CIDR: "203.0.113.0/40"}})
	if err == nil {
		t.Error("NewStaticResolver() accepted an invalid prefix length")
	}
}

func TestStaticResolver_CopyOut(t *testing.T) {
	t.Parallel()

	r, err := NewStaticResolver(testEntries())
	if err != nil {
		t.Fatalf("NewStaticResolver() error: %v", err)
	}
	ctx := context.Background()

	first, err := r.Resolve(ctx, "203.0.113.10")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	first.Country = "XX"

	second, err := r.Resolve(ctx, "203.0.113.10")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if second.Country != "US" {
		t.Error("resolver returned a shared Location pointer")
	}
}
