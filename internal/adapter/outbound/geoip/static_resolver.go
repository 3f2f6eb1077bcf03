// Package geoip resolves IP addresses to geographic locations from a
// static, operator-supplied CIDR table. It serves deployments without a
// commercial geolocation feed and keeps tests hermetic.
package geoip

import (
	"context"
	"fmt"
	"net/netip"
	"sort"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/geo"
)

// Entry maps one CIDR block to a location.
type Entry struct {
	CIDR     string
	Location geo.Location
}

type prefixEntry struct {
	prefix   netip.Prefix
	location geo.Location
}

// StaticResolver implements geo.Resolver over a fixed prefix table. The
// most specific matching prefix wins. Lookups for addresses outside the
// table return nil, which validation treats as "location unknown".
type StaticResolver struct {
	entries []prefixEntry
}

// NewStaticResolver parses and orders the entries. Invalid CIDRs fail
// construction so bad tables surface at startup.
func NewStaticResolver(entries []Entry) (*StaticResolver, error) {
	r := &StaticResolver{entries: make([]prefixEntry, 0, len(entries))}
	for _, e := range entries {
		prefix, err := netip.ParsePrefix(e.CIDR)
		if err != nil {
			return nil, fmt.Errorf("parse geo entry %q: %w", e.CIDR, err)
		}
		r.entries = append(r.entries, prefixEntry{prefix: prefix.Masked(), location: e.Location})
	}

	// Longest prefix first so the most specific entry matches.
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].prefix.Bits() > r.entries[j].prefix.Bits()
	})
	return r, nil
}

// Resolve returns the location for an address, or nil when no entry
// covers it.
func (r *StaticResolver) Resolve(_ context.Context, ip string) (*geo.Location, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", ip, err)
	}
	addr = addr.Unmap()

	for _, e := range r.entries {
		if e.prefix.Contains(addr) {
			loc := e.location
			return &loc, nil
		}
	}
	return nil, nil
}

// Len returns the number of table entries.
func (r *StaticResolver) Len() int {
	return len(r.entries)
}

// Compile-time interface verification.
var _ geo.Resolver = (*StaticResolver)(nil)
