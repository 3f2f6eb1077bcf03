package validation

import (
	"net/netip"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/risk"
)

// Subnet widths treated as the same network: DHCP churn inside an IPv4
// /24 or an IPv6 /64 is not an anomaly.
const (
	sameNetBitsV4 = 24
	sameNetBitsV6 = 64
)

// ipCheck flags requests arriving from a different network than the one
// the session last used. A different address inside the same subnet is
// free; anything further raises a location indicator.
type ipCheck struct{}

var _ Check = (*ipCheck)(nil)

func (c *ipCheck) Name() string { return "ip_consistency" }

func (c *ipCheck) Evaluate(in *Input) []Verdict {
	prev, cur := in.Session.Context.IP, in.Context.IP
	if prev == cur || sameSubnet(prev, cur) {
		return nil
	}
	return []Verdict{{
		Check:     c.Name(),
		Indicator: IndicatorLocationAnomaly,
		RiskDelta: risk.DeltaIPChange,
	}}
}

func sameSubnet(a, b string) bool {
	pa, err := netip.ParseAddr(a)
	if err != nil {
		return false
	}
	pb, err := netip.ParseAddr(b)
	if err != nil {
		return false
	}
	pa, pb = pa.Unmap(), pb.Unmap()
	if pa.Is4() != pb.Is4() {
		return false
	}
	bits := sameNetBitsV6
	if pa.Is4() {
		bits = sameNetBitsV4
	}
	prefix, err := pa.Prefix(bits)
	if err != nil {
		return false
	}
	return prefix.Contains(pb)
}
