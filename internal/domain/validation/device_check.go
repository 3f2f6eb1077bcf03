package validation

import (
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/device"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/risk"
)

// deviceCheck compares the presented fingerprint against the one the
// session was bound to. Mild drift (browser updates, plugin changes)
// passes; a substantially different fingerprint raises an indicator and
// a near-total mismatch forces reauthentication.
type deviceCheck struct {
	flagBelow   float64
	reauthBelow float64
}

var _ Check = (*deviceCheck)(nil)

func (c *deviceCheck) Name() string { return "device_fingerprint" }

func (c *deviceCheck) Evaluate(in *Input) []Verdict {
	bound := in.Session.Context.DeviceFingerprint
	if in.Binding != nil {
		bound = in.Binding.Fingerprint
	}
	sim := device.Similarity(bound, in.Context.DeviceFingerprint)
	if sim >= c.flagBelow {
		return nil
	}
	return []Verdict{{
		Check:       c.Name(),
		Indicator:   IndicatorDeviceChange,
		RiskDelta:   risk.DeltaDeviceChange,
		ForceReauth: sim < c.reauthBelow,
	}}
}
