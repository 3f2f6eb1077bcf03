package validation

import (
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/geo"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/risk"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
)

// geoCheck reasons about resolved locations. Unknown locations on either
// side skip the check. A country change raises an indicator; an implied
// travel speed beyond what aircraft manage is treated as a hijacked
// credential, not a traveler.
type geoCheck struct {
	maxSpeedKmh float64
}

var _ Check = (*geoCheck)(nil)

func (c *geoCheck) Name() string { return "geo_velocity" }

func (c *geoCheck) Evaluate(in *Input) []Verdict {
	from := in.Session.Context.Location
	to := in.Context.Location
	if from == nil || to == nil {
		return nil
	}

	gap := in.Gap()
	speed := geo.SpeedKmh(*from, *to, gap)
	if speed > c.maxSpeedKmh {
		dist := geo.DistanceKm(*from, *to)
		return []Verdict{{
			Check:     c.Name(),
			Indicator: IndicatorImpossibleTravel,
			EndState:  session.StateHijacked,
			EndReason: ReasonImpossibleTravel,
			Err: &session.ImpossibleTravelError{
				SessionID:  in.Session.ID,
				DistanceKm: dist,
				SpeedKmh:   speed,
				Window:     gap,
			},
		}}
	}

	if !geo.SameCountry(from, to) {
		return []Verdict{{
			Check:     c.Name(),
			Indicator: IndicatorGeoMismatch,
			RiskDelta: risk.DeltaGeoMismatch,
		}}
	}
	return nil
}
