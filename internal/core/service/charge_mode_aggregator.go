package service

import (
	"errors"
	"math"

	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/core/port"

	"go.uber.org/zap"
)

var ErrNoCandidateVoltages = errors.New("no candidate voltages for current aggregated charge mode")

// StickyChargeModeAggregator keeps one aggregated charge mode across
// cycles. The mode only moves down to the float categories once every
// battery has left ramp at the same time; a single straggler blocks the
// downgrade, and a single ramp outlier among floating peers does not pull
// the fleet back up either. Mixed fleets are ambiguous and leave the
// stored mode untouched.
type StickyChargeModeAggregator struct {
	mode   domain.AggregatedChargeMode
	logger *zap.Logger
}

func NewStickyChargeModeAggregator(initial domain.AggregatedChargeMode, logger *zap.Logger) *StickyChargeModeAggregator {
	return &StickyChargeModeAggregator{
		mode:   initial,
		logger: logger,
	}
}

func (a *StickyChargeModeAggregator) Mode() domain.AggregatedChargeMode {
	return a.mode
}

// AdvanceMode applies the transition rule for one cycle. An empty input
// leaves the mode unchanged.
func (a *StickyChargeModeAggregator) AdvanceMode(modes []domain.ChargeMode) {
	var hasRamp, hasTransition, hasFloat bool
	for _, m := range modes {
		hasRamp = hasRamp || m.IsRamp()
		hasTransition = hasTransition || m.IsTransition()
		hasFloat = hasFloat || m.IsFloat()
	}

	next := a.mode
	switch {
	case hasRamp && (hasTransition || hasFloat):
		// mixed fleet, hold the current mode until it resolves
	case hasRamp:
		next = domain.AggregatedBulkOrAbsorption
	case hasTransition:
		next = domain.AggregatedFloatTransition
	case hasFloat:
		next = domain.AggregatedFloat
	}

	if next != a.mode {
		a.logger.Info("aggregator: charge mode transition",
			zap.Stringer("from", a.mode), zap.Stringer("to", next))
		a.mode = next
	}
}

// CombinedVoltageLimit computes the safe fleet-wide charge voltage limit
// for the current mode:
//
//   - BULK_OR_ABSORPTION: minimum CVL among ramping batteries; batteries
//     that already floated down are not a constraint.
//   - FLOAT_TRANSITION: maximum CVL among transitioning batteries, capped
//     by the ramp minimum if any battery is still ramping.
//   - FLOAT: minimum CVL across all batteries.
//
// An empty candidate set means the inputs are inconsistent with the mode
// AdvanceMode derived from them, and yields ErrNoCandidateVoltages.
func (a *StickyChargeModeAggregator) CombinedVoltageLimit(reports []domain.BatteryChargeReport) (float64, error) {
	rampMin := math.Inf(1)
	transitionMax := math.Inf(-1)
	allMin := math.Inf(1)
	var haveRamp, haveTransition bool

	for _, r := range reports {
		allMin = math.Min(allMin, r.ChargeVoltageLimit)
		if r.ChargeMode.IsRamp() {
			rampMin = math.Min(rampMin, r.ChargeVoltageLimit)
			haveRamp = true
		}
		if r.ChargeMode.IsTransition() {
			transitionMax = math.Max(transitionMax, r.ChargeVoltageLimit)
			haveTransition = true
		}
	}

	switch a.mode {
	case domain.AggregatedBulkOrAbsorption:
		if !haveRamp {
			return 0, ErrNoCandidateVoltages
		}
		return rampMin, nil
	case domain.AggregatedFloatTransition:
		if !haveTransition {
			return 0, ErrNoCandidateVoltages
		}
		if haveRamp {
			return math.Min(transitionMax, rampMin), nil
		}
		return transitionMax, nil
	default: // AggregatedFloat
		if len(reports) == 0 {
			return 0, ErrNoCandidateVoltages
		}
		return allMin, nil
	}
}

// ensure interface compliance
var _ port.ChargeModeAggregator = (*StickyChargeModeAggregator)(nil)
