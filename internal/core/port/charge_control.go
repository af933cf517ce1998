package port

import "battfleet2mqtt/internal/core/domain"

// ChargeModeAggregator folds per-battery charge reports into one sticky
// system-wide charge mode and a combined charge voltage limit.
//
// Per polling cycle, AdvanceMode must be called with the cycle's modes
// before CombinedVoltageLimit is called with the same cycle's reports:
// the limit policy depends on the mode the advance step just selected.
type ChargeModeAggregator interface {
	AdvanceMode(modes []domain.ChargeMode)
	Mode() domain.AggregatedChargeMode
	CombinedVoltageLimit(reports []domain.BatteryChargeReport) (float64, error)
}
