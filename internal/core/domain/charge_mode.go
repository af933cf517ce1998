package domain

import "fmt"

// ChargeMode is the charge phase reported by a single battery. The label
// set is closed; anything else is an integration error of the collaborator
// feeding the aggregator.
type ChargeMode int

const (
	ChargeModeBulk ChargeMode = iota
	ChargeModeAbsorption
	ChargeModeFloatTransition
	ChargeModeFloat
)

const (
	chargeModeLabelBulk            = "Bulk"
	chargeModeLabelAbsorption      = "Absorption"
	chargeModeLabelFloatTransition = "Float Transition"
	chargeModeLabelFloat           = "Float"
)

func ParseChargeMode(label string) (ChargeMode, error) {
	switch label {
	case chargeModeLabelBulk:
		return ChargeModeBulk, nil
	case chargeModeLabelAbsorption:
		return ChargeModeAbsorption, nil
	case chargeModeLabelFloatTransition:
		return ChargeModeFloatTransition, nil
	case chargeModeLabelFloat:
		return ChargeModeFloat, nil
	default:
		return 0, fmt.Errorf("unknown charge mode label %q", label)
	}
}

func (m ChargeMode) String() string {
	switch m {
	case ChargeModeBulk:
		return chargeModeLabelBulk
	case ChargeModeAbsorption:
		return chargeModeLabelAbsorption
	case ChargeModeFloatTransition:
		return chargeModeLabelFloatTransition
	case ChargeModeFloat:
		return chargeModeLabelFloat
	default:
		return fmt.Sprintf("ChargeMode(%d)", int(m))
	}
}

// IsRamp reports whether the battery is still being driven toward full
// charge (Bulk or Absorption).
func (m ChargeMode) IsRamp() bool {
	return m == ChargeModeBulk || m == ChargeModeAbsorption
}

func (m ChargeMode) IsTransition() bool {
	return m == ChargeModeFloatTransition
}

func (m ChargeMode) IsFloat() bool {
	return m == ChargeModeFloat
}

// AggregatedChargeMode is the single system-wide charge mode derived from
// all battery reports. It only changes through the aggregator's transition
// rule and survives mixed fleet states unchanged.
type AggregatedChargeMode int

const (
	AggregatedBulkOrAbsorption AggregatedChargeMode = iota
	AggregatedFloatTransition
	AggregatedFloat
)

func (m AggregatedChargeMode) String() string {
	switch m {
	case AggregatedBulkOrAbsorption:
		return "BULK_OR_ABSORPTION"
	case AggregatedFloatTransition:
		return "FLOAT_TRANSITION"
	case AggregatedFloat:
		return "FLOAT"
	default:
		return fmt.Sprintf("AggregatedChargeMode(%d)", int(m))
	}
}

func ParseAggregatedChargeMode(s string) (AggregatedChargeMode, error) {
	switch s {
	case "BULK_OR_ABSORPTION":
		return AggregatedBulkOrAbsorption, nil
	case "FLOAT_TRANSITION":
		return AggregatedFloatTransition, nil
	case "FLOAT":
		return AggregatedFloat, nil
	default:
		return 0, fmt.Errorf("unknown aggregated charge mode %q", s)
	}
}

// BatteryChargeReport is one battery's contribution to a polling cycle.
type BatteryChargeReport struct {
	ChargeMode         ChargeMode
	ChargeVoltageLimit float64
	StateOfCharge      float64
}
