package service

import (
	"testing"

	"battfleet2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var allAggregatedModes = []domain.AggregatedChargeMode{
	domain.AggregatedBulkOrAbsorption,
	domain.AggregatedFloatTransition,
	domain.AggregatedFloat,
}

func modes(t *testing.T, labels ...string) []domain.ChargeMode {
	t.Helper()
	out := make([]domain.ChargeMode, 0, len(labels))
	for _, l := range labels {
		m, err := domain.ParseChargeMode(l)
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func reports(t *testing.T, voltages []float64, labels []string) []domain.BatteryChargeReport {
	t.Helper()
	require.Equal(t, len(voltages), len(labels))
	out := make([]domain.BatteryChargeReport, 0, len(voltages))
	for i := range voltages {
		m, err := domain.ParseChargeMode(labels[i])
		require.NoError(t, err)
		out = append(out, domain.BatteryChargeReport{
			ChargeMode:         m,
			ChargeVoltageLimit: voltages[i],
		})
	}
	return out
}

func newAggregator(initial domain.AggregatedChargeMode) *StickyChargeModeAggregator {
	return NewStickyChargeModeAggregator(initial, zap.NewNop())
}

func TestAdvanceModeDeterministicTransitions(t *testing.T) {
	cases := []struct {
		name     string
		labels   []string
		expected domain.AggregatedChargeMode
	}{
		{"single_bulk", []string{"Bulk"}, domain.AggregatedBulkOrAbsorption},
		{"bulk_and_absorption", []string{"Bulk", "Absorption"}, domain.AggregatedBulkOrAbsorption},
		{"three_ramp", []string{"Absorption", "Bulk", "Absorption"}, domain.AggregatedBulkOrAbsorption},
		{"single_float_transition", []string{"Float Transition"}, domain.AggregatedFloatTransition},
		{"float_transition_among_floats", []string{"Float", "Float Transition", "Float"}, domain.AggregatedFloatTransition},
		{"all_float_transition", []string{"Float Transition", "Float Transition"}, domain.AggregatedFloatTransition},
		{"single_float", []string{"Float"}, domain.AggregatedFloat},
		{"all_float", []string{"Float", "Float"}, domain.AggregatedFloat},
	}
	for _, c := range cases {
		for _, initial := range allAggregatedModes {
			t.Run(c.name+"/from_"+initial.String(), func(t *testing.T) {
				a := newAggregator(initial)
				a.AdvanceMode(modes(t, c.labels...))
				assert.Equal(t, c.expected, a.Mode())
			})
		}
	}
}

func TestAdvanceModeMixedFleetHoldsState(t *testing.T) {
	cases := []struct {
		name   string
		labels []string
	}{
		{"bulk_with_float", []string{"Bulk", "Float"}},
		{"float_with_absorption", []string{"Float", "Absorption"}},
		{"bulk_with_float_transition", []string{"Bulk", "Float Transition"}},
		{"three_mixed", []string{"Absorption", "Float Transition", "Bulk"}},
		{"all_categories", []string{"Bulk", "Float", "Float Transition"}},
	}
	for _, c := range cases {
		for _, initial := range allAggregatedModes {
			t.Run(c.name+"/from_"+initial.String(), func(t *testing.T) {
				a := newAggregator(initial)
				a.AdvanceMode(modes(t, c.labels...))
				assert.Equal(t, initial, a.Mode())
			})
		}
	}
}

func TestAdvanceModeEmptyInputHoldsState(t *testing.T) {
	for _, initial := range allAggregatedModes {
		a := newAggregator(initial)
		a.AdvanceMode(nil)
		assert.Equal(t, initial, a.Mode())
	}
}

func TestCombinedVoltageLimitBulkOrAbsorption(t *testing.T) {
	cases := []struct {
		name     string
		voltages []float64
		labels   []string
		expected float64
	}{
		{"all_ramp_returns_min", []float64{56.0, 55.5}, []string{"Bulk", "Absorption"}, 55.5},
		{"float_voltage_ignored", []float64{56.0, 54.0}, []string{"Bulk", "Float"}, 56.0},
		{"reduced_bulk_voltage_respected", []float64{55.0, 56.0, 54.0}, []string{"Bulk", "Bulk", "Float"}, 55.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := newAggregator(domain.AggregatedBulkOrAbsorption)
			cvl, err := a.CombinedVoltageLimit(reports(t, c.voltages, c.labels))
			require.NoError(t, err)
			assert.InDelta(t, c.expected, cvl, 1e-9)
		})
	}
}

func TestCombinedVoltageLimitFloatTransition(t *testing.T) {
	cases := []struct {
		name     string
		voltages []float64
		labels   []string
		expected float64
	}{
		{"max_of_transitions", []float64{55.0, 55.5}, []string{"Float Transition", "Float Transition"}, 55.5},
		{"capped_by_bulk", []float64{56.0, 57.0, 55.0}, []string{"Float Transition", "Bulk", "Bulk"}, 55.0},
		{"uncapped_when_no_bulk", []float64{56.0, 54.0}, []string{"Float Transition", "Float"}, 56.0},
		{"multiple_transitions_capped_by_bulk", []float64{55.0, 57.0, 55.2}, []string{"Float Transition", "Float Transition", "Bulk"}, 55.2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := newAggregator(domain.AggregatedFloatTransition)
			cvl, err := a.CombinedVoltageLimit(reports(t, c.voltages, c.labels))
			require.NoError(t, err)
			assert.InDelta(t, c.expected, cvl, 1e-9)
		})
	}
}

func TestCombinedVoltageLimitFloat(t *testing.T) {
	cases := []struct {
		name     string
		voltages []float64
		labels   []string
		expected float64
	}{
		{"all_float_returns_min", []float64{54.0, 55.0}, []string{"Float", "Float"}, 54.0},
		{"mixed_returns_global_min", []float64{56.0, 54.0}, []string{"Bulk", "Float"}, 54.0},
		{"three_labels_returns_global_min", []float64{56.0, 55.0, 54.0}, []string{"Bulk", "Float Transition", "Float"}, 54.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := newAggregator(domain.AggregatedFloat)
			cvl, err := a.CombinedVoltageLimit(reports(t, c.voltages, c.labels))
			require.NoError(t, err)
			assert.InDelta(t, c.expected, cvl, 1e-9)
		})
	}
}

func TestCombinedVoltageLimitEmptyCandidateSet(t *testing.T) {
	a := newAggregator(domain.AggregatedBulkOrAbsorption)
	_, err := a.CombinedVoltageLimit(reports(t, []float64{54.0}, []string{"Float"}))
	assert.ErrorIs(t, err, ErrNoCandidateVoltages)

	a = newAggregator(domain.AggregatedFloatTransition)
	_, err = a.CombinedVoltageLimit(reports(t, []float64{54.0}, []string{"Float"}))
	assert.ErrorIs(t, err, ErrNoCandidateVoltages)

	a = newAggregator(domain.AggregatedFloat)
	_, err = a.CombinedVoltageLimit(nil)
	assert.ErrorIs(t, err, ErrNoCandidateVoltages)
}

// step runs one full polling cycle: advance the mode, then compute the
// combined limit with the same cycle's reports.
func step(t *testing.T, a *StickyChargeModeAggregator, labels []string, voltages []float64) float64 {
	t.Helper()
	a.AdvanceMode(modes(t, labels...))
	cvl, err := a.CombinedVoltageLimit(reports(t, voltages, labels))
	require.NoError(t, err)
	return cvl
}

func TestWaitsForLastBatteryToLeaveBulkBeforeLoweringCVL(t *testing.T) {
	a := newAggregator(domain.AggregatedFloat)

	// both batteries start in Bulk
	cvl := step(t, a, []string{"Bulk", "Bulk"}, []float64{55.5, 56.0})
	assert.Equal(t, domain.AggregatedBulkOrAbsorption, a.Mode())
	assert.InDelta(t, 55.5, cvl, 1e-9)

	// first battery reaches Float, aggregate must not regress early
	cvl = step(t, a, []string{"Float", "Bulk"}, []float64{54.0, 56.0})
	assert.Equal(t, domain.AggregatedBulkOrAbsorption, a.Mode())
	assert.InDelta(t, 56.0, cvl, 1e-9)

	// second battery steps down
	cvl = step(t, a, []string{"Float", "Float Transition"}, []float64{54.0, 55.5})
	assert.Equal(t, domain.AggregatedFloatTransition, a.Mode())
	assert.InDelta(t, 55.5, cvl, 1e-9)

	// whole fleet floating
	cvl = step(t, a, []string{"Float", "Float"}, []float64{54.0, 54.2})
	assert.Equal(t, domain.AggregatedFloat, a.Mode())
	assert.InDelta(t, 54.0, cvl, 1e-9)
}

func TestFleetReturnsToRampOnlyWhenUnanimous(t *testing.T) {
	a := newAggregator(domain.AggregatedFloat)

	// one battery falling back to Bulk amid floats is ambiguous
	a.AdvanceMode(modes(t, "Bulk", "Float"))
	assert.Equal(t, domain.AggregatedFloat, a.Mode())

	// all batteries back in ramp
	a.AdvanceMode(modes(t, "Bulk", "Absorption"))
	assert.Equal(t, domain.AggregatedBulkOrAbsorption, a.Mode())
}
