package events

import (
	. "battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/pkg/vedirect"
)

// ChargeTargetToUpdateEvents converts one aggregation cycle result into
// sensor update events.
func ChargeTargetToUpdateEvents(target *ChargeTargetUpdate) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_AGGREGATED_MODE,
		},
		Value: target.Mode.String(),
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_COMBINED_CVL,
		},
		Value:    target.ChargeVoltageLimit,
		Decimals: 2,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_COUNT,
		},
		Value:    float64(target.BatteryCount),
		Decimals: 0,
	})

	return events
}

// ShuntSampleToUpdateEvents converts a fresh shunt sample into sensor
// update events, including the freshness marker.
func ShuntSampleToUpdateEvents(sample *vedirect.ShuntData) []any {
	var events []any

	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SHUNT_CURRENT,
		},
		Value:    sample.CurrentAmps,
		Decimals: 3,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SHUNT_SOC,
		},
		Value:    sample.StateOfChargePercent,
		Decimals: 1,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SHUNT_CONSUMED_AH,
		},
		Value:    sample.ConsumedAmpHours,
		Decimals: 3,
	})
	events = append(events, ShuntFreshnessUpdateEvent(true))

	return events
}

// ShuntFreshnessUpdateEvent marks whether the shunt delivered a usable
// sample this cycle. Stale cycles publish only this event, never old
// measurement values.
func ShuntFreshnessUpdateEvent(fresh bool) any {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SHUNT_DATA_FRESH,
		},
		Value: fresh,
	}
}
