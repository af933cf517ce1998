package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"battfleet2mqtt/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE      = "bridge"
	SENSOR_ID_AGGREGATED_MODE   = "aggregated_charge_mode"
	SENSOR_ID_COMBINED_CVL      = "combined_charge_voltage_limit"
	SENSOR_ID_BATTERY_COUNT     = "battery_count"
	SENSOR_ID_SHUNT_CURRENT     = "shunt_current"
	SENSOR_ID_SHUNT_SOC         = "shunt_soc"
	SENSOR_ID_SHUNT_CONSUMED_AH = "shunt_consumed_ah"
	SENSOR_ID_SHUNT_DATA_FRESH  = "shunt_data_fresh"

	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_BATTERY      = "battery"
	DEVICE_CLASS_CURRENT      = "current"
	DEVICE_CLASS_VOLTAGE      = "voltage"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
)

func BridgeDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("battfleet_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "battfleet2mqtt",
		Model:        "Battfleet",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Battfleet %s", md5HashShort(baseTopic)),
	}
}

// FleetSensors is the discovery catalogue for the aggregated fleet values
// and the shunt measurements.
func FleetSensors(bridgeDevice domain.Device, shuntEnabled bool) []domain.GenericSensor {
	var sensors []domain.GenericSensor

	sensors = append(sensors, domain.GenericSensor{
		Device:      bridgeDevice,
		Id:          SENSOR_ID_BRIDGE_STATE,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Bridge state",
		DeviceClass: DEVICE_CLASS_CONNECTIVITY,
		UniqueId:    uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	sensors = append(sensors, domain.GenericSensor{
		Device:     bridgeDevice,
		Id:         SENSOR_ID_AGGREGATED_MODE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Aggregated charge mode",
		UniqueId:   uniqueId(bridgeDevice.Id, SENSOR_ID_AGGREGATED_MODE),
	})

	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_COMBINED_CVL,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Combined charge voltage limit",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_COMBINED_CVL),
	})

	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BATTERY_COUNT,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Reporting batteries",
		StateClass:     STATE_CLASS_MEASUREMENT,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BATTERY_COUNT),
	})

	if shuntEnabled {
		sensors = append(sensors, domain.GenericSensor{
			Device:            bridgeDevice,
			Id:                SENSOR_ID_SHUNT_CURRENT,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Shunt current",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_CURRENT,
			UnitOfMeasurement: "A",
			UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_SHUNT_CURRENT),
		})
		sensors = append(sensors, domain.GenericSensor{
			Device:            bridgeDevice,
			Id:                SENSOR_ID_SHUNT_SOC,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Shunt state of charge",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_BATTERY,
			UnitOfMeasurement: "%",
			UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_SHUNT_SOC),
		})
		sensors = append(sensors, domain.GenericSensor{
			Device:            bridgeDevice,
			Id:                SENSOR_ID_SHUNT_CONSUMED_AH,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Shunt consumed amp hours",
			StateClass:        STATE_CLASS_MEASUREMENT,
			UnitOfMeasurement: "Ah",
			UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_SHUNT_CONSUMED_AH),
		})
		sensors = append(sensors, domain.GenericSensor{
			Device:      bridgeDevice,
			Id:          SENSOR_ID_SHUNT_DATA_FRESH,
			SensorType:  SENSOR_TYPE_BINARY,
			Name:        "Shunt data fresh",
			DeviceClass: DEVICE_CLASS_CONNECTIVITY,
			UniqueId:    uniqueId(bridgeDevice.Id, SENSOR_ID_SHUNT_DATA_FRESH),
		})
	}

	return sensors
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}
