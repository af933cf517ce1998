package util

import (
	"battfleet2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Batteries: []config.BatteryModbusTCPConfig{
			{Host: "-.-.-.-", Port: 502, UnitId: 1},
			{Host: "-.-.-.-", Port: 502, UnitId: 2},
		},
		Shunt: config.ShuntConfig{
			Enabled: true,
			Device:  "/dev/ttyUSB0",
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "battfleet",
		},
		AggregatorConfig: config.AggregatorConfig{
			PollIntervalMillis: 5000,
			InitialMode:        "FLOAT",
		},
		Port: 8080,
	}
}
