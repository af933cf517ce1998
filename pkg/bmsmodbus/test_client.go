package bmsmodbus

import "errors"

func CreateTestBatteryModbusReader(mode string, cvl float64) BatteryModbusReader {
	return &TestBatteryModbusReader{
		Mode: mode,
		CVL:  cvl,
		SoC:  77.7,
	}
}

// TestBatteryModbusReader is a canned BMS reader for tests.
type TestBatteryModbusReader struct {
	Mode     string
	CVL      float64
	SoC      float64
	FailRead bool
	Opened   bool
	Closed   bool
}

func (r *TestBatteryModbusReader) Open() error {
	r.Opened = true
	return nil
}

func (r *TestBatteryModbusReader) Close() error {
	r.Closed = true
	return nil
}

func (r *TestBatteryModbusReader) GetInfo() (*BatteryInfo, error) {
	return &BatteryInfo{
		Manufacturer: "Battfleet",
		Model:        "BMS 48V 100Ah",
		Serial:       "TEST-0001",
	}, nil
}

func (r *TestBatteryModbusReader) GetChargeParams() (*BatteryChargeParams, error) {
	if r.FailRead {
		return nil, errors.New("bmsmodbus: read failed")
	}
	return &BatteryChargeParams{
		ChargeMode:         r.Mode,
		ChargeVoltageLimit: r.CVL,
		StateOfCharge:      r.SoC,
	}, nil
}

var _ BatteryModbusReader = (*TestBatteryModbusReader)(nil)
