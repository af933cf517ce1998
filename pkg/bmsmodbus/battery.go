package bmsmodbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	log "github.com/sirupsen/logrus"
)

// Register map of the BMS charge-parameter block.
const (
	regManufacturer = 0  // 16 registers, null padded string
	regModel        = 16 // 16 registers
	regSerial       = 32 // 8 registers

	regChargeMode    = 100 // enum, see chargeMode* below
	regChargeCVL     = 101 // charge voltage limit, scaled by regChargeCVLSF
	regChargeCVLSF   = 102 // signed power of ten scale factor
	regStateOfCharge = 103 // permille
)

// BMS charge mode register values and their reported labels.
const (
	chargeModeBulk            = 0
	chargeModeAbsorption      = 1
	chargeModeFloatTransition = 2
	chargeModeFloat           = 3

	LabelBulk            = "Bulk"
	LabelAbsorption      = "Absorption"
	LabelFloatTransition = "Float Transition"
	LabelFloat           = "Float"
)

type BatteryInfo struct {
	Manufacturer string
	Model        string
	Serial       string
}

// BatteryChargeParams is the per-cycle charge report of one battery.
type BatteryChargeParams struct {
	ChargeMode         string
	ChargeVoltageLimit float64
	StateOfCharge      float64
}

type BatteryModbusReader interface {
	Open() error
	Close() error
	GetInfo() (*BatteryInfo, error)
	GetChargeParams() (*BatteryChargeParams, error)
}

type batteryModbusReader struct {
	ModbusClient
	logger *log.Logger
}

func CreateBatteryModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *log.Logger) (BatteryModbusReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	err = client.SetUnitId(unitId)
	if err != nil {
		return nil, err
	}
	return &batteryModbusReader{
		ModbusClient: ModbusClient{client: client},
		logger:       logger,
	}, nil
}

func (b *batteryModbusReader) Open() error {
	return b.client.Open()
}

func (b *batteryModbusReader) Close() error {
	return b.client.Close()
}

func (b *batteryModbusReader) GetInfo() (*BatteryInfo, error) {
	manufacturer, err := b.readString(regManufacturer, 32)
	if err != nil {
		return nil, err
	}
	model, err := b.readString(regModel, 32)
	if err != nil {
		return nil, err
	}
	serial, err := b.readString(regSerial, 16)
	if err != nil {
		return nil, err
	}
	return &BatteryInfo{
		Manufacturer: manufacturer,
		Model:        model,
		Serial:       serial,
	}, nil
}

func (b *batteryModbusReader) GetChargeParams() (*BatteryChargeParams, error) {
	regs, err := b.readRegisters(regChargeMode, 4)
	if err != nil {
		return nil, err
	}
	label, err := ChargeModeLabel(regs[0])
	if err != nil {
		return nil, err
	}
	return &BatteryChargeParams{
		ChargeMode:         label,
		ChargeVoltageLimit: b.applySF(regs[1], regs[2]),
		StateOfCharge:      float64(regs[3]) / 10.0,
	}, nil
}

// ChargeModeLabel maps the charge mode register value to its label.
func ChargeModeLabel(reg uint16) (string, error) {
	switch reg {
	case chargeModeBulk:
		return LabelBulk, nil
	case chargeModeAbsorption:
		return LabelAbsorption, nil
	case chargeModeFloatTransition:
		return LabelFloatTransition, nil
	case chargeModeFloat:
		return LabelFloat, nil
	default:
		return "", fmt.Errorf("bmsmodbus: unknown charge mode register value %d", reg)
	}
}
