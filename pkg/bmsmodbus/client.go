// Package bmsmodbus reads per-battery charge parameters from BMS units
// exposing a small holding-register map over Modbus TCP.
package bmsmodbus

import (
	"math"
	"slices"

	"github.com/simonvetter/modbus"
)

type ModbusClient struct {
	client *modbus.ModbusClient
}

func (reader ModbusClient) readString(address uint16, size uint16) (string, error) {
	bytes, err := reader.client.ReadRawBytes(address, size, modbus.HOLDING_REGISTER)
	if err != nil {
		return "", err
	}
	f := slices.Index(bytes, 0x00)
	if f >= 0 {
		return string(bytes[:f]), nil
	}
	return string(bytes), nil
}

func (reader ModbusClient) readRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	return reader.client.ReadRegisters(addr, quantity, modbus.HOLDING_REGISTER)
}

// applySF scales a register value by a signed power-of-ten scale factor.
func (reader ModbusClient) applySF(number uint16, sf uint16) float64 {
	return float64(number) * math.Pow(10, float64(int16(sf)))
}
