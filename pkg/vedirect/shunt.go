package vedirect

import (
	"errors"
	"strconv"
	"time"

	"github.com/goburrow/serial"
	log "github.com/sirupsen/logrus"
)

const (
	ShuntBaudRate = 19200

	serialReadTimeout = 500 * time.Millisecond
	dataExpiration    = 30 * time.Second

	readChunkBytes = 4096
)

// ShuntData is one fully decoded measurement sample from the shunt.
type ShuntData struct {
	ConsumedAmpHours     float64
	CurrentAmps          float64
	StateOfChargePercent float64
	ReadTimestamp        time.Time
}

// ShuntMonitor owns the serial connection to a VE.Direct shunt and keeps
// the most recent fully decoded sample. It is meant to be driven by a
// single caller invoking Update once per polling cycle.
type ShuntMonitor struct {
	device string
	port   serial.Port
	parser *Parser
	data   *ShuntData
	logger *log.Logger

	// seams for tests
	openPort          func(*serial.Config) (serial.Port, error)
	checkInterference func(device string) (bool, error)
	now               func() time.Time
}

func NewShuntMonitor(device string, logger *log.Logger) *ShuntMonitor {
	return &ShuntMonitor{
		device:            device,
		parser:            NewParser(),
		logger:            logger,
		openPort:          serial.Open,
		checkInterference: checkLineSettings,
		now:               time.Now,
	}
}

// Update performs one polling step: reconnect if another process touched
// the line settings, open the port if needed, read whatever is available,
// drain complete frames and return the retained sample, or nil when no
// sample exists or the retained one is older than the expiration window.
func (m *ShuntMonitor) Update() *ShuntData {
	if m.port != nil {
		if interfered, err := m.checkInterference(m.device); err != nil {
			m.logger.WithError(err).Warn("vedirect: could not check for serial line interference")
		} else if interfered {
			m.logger.Warn("vedirect: interference detected, reopening serial port")
			m.closePort()
		}
	}

	if m.port == nil {
		port, err := m.openPort(&serial.Config{
			Address:  m.device,
			BaudRate: ShuntBaudRate,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  serialReadTimeout,
		})
		if err != nil {
			m.logger.WithError(err).Error("vedirect: could not open serial port")
			return nil
		}
		m.port = port
	}

	buf := make([]byte, readChunkBytes)
	n, err := m.port.Read(buf)
	if err != nil && !errors.Is(err, serial.ErrTimeout) {
		// transient: keep the connection, retry next cycle
		m.logger.WithError(err).Error("vedirect: could not read shunt data from serial port")
	}
	if n > 0 {
		m.parser.Feed(buf[:n])
	}

	for frame := m.parser.NextFrame(); frame != nil; frame = m.parser.NextFrame() {
		if !frame.Valid {
			continue
		}
		m.decodeFrame(frame)
	}

	if m.data == nil || m.now().Sub(m.data.ReadTimestamp) > dataExpiration {
		return nil
	}
	data := *m.data
	return &data
}

// Close releases the serial device handle.
func (m *ShuntMonitor) Close() error {
	if m.port == nil {
		return nil
	}
	port := m.port
	m.port = nil
	return port.Close()
}

func (m *ShuntMonitor) closePort() {
	if err := m.port.Close(); err != nil {
		m.logger.WithError(err).Warn("vedirect: error closing serial port")
	}
	m.port = nil
}

// decodeFrame commits a new sample only when all three fields decode.
func (m *ShuntMonitor) decodeFrame(frame *Frame) {
	consumedAh, okAh := m.parseScaledInt(frame, KeyConsumedAh, 1000.0)
	currentAmps, okI := m.parseScaledInt(frame, KeyCurrent, 1000.0)
	socPercent, okSoC := m.parseScaledInt(frame, KeyStateOfCharge, 10.0)
	if !okAh || !okI || !okSoC {
		return
	}
	m.data = &ShuntData{
		ConsumedAmpHours:     consumedAh,
		CurrentAmps:          currentAmps,
		StateOfChargePercent: socPercent,
		ReadTimestamp:        m.now(),
	}
}

func (m *ShuntMonitor) parseScaledInt(frame *Frame, key string, divisor float64) (float64, bool) {
	value := frame.Fields[key]
	if value == "" {
		return 0, false
	}
	raw, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		m.logger.WithError(err).Warnf("vedirect: could not parse %s from the shunt: %q", key, value)
		return 0, false
	}
	return float64(raw) / divisor, true
}
