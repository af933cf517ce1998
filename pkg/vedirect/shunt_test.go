package vedirect

import (
	"errors"
	"testing"
	"time"

	"github.com/goburrow/serial"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMonitor(port *TestPort) (*ShuntMonitor, *time.Time) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewShuntMonitor("/dev/ttyUSB0", logrus.New())
	m.openPort = func(cfg *serial.Config) (serial.Port, error) {
		return port, nil
	}
	m.checkInterference = func(string) (bool, error) { return false, nil }
	m.now = func() time.Time { return now }
	return m, &now
}

func TestShuntMonitorDecodesSample(t *testing.T) {
	port := &TestPort{Reads: [][]byte{buildValidFrame(t, "CE\t-1500", "I\t2500", "SOC\t855")}}
	m, _ := testMonitor(port)

	sample := m.Update()
	require.NotNil(t, sample)
	assert.InDelta(t, -1.5, sample.ConsumedAmpHours, 1e-9)
	assert.InDelta(t, 2.5, sample.CurrentAmps, 1e-9)
	assert.InDelta(t, 85.5, sample.StateOfChargePercent, 1e-9)
}

func TestShuntMonitorServesLastGoodSampleWhileFresh(t *testing.T) {
	port := &TestPort{Reads: [][]byte{buildValidFrame(t, "CE\t0", "I\t1000", "SOC\t500")}}
	m, now := testMonitor(port)

	require.NotNil(t, m.Update())

	// nothing new on the wire, still inside the freshness window
	*now = now.Add(29 * time.Second)
	sample := m.Update()
	require.NotNil(t, sample)
	assert.InDelta(t, 1.0, sample.CurrentAmps, 1e-9)
}

func TestShuntMonitorExpiresStaleSample(t *testing.T) {
	port := &TestPort{Reads: [][]byte{buildValidFrame(t, "CE\t0", "I\t1000", "SOC\t500")}}
	m, now := testMonitor(port)

	require.NotNil(t, m.Update())

	*now = now.Add(31 * time.Second)
	assert.Nil(t, m.Update())
}

func TestShuntMonitorReturnsCopy(t *testing.T) {
	port := &TestPort{Reads: [][]byte{buildValidFrame(t, "CE\t0", "I\t1000", "SOC\t500")}}
	m, _ := testMonitor(port)

	first := m.Update()
	require.NotNil(t, first)
	first.CurrentAmps = 99

	second := m.Update()
	require.NotNil(t, second)
	assert.InDelta(t, 1.0, second.CurrentAmps, 1e-9)
}

func TestShuntMonitorInvalidFrameKeepsPreviousSample(t *testing.T) {
	valid := buildValidFrame(t, "CE\t0", "I\t1000", "SOC\t500")
	corrupt := buildValidFrame(t, "CE\t0", "I\t9000", "SOC\t500")
	corrupt[0] ^= 0x01

	port := &TestPort{Reads: [][]byte{valid, corrupt}}
	m, _ := testMonitor(port)

	require.NotNil(t, m.Update())
	sample := m.Update()
	require.NotNil(t, sample)
	assert.InDelta(t, 1.0, sample.CurrentAmps, 1e-9)
}

func TestShuntMonitorNonNumericFieldDoesNotCommit(t *testing.T) {
	port := &TestPort{Reads: [][]byte{buildValidFrame(t, "CE\t0", "I\tgarbage", "SOC\t500")}}
	m, _ := testMonitor(port)

	assert.Nil(t, m.Update())
}

func TestShuntMonitorOpenFailureIsRetried(t *testing.T) {
	port := &TestPort{Reads: [][]byte{buildValidFrame(t, "CE\t0", "I\t1000", "SOC\t500")}}
	m, _ := testMonitor(port)

	opens := 0
	fail := true
	m.openPort = func(cfg *serial.Config) (serial.Port, error) {
		opens++
		if fail {
			return nil, errors.New("device busy")
		}
		return port, nil
	}

	assert.Nil(t, m.Update())

	fail = false
	assert.NotNil(t, m.Update())
	assert.Equal(t, 2, opens)
}

func TestShuntMonitorInterferenceReopensPort(t *testing.T) {
	first := &TestPort{}
	second := &TestPort{Reads: [][]byte{buildValidFrame(t, "CE\t0", "I\t1000", "SOC\t500")}}

	ports := []*TestPort{first, second}
	m, _ := testMonitor(first)
	m.openPort = func(cfg *serial.Config) (serial.Port, error) {
		port := ports[0]
		ports = ports[1:]
		return port, nil
	}

	assert.Nil(t, m.Update())

	m.checkInterference = func(string) (bool, error) { return true, nil }
	sample := m.Update()
	require.NotNil(t, sample)
	assert.True(t, first.Closed)
}

func TestShuntMonitorClose(t *testing.T) {
	port := &TestPort{}
	m, _ := testMonitor(port)

	assert.Nil(t, m.Update())
	require.NoError(t, m.Close())
	assert.True(t, port.Closed)
	require.NoError(t, m.Close())
}
