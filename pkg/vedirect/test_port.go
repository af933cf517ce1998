package vedirect

import (
	"time"

	"github.com/goburrow/serial"
)

// TestPort is a scripted serial.Port for tests. Each Read consumes one
// scripted chunk; when exhausted it behaves like a read timeout.
type TestPort struct {
	Reads  [][]byte
	Closed bool
}

func (p *TestPort) Read(b []byte) (int, error) {
	if len(p.Reads) == 0 {
		return 0, serial.ErrTimeout
	}
	chunk := p.Reads[0]
	p.Reads = p.Reads[1:]
	return copy(b, chunk), nil
}

func (p *TestPort) Write(b []byte) (int, error) {
	return len(b), nil
}

func (p *TestPort) Open(*serial.Config) error {
	return nil
}

func (p *TestPort) Close() error {
	p.Closed = true
	return nil
}

var _ serial.Port = (*TestPort)(nil)

// TestShuntReader is a canned shunt reader for tests. A nil Sample
// mimics a stale or unreadable shunt; a non-zero UpdateDelay mimics a
// slow or stuck serial line.
type TestShuntReader struct {
	Sample      *ShuntData
	UpdateDelay time.Duration
	Closed      bool
}

func (r *TestShuntReader) Update() *ShuntData {
	if r.UpdateDelay > 0 {
		time.Sleep(r.UpdateDelay)
	}
	return r.Sample
}

func (r *TestShuntReader) Close() error {
	r.Closed = true
	return nil
}
