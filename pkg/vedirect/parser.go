package vedirect

import (
	"bytes"
	"strings"
)

// VE.Direct text protocol field keys used by the shunt monitor.
const (
	KeyChecksum      = "Checksum"
	KeyConsumedAh    = "CE"  // milliamp hours
	KeyCurrent       = "I"   // milliamps
	KeyStateOfCharge = "SOC" // permille
)

const (
	// maxBufferBytes caps the internal buffer so a stuck stream cannot
	// grow it without bound. On overflow only the newest keepBufferBytes
	// are kept and any in-progress frame is abandoned.
	maxBufferBytes  = 8192
	keepBufferBytes = 4096
)

// Frame is one checksum-delimited group of key/value lines.
// Valid reports whether the whole-frame byte sum was congruent to 0 mod 256.
type Frame struct {
	Fields map[string]string
	Valid  bool
}

// Parser reassembles VE.Direct text frames from an arbitrarily chunked
// byte stream. Feed bytes with Feed, then drain completed frames with
// NextFrame until it returns nil.
type Parser struct {
	buffer   []byte
	fields   map[string]string
	checksum uint32
}

func NewParser() *Parser {
	return &Parser{
		fields: map[string]string{},
	}
}

// Feed appends raw bytes to the parser buffer.
func (p *Parser) Feed(data []byte) {
	p.buffer = append(p.buffer, data...)
	if len(p.buffer) > maxBufferBytes {
		p.buffer = append([]byte(nil), p.buffer[len(p.buffer)-keepBufferBytes:]...)
		p.fields = map[string]string{}
		p.checksum = 0
	}
}

// NextFrame returns the next complete frame, or nil if no complete frame
// is buffered. Multiple frames may be buffered after one Feed, so callers
// must loop until nil.
func (p *Parser) NextFrame() *Frame {
	for {
		nl := bytes.IndexByte(p.buffer, '\n')
		if nl < 0 {
			return nil
		}
		line := p.buffer[:nl]
		for _, b := range p.buffer[:nl+1] {
			p.checksum += uint32(b)
		}
		p.buffer = p.buffer[nl+1:]

		if len(line) == 0 {
			continue
		}

		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		p.fields[key] = value

		if key == KeyChecksum {
			frame := &Frame{
				Fields: p.fields,
				Valid:  p.checksum&0xFF == 0,
			}
			p.fields = map[string]string{}
			p.checksum = 0
			return frame
		}
	}
}

// splitKeyValue parses a "key<TAB>value" line with surrounding whitespace
// trimmed. Lines without a tab separator are not field lines.
func splitKeyValue(line []byte) (string, string, bool) {
	tab := bytes.IndexByte(line, '\t')
	if tab < 0 {
		return "", "", false
	}
	key := strings.TrimSpace(string(line[:tab]))
	value := strings.TrimSpace(string(line[tab+1:]))
	return key, value, true
}
