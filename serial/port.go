// Package serial connects the Cytomat engine to an RS-232 port.
//
// Port wraps a go.bug.st/serial port with the frame-oriented read the engine
// needs: ReadUntil buffers bytes until the end marker arrives, so a reply
// split across several reads is reassembled and bytes after the marker are
// kept for the next call.
package serial

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	bugst "go.bug.st/serial"

	"github.com/moffa90/go-cytomat/protocol"
)

// MaxPending bounds buffered input without an end marker.
const MaxPending = 4096

// Config describes the serial line. Cytomat controllers use 9600 8N1.
type Config struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits string `yaml:"stop_bits"`
}

// DefaultConfig returns the Cytomat line settings for device.
func DefaultConfig(device string) Config {
	return Config{
		Device:   device,
		BaudRate: 9600,
		DataBits: 8,
		Parity:   "none",
		StopBits: "1",
	}
}

// Mode converts the configuration into a go.bug.st/serial mode.
func (c Config) Mode() (*bugst.Mode, error) {
	parity, err := ParseParity(c.Parity)
	if err != nil {
		return nil, err
	}
	stopBits, err := ParseStopBits(c.StopBits)
	if err != nil {
		return nil, err
	}
	if c.BaudRate <= 0 {
		return nil, fmt.Errorf("serial: invalid baud rate %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return nil, fmt.Errorf("serial: invalid data bits %d", c.DataBits)
	}
	return &bugst.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	}, nil
}

// ParseParity maps none, odd, even, mark or space to a parity mode.
func ParseParity(s string) (bugst.Parity, error) {
	switch strings.ToLower(s) {
	case "", "none", "n":
		return bugst.NoParity, nil
	case "odd", "o":
		return bugst.OddParity, nil
	case "even", "e":
		return bugst.EvenParity, nil
	case "mark", "m":
		return bugst.MarkParity, nil
	case "space", "s":
		return bugst.SpaceParity, nil
	}
	return 0, fmt.Errorf("serial: unknown parity %q", s)
}

// ParseStopBits maps "1", "1.5" or "2" to a stop bit mode.
func ParseStopBits(s string) (bugst.StopBits, error) {
	switch s {
	case "", "1":
		return bugst.OneStopBit, nil
	case "1.5":
		return bugst.OnePointFiveStopBits, nil
	case "2":
		return bugst.TwoStopBits, nil
	}
	return 0, fmt.Errorf("serial: unknown stop bits %q", s)
}

// Port is an open serial line. It implements cytomat.Transport and
// cytomat.InputFlusher.
type Port struct {
	mu      sync.Mutex
	port    bugst.Port
	pending []byte
	buf     []byte
}

// Open opens the device described by cfg.
func Open(cfg Config) (*Port, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}
	p, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return New(p), nil
}

// New wraps an already open port.
func New(p bugst.Port) *Port {
	return &Port{port: p, buf: make([]byte, 256)}
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// ReadUntil reads until delim or until timeout elapses. On timeout the
// bytes received so far stay buffered and the error matches
// os.ErrDeadlineExceeded. More than MaxPending bytes without delim are
// dropped and reported as a *protocol.FramingError.
func (p *Port) ReadUntil(delim byte, timeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		if i := bytes.IndexByte(p.pending, delim); i >= 0 {
			frame := make([]byte, i+1)
			copy(frame, p.pending[:i+1])
			p.pending = p.pending[i+1:]
			return frame, nil
		}

		if len(p.pending) > MaxPending {
			junk := p.pending
			p.pending = nil
			return nil, &protocol.FramingError{
				Reason: fmt.Sprintf("%d bytes without end marker 0x%02X", len(junk), delim),
				Frame:  junk[:64],
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("serial: read until 0x%02X: %w", delim, os.ErrDeadlineExceeded)
		}
		if err := p.port.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("serial: set read timeout: %w", err)
		}

		// A read timeout returns 0 bytes and no error
		n, err := p.port.Read(p.buf)
		if err != nil {
			return nil, err
		}
		p.pending = append(p.pending, p.buf[:n]...)
	}
}

// FlushInput drops buffered input and the driver's receive buffer.
func (p *Port) FlushInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
	return p.port.ResetInputBuffer()
}

func (p *Port) Close() error {
	return p.port.Close()
}
