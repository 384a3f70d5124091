package controller

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialPortNone runs without hardware. Every frame is answered with its own command byte
const SerialPortNone = "None"

var ErrNoUSBSerial = errors.New("no USB serial ports found")

// GetSerialPorts lists USB serial ports
func GetSerialPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("error listing ports: %w", err)
	}

	var result []string
	for _, p := range ports {
		if p.IsUSB {
			result = append(result, p.Name)
		}
	}

	if len(result) == 0 {
		return nil, ErrNoUSBSerial
	}

	return result, nil
}

func openPort(name string, baudRate int) (Port, error) {
	if name == SerialPortNone {
		return &echoPort{}, nil
	}

	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("error opening serial port %q: %w", name, err)
	}

	return port, nil
}

// echoPort answers each two byte frame with its second byte, like a feeder at every address would
type echoPort struct {
	mtx     sync.Mutex
	pending []byte
	reply   []byte
}

var _ Port = &echoPort{}

func (p *echoPort) Write(b []byte) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.pending = append(p.pending, b...)
	for len(p.pending) >= 2 {
		p.reply = append(p.reply, p.pending[1])
		p.pending = p.pending[2:]
	}
	return len(b), nil
}

func (p *echoPort) Read(b []byte) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	n := copy(b, p.reply)
	p.reply = p.reply[n:]
	return n, nil
}

func (p *echoPort) ResetInputBuffer() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.reply = nil
	return nil
}

func (p *echoPort) SetReadTimeout(time.Duration) error { return nil }
func (p *echoPort) Drain() error                       { return nil }
func (p *echoPort) SetRTS(bool) error                  { return nil }
func (p *echoPort) Close() error                       { return nil }
