package sim

import (
	"errors"
	"io"
	"sync"
)

// Port is the part of a go.bug.st/serial port that PortBus needs
type Port interface {
	io.ReadWriter
	Drain() error
}

// PortBus lets a simulated unit answer a real serial port. A goroutine reads the port into a buffer so that
// Buffered and ReadByte never block, like a UART receive buffer.
type PortBus struct {
	port Port

	mu  sync.Mutex
	buf []byte
	err error

	done chan struct{}
}

func NewPortBus(port Port) *PortBus {
	b := &PortBus{
		port: port,
		done: make(chan struct{}),
	}
	go b.readLoop()
	return b
}

func (b *PortBus) readLoop() {
	defer close(b.done)

	in := make([]byte, 64)
	for {
		n, err := b.port.Read(in)

		b.mu.Lock()
		b.buf = append(b.buf, in[:n]...)
		if err != nil {
			b.err = err
		}
		b.mu.Unlock()

		if err != nil {
			return
		}
	}
}

// Done is closed when the port can no longer be read
func (b *PortBus) Done() <-chan struct{} {
	return b.done
}

// Err is the error that stopped reading, if any
func (b *PortBus) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *PortBus) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

func (b *PortBus) ReadByte() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, errors.New("buffer empty")
	}

	c := b.buf[0]
	b.buf = b.buf[1:]
	return c, nil
}

func (b *PortBus) WriteByte(c byte) error {
	_, err := b.port.Write([]byte{c})
	return err
}

// Flush waits until written bytes have left the port
func (b *PortBus) Flush() error {
	return b.port.Drain()
}
