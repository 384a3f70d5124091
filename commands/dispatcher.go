package commands

import (
	"errors"
	"time"

	"github.com/calvinmclean/indexfeeder"
)

const (
	defaultFrameTimeout = 10 * time.Millisecond
	byteWait            = 100 * time.Microsecond
)

var ErrFrameTimeout = errors.New("timed out waiting for the rest of a frame")

// Bus is the shared half-duplex serial line. machine.UART implements it
type Bus interface {
	Buffered() int
	ReadByte() (byte, error)
	WriteByte(byte) error
}

// flusher is implemented by buses that can wait for queued bytes to leave the wire
type flusher interface {
	Flush() error
}

// Config has everything the Dispatcher needs to own the bus. Pins are logical: true means asserted.
type Config struct {
	Address        feeder.Address
	Bus            Bus
	DriverEnable   feeder.OutputPin
	ReceiverEnable feeder.OutputPin
	Clock          feeder.Clock

	// FrameTimeout is how long to wait for the command byte after an address byte
	FrameTimeout time.Duration
}

// Dispatcher reads frames off the bus and runs the commands addressed to this unit
type Dispatcher struct {
	address        feeder.Address
	bus            Bus
	driverEnable   feeder.OutputPin
	receiverEnable feeder.OutputPin
	clock          feeder.Clock
	frameTimeout   time.Duration

	indexer Indexer
}

// NewDispatcher creates a Dispatcher and puts the bus in listen mode
func NewDispatcher(cfg Config, ix Indexer) (*Dispatcher, error) {
	if cfg.Bus == nil {
		return nil, errors.New("bus is required")
	}
	if cfg.DriverEnable == nil || cfg.ReceiverEnable == nil {
		return nil, errors.New("direction pins are required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if ix == nil {
		return nil, errors.New("indexer is required")
	}
	if cfg.FrameTimeout == 0 {
		cfg.FrameTimeout = defaultFrameTimeout
	}

	d := &Dispatcher{
		address:        cfg.Address,
		bus:            cfg.Bus,
		driverEnable:   cfg.DriverEnable,
		receiverEnable: cfg.ReceiverEnable,
		clock:          cfg.Clock,
		frameTimeout:   cfg.FrameTimeout,
		indexer:        ix,
	}

	d.listen()
	return d, nil
}

// Address is the address this Dispatcher answers to
func (d *Dispatcher) Address() feeder.Address {
	return d.address
}

// Poll handles at most one frame. It returns right away when nothing is waiting on the bus.
// Frames for other units are consumed and dropped without a reply.
func (d *Dispatcher) Poll() error {
	if d.bus.Buffered() == 0 {
		return nil
	}

	addr, err := d.bus.ReadByte()
	if err != nil {
		return err
	}

	if !d.address.Matches(addr) {
		// drop the command byte too, otherwise it is read as the next address
		_, err := d.readByte()
		if errors.Is(err, ErrFrameTimeout) {
			return nil
		}
		return err
	}

	cmdIn, err := d.readByte()
	if err != nil {
		return err
	}

	err = d.transmit(func() error {
		return d.bus.WriteByte(cmdIn)
	})
	if err != nil {
		return errors.New("error sending echo: " + err.Error())
	}

	cmd, ok := Lookup(cmdIn)
	if !ok {
		return nil
	}

	return cmd.Run(d.indexer)
}

// readByte waits up to frameTimeout for the next byte of a frame
func (d *Dispatcher) readByte() (byte, error) {
	for waited := time.Duration(0); d.bus.Buffered() == 0; waited += byteWait {
		if waited >= d.frameTimeout {
			return 0, ErrFrameTimeout
		}
		d.clock.Sleep(byteWait)
	}
	return d.bus.ReadByte()
}

// transmit claims the bus for send and puts it back in listen mode on every return path
func (d *Dispatcher) transmit(send func() error) error {
	d.driverEnable.Set(true)
	d.receiverEnable.Set(false)
	defer d.listen()

	err := send()
	if err != nil {
		return err
	}

	if f, ok := d.bus.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func (d *Dispatcher) listen() {
	d.driverEnable.Set(false)
	d.receiverEnable.Set(true)
}
