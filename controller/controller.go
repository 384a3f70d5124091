package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/calvinmclean/indexfeeder"
)

var (
	ErrNoEcho         = errors.New("feeder did not echo the command")
	ErrEchoMismatch   = errors.New("feeder echoed a different command")
	ErrInvalidAddress = errors.New("address out of range")
)

// Port is the serial connection to the bus. go.bug.st/serial.Port implements it
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Drain() error
	SetRTS(rts bool) error
}

// Controller is the bus master. It sends one frame at a time and waits for the addressed feeder to echo it
type Controller struct {
	cfg    Config
	port   Port
	logger *slog.Logger

	// mtx makes sure a reply is read by the same caller that sent the frame
	mtx sync.Mutex
}

// NewFromEnv opens the port described by ConfigFromEnv
func NewFromEnv(logger *slog.Logger) (*Controller, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(*cfg, logger)
}

// New validates the config and opens the serial port. SerialPortNone gets a port that echoes every frame
func New(cfg Config, logger *slog.Logger) (*Controller, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	port, err := openPort(cfg.SerialPort, cfg.baudRate())
	if err != nil {
		return nil, err
	}

	return NewWithPort(cfg, port, logger)
}

// NewWithPort uses an already open port
func NewWithPort(cfg Config, port Port, logger *slog.Logger) (*Controller, error) {
	if port == nil {
		return nil, errors.New("missing port")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Controller{
		cfg:    cfg,
		port:   port,
		logger: logger.With("port", cfg.SerialPort),
	}

	err := port.SetReadTimeout(cfg.readTimeout())
	if err != nil {
		return nil, fmt.Errorf("error setting read timeout: %w", err)
	}

	if cfg.RTSDirection {
		err = port.SetRTS(false)
		if err != nil {
			return nil, fmt.Errorf("error releasing bus: %w", err)
		}
	}

	return c, nil
}

// Close closes the serial port
func (c *Controller) Close() error {
	return c.port.Close()
}

// Config is the config the Controller was created with
func (c *Controller) Config() Config {
	return c.cfg
}

// Index tells the feeder at addr to move one tick. It returns once the feeder has echoed the command,
// which happens before the tape starts moving
func (c *Controller) Index(ctx context.Context, addr feeder.Address, dir feeder.Direction) error {
	err := c.Send(ctx, addr, dir.Command())
	if err != nil {
		return fmt.Errorf("error indexing feeder %d %s: %w", addr, dir, err)
	}
	return nil
}

// Send writes one [address][command] frame and checks the echo
func (c *Controller) Send(ctx context.Context, addr feeder.Address, cmd byte) error {
	if !addr.Assigned() {
		return fmt.Errorf("%w: %d", ErrInvalidAddress, addr)
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	err := ctx.Err()
	if err != nil {
		return err
	}

	logger := c.logger.With("address", int(addr), "command", fmt.Sprintf("0x%02X", cmd))
	start := time.Now()

	err = c.port.ResetInputBuffer()
	if err != nil {
		return fmt.Errorf("error clearing input: %w", err)
	}

	frame := []byte{byte(addr), cmd}
	err = c.transmit(func() error {
		_, err := c.port.Write(frame)
		return err
	})
	if err != nil {
		return fmt.Errorf("error writing frame: %w", err)
	}

	if c.cfg.LocalEcho {
		own, err := c.readN(ctx, len(frame))
		if err != nil {
			return fmt.Errorf("error reading local echo: %w", err)
		}
		logger.Debug("skipped local echo", "bytes", own)
	}

	reply, err := c.readN(ctx, 1)
	if err != nil {
		logger.Warn("no reply", "error", err)
		return err
	}

	if reply[0] != cmd {
		logger.Warn("unexpected reply", "reply", fmt.Sprintf("0x%02X", reply[0]))
		return fmt.Errorf("%w: got 0x%02X", ErrEchoMismatch, reply[0])
	}

	logger.Debug("echo received", "elapsed", time.Since(start))
	return nil
}

// transmit holds the bus for the duration of send and always hands it back
func (c *Controller) transmit(send func() error) (err error) {
	if c.cfg.RTSDirection {
		err = c.port.SetRTS(true)
		if err != nil {
			return fmt.Errorf("error taking bus: %w", err)
		}
		defer func() {
			rtsErr := c.port.SetRTS(false)
			if err == nil && rtsErr != nil {
				err = fmt.Errorf("error releasing bus: %w", rtsErr)
			}
		}()
	}

	err = send()
	if err != nil {
		return err
	}

	// the last byte has to leave the UART before the direction changes
	return c.port.Drain()
}

// readN reads exactly n bytes. A read returning nothing means the port timed out
func (c *Controller) readN(ctx context.Context, n int) ([]byte, error) {
	buf := make([]byte, n)
	total := 0
	for total < n {
		err := ctx.Err()
		if err != nil {
			return nil, err
		}

		read, err := c.port.Read(buf[total:])
		if err != nil {
			return nil, fmt.Errorf("error reading serial: %w", err)
		}
		if read == 0 {
			return nil, fmt.Errorf("%w after %s (%d of %d bytes)", ErrNoEcho, c.cfg.readTimeout(), total, n)
		}
		total += read
	}
	return buf, nil
}
