package main

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"time"

	"go.bug.st/serial"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/device"
	"github.com/calvinmclean/indexfeeder/logs"
	"github.com/calvinmclean/indexfeeder/sim"
)

const idleStep = time.Millisecond

type rtsPin struct {
	port   serial.Port
	logger *slog.Logger
}

func (p rtsPin) Set(v bool) {
	err := p.port.SetRTS(v)
	if err != nil {
		p.logger.Warn("error setting RTS", "error", err)
	}
}

type nopPin struct{}

func (nopPin) Set(bool) {}

func main() {
	var (
		portName string
		baudRate int
		address  uint
		rts      bool
		verbose  bool
	)
	flag.StringVar(&portName, "port", os.Getenv("SERIAL_PORT"), "serial port the simulated feeder listens on")
	flag.IntVar(&baudRate, "baud", 115200, "baud rate")
	flag.UintVar(&address, "address", 1, "identity chip contents: 0 is unprogrammed, 255 is no chip")
	flag.BoolVar(&rts, "rts", false, "drive RTS while transmitting")
	flag.BoolVar(&verbose, "verbose", false, "print indexing phases and the status line")
	flag.Parse()

	logger := logs.New(os.Stderr)

	if portName == "" || address > 0xFF {
		flag.Usage()
		os.Exit(2)
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		logger.Error("error opening serial port", "port", portName, "error", err)
		os.Exit(1)
	}
	defer port.Close()

	var driverEnable feeder.OutputPin = nopPin{}
	if rts {
		driverEnable = rtsPin{port, logger}
	}

	// the status line is written every step, so it is only shown when asked for
	var console io.Writer = io.Discard
	if verbose {
		console = os.Stdout
	}

	f := sim.New(sim.DefaultConfig)
	clock := f.RealTime()
	bus := sim.NewPortBus(port)

	d, err := device.New(device.Config{
		Actuators:      f,
		Sensors:        f,
		Clock:          clock,
		Bus:            bus,
		DriverEnable:   driverEnable,
		ReceiverEnable: nopPin{},
		Identity:       &sim.Identity{Code: byte(address)},
		Console:        console,
		Verbose:        verbose,
	})
	if err != nil {
		logger.Error("error creating simulated feeder", "error", err)
		os.Exit(1)
	}

	logger.Info("simulated feeder ready", "port", portName, "address", int(d.Address()))

	go func() {
		<-bus.Done()
		logger.Error("serial port closed", "error", bus.Err())
		os.Exit(1)
	}()

	for {
		err := d.Step()
		if err != nil {
			logger.Error("step failed", "error", err, "position", f.Position())
		}
		clock.Sleep(idleStep)
	}
}
