package device

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/commands"
	"github.com/calvinmclean/indexfeeder/controls"
	"github.com/calvinmclean/indexfeeder/identity"
	"github.com/calvinmclean/indexfeeder/indexer"
)

const blinkDelay = 200 * time.Millisecond

// Identity is the store this unit's bus address is read from. identity.DS2431 implements it
type Identity interface {
	ReadAddress() (feeder.Address, error)
	Program(value byte) byte
}

// Config has the hardware a Device owns
type Config struct {
	Actuators feeder.Actuators
	Sensors   feeder.Sensors
	Clock     feeder.Clock

	Bus            commands.Bus
	DriverEnable   feeder.OutputPin
	ReceiverEnable feeder.OutputPin
	FrameTimeout   time.Duration

	Forward   feeder.Button
	Backward  feeder.Button
	LongPress time.Duration

	// Identity may be nil, in which case the unit stays unassigned
	Identity Identity

	// Console gets the status line and diagnostics. It is not the bus
	Console io.Writer

	IndexerOptions []indexer.Option
	Verbose        bool
}

// Device is one feeder unit: its address and everything it drives. The main loop calls Step and each call
// runs to completion, including any indexing it triggers.
type Device struct {
	address feeder.Address

	indexer    *indexer.Indexer
	dispatcher *commands.Dispatcher
	controls   *controls.Panel

	actuators feeder.Actuators
	sensors   feeder.Sensors
	clock     feeder.Clock
	console   io.Writer

	verbose bool
	steps   uint64
}

// New reads the unit address once and sets up the indexer, bus dispatcher and manual controls.
// Holding both buttons while a blank identity chip is attached provisions it.
func New(cfg Config) (*Device, error) {
	if cfg.Actuators == nil || cfg.Sensors == nil || cfg.Clock == nil {
		return nil, errors.New("actuators, sensors and clock are required")
	}
	if cfg.Console == nil {
		cfg.Console = io.Discard
	}

	d := &Device{
		actuators: cfg.Actuators,
		sensors:   cfg.Sensors,
		clock:     cfg.Clock,
		console:   cfg.Console,
		verbose:   cfg.Verbose,
	}

	opts := cfg.IndexerOptions
	if d.verbose {
		opts = append(opts, indexer.WithPhaseHook(func(dir feeder.Direction, ph feeder.Phase) {
			d.log(dir.String(), ph.String())
		}))
	}

	var err error
	d.indexer, err = indexer.New(cfg.Actuators, cfg.Sensors, cfg.Clock, opts...)
	if err != nil {
		return nil, errors.New("error creating indexer: " + err.Error())
	}

	d.controls, err = controls.New(controls.Config{
		Forward:   cfg.Forward,
		Backward:  cfg.Backward,
		Actuators: cfg.Actuators,
		Clock:     cfg.Clock,
		LongPress: cfg.LongPress,
	}, d.indexer)
	if err != nil {
		return nil, errors.New("error creating controls: " + err.Error())
	}

	d.address = d.readAddress(cfg.Identity)

	d.dispatcher, err = commands.NewDispatcher(commands.Config{
		Address:        d.address,
		Bus:            cfg.Bus,
		DriverEnable:   cfg.DriverEnable,
		ReceiverEnable: cfg.ReceiverEnable,
		Clock:          cfg.Clock,
		FrameTimeout:   cfg.FrameTimeout,
	}, d.indexer)
	if err != nil {
		return nil, errors.New("error creating dispatcher: " + err.Error())
	}

	d.log("address:", strconv.Itoa(int(d.address)))
	if d.verbose {
		for _, line := range commands.Help() {
			d.log(line)
		}
	}
	return d, nil
}

func (d *Device) readAddress(store Identity) feeder.Address {
	if store == nil {
		d.log("no identity store, staying unassigned")
		return feeder.AddressUnassigned
	}

	addr, err := store.ReadAddress()
	switch {
	case err == nil:
		return addr
	case errors.Is(err, identity.ErrUnprogrammed) && d.controls.Held():
		v := store.Program(identity.DefaultProvisionValue)
		if v == identity.CodeUnprogrammed {
			d.log("provisioning failed")
			return feeder.AddressUnassigned
		}
		d.log("provisioned identity chip")
		return feeder.Address(v)
	default:
		d.log("identity:", err.Error())
		return feeder.AddressUnassigned
	}
}

// Address is the bus address this unit answers to
func (d *Device) Address() feeder.Address {
	return d.address
}

// Blink flashes the indicator at power on
func (d *Device) Blink() {
	for i := range 6 {
		level := feeder.LevelOff
		if i%2 == 0 {
			level = feeder.LevelMax
		}
		d.actuators.SetDrive(feeder.ChannelIndicator, level)
		d.clock.Sleep(blinkDelay)
	}
	d.actuators.SetDrive(feeder.ChannelIndicator, feeder.LevelOff)
}

// Step is one pass of the main loop: manual buttons, then the bus, then the status line.
// Every part runs even if an earlier one failed; the first error is returned.
func (d *Device) Step() error {
	d.steps++

	firstErr := d.controls.Poll()

	err := d.dispatcher.Poll()
	if err != nil && firstErr == nil {
		firstErr = err
	}

	d.status()
	return firstErr
}

// Run loops forever
func (d *Device) Run() {
	for {
		err := d.Step()
		if err != nil {
			d.log("error:", err.Error())
		}
	}
}

// status writes the tension sample. Purely diagnostic
func (d *Device) status() {
	_, _ = io.WriteString(d.console, "tension="+strconv.Itoa(int(d.sensors.Tension()))+"\n")
}

func (d *Device) log(parts ...string) {
	line := "[" + strconv.FormatUint(d.steps, 10) + "]"
	for _, p := range parts {
		line += " " + p
	}
	_, _ = io.WriteString(d.console, line+"\n")
}
