//go:build tinygo

// Package board maps the feeder main board's pins, PWM slices, ADC inputs, RS-485 UART and 1-Wire line onto the
// interfaces the rest of the firmware uses.
package board

import (
	"errors"
	"machine"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/device"
	"github.com/calvinmclean/indexfeeder/identity"

	"tinygo.org/x/drivers/onewire"
)

const (
	defaultBaudRate    = 115200
	defaultSwitchBelow = 500
)

// New configures the hardware and returns the unit built on top of it
func New(cfg Config) (*device.Device, error) {
	if cfg.Bus.UART == nil {
		return nil, errors.New("missing UART")
	}
	if cfg.Bus.BaudRate == 0 {
		cfg.Bus.BaudRate = defaultBaudRate
	}
	if cfg.Sensors.SwitchBelow == 0 {
		cfg.Sensors.SwitchBelow = defaultSwitchBelow
	}

	for _, p := range []machine.Pin{cfg.Bus.DE, cfg.Bus.NotRE, cfg.Panel.Indicator} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	for _, p := range []machine.Pin{cfg.Panel.Forward, cfg.Panel.Backward} {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}

	advance, err := NewMotor(cfg.Advance)
	if err != nil {
		return nil, errors.New("error creating advance motor: " + err.Error())
	}
	peel, err := NewMotor(cfg.Peel)
	if err != nil {
		return nil, errors.New("error creating peel motor: " + err.Error())
	}
	actuators := &Actuators{advance: advance, peel: peel, indicator: cfg.Panel.Indicator}
	actuators.SetDrive(feeder.ChannelIndicator, feeder.LevelOff)

	machine.InitADC()
	sensors := &Sensors{
		optical:     machine.ADC{Pin: cfg.Sensors.Optical},
		tension:     machine.ADC{Pin: cfg.Sensors.Tension},
		switchBelow: cfg.Sensors.SwitchBelow,
	}
	sensors.optical.Configure(machine.ADCConfig{})
	sensors.tension.Configure(machine.ADCConfig{})

	err = cfg.Bus.UART.Configure(machine.UARTConfig{
		BaudRate: cfg.Bus.BaudRate,
		TX:       cfg.Bus.TX,
		RX:       cfg.Bus.RX,
	})
	if err != nil {
		return nil, errors.New("error configuring UART: " + err.Error())
	}

	ow := onewire.New(cfg.OneWire)
	ow.Configure(onewire.Config{})

	clock := feeder.SystemClock{}

	return device.New(device.Config{
		Actuators:      actuators,
		Sensors:        sensors,
		Clock:          clock,
		Bus:            cfg.Bus.UART,
		DriverEnable:   cfg.Bus.DE,
		ReceiverEnable: activeLow(cfg.Bus.NotRE),
		Forward:        button(cfg.Panel.Forward),
		Backward:       button(cfg.Panel.Backward),
		LongPress:      cfg.Panel.LongPress,
		Identity:       identity.NewDS2431(ow, clock),
		Console:        machine.Serial,
		Verbose:        cfg.Verbose,
	})
}
