//go:build tinygo

package board

import (
	"machine"
	"time"
)

// PWM is a hardware PWM slice. machine.PWM0..PWM7 implement it on the RP2040
type PWM interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// MotorConfig is one H-bridge. Both pins must be on the same PWM slice
type MotorConfig struct {
	PWM    PWM
	PinA   machine.Pin
	PinB   machine.Pin
	Period uint64
	// Reverse swaps A and B so a positive level always feeds tape forward or spools film
	Reverse bool
}

// SensorConfig has the analog inputs
type SensorConfig struct {
	Optical machine.Pin
	Tension machine.Pin
	// SwitchBelow is the 10-bit tension reading under which the film tension switch counts as tripped
	SwitchBelow uint16
}

// BusConfig is the RS-485 transceiver
type BusConfig struct {
	UART     *machine.UART
	TX       machine.Pin
	RX       machine.Pin
	BaudRate uint32
	DE       machine.Pin
	// NotRE is the receiver enable, active low
	NotRE machine.Pin
}

// PanelConfig has the manual buttons and the indicator LED. All are active low
type PanelConfig struct {
	Forward   machine.Pin
	Backward  machine.Pin
	Indicator machine.Pin
	LongPress time.Duration
}

// Config is the whole board
type Config struct {
	Advance MotorConfig
	Peel    MotorConfig
	Sensors SensorConfig
	Bus     BusConfig
	Panel   PanelConfig
	OneWire machine.Pin
	Verbose bool
}
