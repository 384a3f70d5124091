package feeder

import (
	"errors"
	"strings"
	"time"
)

// Bus command bytes. Anything else addressed to a unit is ignored.
const (
	CommandIndexForward  byte = 0b01000110
	CommandIndexBackward byte = 0b01000010
)

// Full scale of a sensor sample (10-bit).
const SampleMax uint16 = 1023

// Direction selects which way tape is moved
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "Forward"
	case Backward:
		return "Backward"
	default:
		return "Unknown"
	}
}

// ErrUnknownDirection is returned by ParseDirection
var ErrUnknownDirection = errors.New("unknown direction")

// ParseDirection accepts "forward", "backward" or their first letter, in any case
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "forward", "f":
		return Forward, nil
	case "backward", "b":
		return Backward, nil
	default:
		return Forward, ErrUnknownDirection
	}
}

// Command is the bus command byte that indexes one tick in this direction
func (d Direction) Command() byte {
	if d == Backward {
		return CommandIndexBackward
	}
	return CommandIndexForward
}

// Sign is +1 for Forward and -1 for Backward
func (d Direction) Sign() Level {
	if d == Backward {
		return -1
	}
	return +1
}

// Address identifies a feeder on the shared bus. It is read once at startup
// and never changes afterwards.
type Address uint8

const (
	// AddressUnassigned is used until a valid address is read from the identity chip.
	// A unit with this address never answers the bus.
	AddressUnassigned Address = 0x00
	// AddressMax is the highest valid address. 0xFF is reserved for "no identity chip".
	AddressMax Address = 0xFE
)

// Assigned reports if the address is a usable bus address
func (a Address) Assigned() bool {
	return a != AddressUnassigned && a <= AddressMax
}

// Matches reports if an address byte read from the bus is meant for this unit
func (a Address) Matches(b byte) bool {
	return a.Assigned() && byte(a) == b
}

// Channel is an actuator output
type Channel int

const (
	ChannelAdvance Channel = iota
	ChannelPeel
	ChannelIndicator
)

func (c Channel) String() string {
	switch c {
	case ChannelAdvance:
		return "Advance"
	case ChannelPeel:
		return "Peel"
	case ChannelIndicator:
		return "Indicator"
	default:
		return "Unknown"
	}
}

// Level is a signed drive magnitude. For the motors the sign selects the polarity:
// positive advance feeds tape out, positive peel spools film.
type Level int16

const (
	LevelOff Level = 0
	LevelMax Level = 255
)

// Phase is a step of one indexing tick
type Phase int

const (
	PhaseUnknown Phase = iota
	PhasePreSlack
	PhaseSeekBelowT1
	PhaseSeekAboveT2
	PhaseConfirmBelowT3
	PhaseTensionAdjust
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePreSlack:
		return "PreSlack"
	case PhaseSeekBelowT1:
		return "SeekBelowT1"
	case PhaseSeekAboveT2:
		return "SeekAboveT2"
	case PhaseConfirmBelowT3:
		return "ConfirmBelowT3"
	case PhaseTensionAdjust:
		return "TensionAdjust"
	case PhaseDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Actuators drives the two motors and the status indicator
type Actuators interface {
	SetDrive(ch Channel, level Level)
}

// Sensors returns the latest single sample of each input. Nothing is buffered or filtered.
type Sensors interface {
	// Optical is the sprocket-hole interrupter, as occlusion (higher is darker)
	Optical() uint16
	// Tension is the analog film-tension reading. Lower is tighter
	Tension() uint16
	// TensionSwitch reports if the film-tension switch is tripped (film is tight)
	TensionSwitch() bool
}

// Clock pauses between actuator pulses. Nothing else runs on the unit while it sleeps.
type Clock interface {
	Sleep(time.Duration)
}

// OutputPin is a digital output such as the bus driver-enable line
type OutputPin interface {
	Set(bool)
}

// Button is a momentary input
type Button interface {
	Pressed() bool
}

// SystemClock sleeps for real
type SystemClock struct{}

func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
