//go:build tinygo

package board

import (
	"errors"
	"machine"

	"github.com/calvinmclean/indexfeeder"
)

// 1kHz, in ns
const defaultPeriod = 1e9 / 1000

// Motor drives a brushed DC motor through an H-bridge with one PWM channel per leg
type Motor struct {
	pwm      PWM
	chA, chB uint8
	top      uint32
}

func NewMotor(cfg MotorConfig) (*Motor, error) {
	if cfg.PWM == nil {
		return nil, errors.New("missing PWM")
	}
	if cfg.Period == 0 {
		cfg.Period = defaultPeriod
	}
	if cfg.Reverse {
		cfg.PinA, cfg.PinB = cfg.PinB, cfg.PinA
	}

	err := cfg.PWM.Configure(machine.PWMConfig{Period: cfg.Period})
	if err != nil {
		return nil, errors.New("error configuring PWM: " + err.Error())
	}

	m := &Motor{pwm: cfg.PWM, top: cfg.PWM.Top()}

	m.chA, err = cfg.PWM.Channel(cfg.PinA)
	if err != nil {
		return nil, errors.New("error getting channel A: " + err.Error())
	}
	m.chB, err = cfg.PWM.Channel(cfg.PinB)
	if err != nil {
		return nil, errors.New("error getting channel B: " + err.Error())
	}

	m.Set(feeder.LevelOff)
	return m, nil
}

// Set drives leg B for positive levels and leg A for negative ones. The idle leg is held low
func (m *Motor) Set(level feeder.Level) {
	if level > feeder.LevelMax {
		level = feeder.LevelMax
	}
	if level < -feeder.LevelMax {
		level = -feeder.LevelMax
	}

	duty := func(l feeder.Level) uint32 {
		return uint32(l) * m.top / uint32(feeder.LevelMax)
	}

	switch {
	case level > 0:
		m.pwm.Set(m.chA, 0)
		m.pwm.Set(m.chB, duty(level))
	case level < 0:
		m.pwm.Set(m.chB, 0)
		m.pwm.Set(m.chA, duty(-level))
	default:
		m.pwm.Set(m.chA, 0)
		m.pwm.Set(m.chB, 0)
	}
}

// Actuators maps feeder channels onto the two motors and the indicator LED
type Actuators struct {
	advance   *Motor
	peel      *Motor
	indicator machine.Pin
}

var _ feeder.Actuators = &Actuators{}

func (a *Actuators) SetDrive(ch feeder.Channel, level feeder.Level) {
	switch ch {
	case feeder.ChannelAdvance:
		a.advance.Set(level)
	case feeder.ChannelPeel:
		a.peel.Set(level)
	case feeder.ChannelIndicator:
		// LED is wired active low
		a.indicator.Set(level == feeder.LevelOff)
	}
}
