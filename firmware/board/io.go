//go:build tinygo

package board

import (
	"machine"

	"github.com/calvinmclean/indexfeeder"
)

// the ADC returns 16-bit samples; the indexing thresholds are on a 10-bit scale
const adcShift = 6

// Sensors reads the optical and film tension inputs
type Sensors struct {
	optical     machine.ADC
	tension     machine.ADC
	switchBelow uint16
}

var _ feeder.Sensors = &Sensors{}

// Optical reports occlusion, so the reading rises while the web between sprocket holes blocks the beam
func (s *Sensors) Optical() uint16 {
	return feeder.SampleMax - s.optical.Get()>>adcShift
}

func (s *Sensors) Tension() uint16 {
	return s.tension.Get() >> adcShift
}

// TensionSwitch shares the tension input. The switch pulls it low when the film is taut
func (s *Sensors) TensionSwitch() bool {
	return s.Tension() < s.switchBelow
}

// activeLow is an output whose line is low when asserted
type activeLow machine.Pin

func (p activeLow) Set(v bool) {
	machine.Pin(p).Set(!v)
}

// button is an input with a pull-up that reads low while pressed
type button machine.Pin

func (b button) Pressed() bool {
	return !machine.Pin(b).Get()
}
