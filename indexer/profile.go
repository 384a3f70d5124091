package indexer

import (
	"errors"
	"time"

	"github.com/calvinmclean/indexfeeder"
)

// Pulse is one soft-PWM cycle of the advance motor: drive at Level for On, then off for Off
type Pulse struct {
	Level feeder.Level
	On    time.Duration
	Off   time.Duration
}

// Profile has the tuned constants for moving tape in one direction. Forward and backward differ because
// friction and film tension are not symmetric, so these are measured, not derived.
type Profile struct {
	Direction feeder.Direction

	// Optical thresholds crossed in order: below T1, above T2, below T3
	T1, T2, T3 uint16

	// Seek is pulsed while waiting for T1, Pulse for T2 and T3
	Seek  Pulse
	Pulse Pulse

	// PreSlackLevel is applied to the peel motor for PreSlackTime before the optical sequence.
	// A zero PreSlackTime skips the step
	PreSlackLevel feeder.Level
	PreSlackTime  time.Duration

	// TensionLevel drives the peel motor until the tension sample is at or below SlackThreshold.
	// With TensionSwitch, the digital switch is used instead of the analog reading
	TensionLevel   feeder.Level
	TensionPoll    time.Duration
	TensionSwitch  bool
	SlackThreshold uint16

	// MaxAttempts bounds the pulses (or tension polls) spent in a single phase. Zero waits forever
	MaxAttempts int
}

var (
	DefaultForward = Profile{
		Direction:      feeder.Forward,
		T1:             824,
		T2:             822,
		T3:             524,
		Seek:           Pulse{Level: 150, On: 15 * time.Millisecond, Off: 50 * time.Millisecond},
		Pulse:          Pulse{Level: 200, On: 15 * time.Millisecond, Off: 50 * time.Millisecond},
		TensionLevel:   100,
		TensionPoll:    2 * time.Millisecond,
		SlackThreshold: 500,
	}

	DefaultBackward = Profile{
		Direction:      feeder.Backward,
		T1:             724,
		T2:             822,
		T3:             774,
		Seek:           Pulse{Level: -200, On: 20 * time.Millisecond, Off: 50 * time.Millisecond},
		Pulse:          Pulse{Level: -200, On: 20 * time.Millisecond, Off: 50 * time.Millisecond},
		PreSlackLevel:  -100,
		PreSlackTime:   400 * time.Millisecond,
		TensionLevel:   100,
		TensionPoll:    2 * time.Millisecond,
		TensionSwitch:  true,
		SlackThreshold: 500,
	}
)

// switchSample turns the tension switch into a sample so both tension modes share one exit rule
func switchSample(tripped bool) uint16 {
	if tripped {
		return 0
	}
	return feeder.SampleMax
}

// First is the phase a tick starts in
func (p Profile) First() feeder.Phase {
	if p.PreSlackTime > 0 {
		return feeder.PhasePreSlack
	}
	return feeder.PhaseSeekBelowT1
}

// Next returns the phase that follows ph after observing sample. It returns ph while the phase's
// exit condition does not hold. PreSlack is timed, so its sample is ignored.
func (p Profile) Next(ph feeder.Phase, sample uint16) feeder.Phase {
	switch ph {
	case feeder.PhasePreSlack:
		return feeder.PhaseSeekBelowT1
	case feeder.PhaseSeekBelowT1:
		if sample < p.T1 {
			return feeder.PhaseSeekAboveT2
		}
	case feeder.PhaseSeekAboveT2:
		if sample > p.T2 {
			return feeder.PhaseConfirmBelowT3
		}
	case feeder.PhaseConfirmBelowT3:
		if sample < p.T3 {
			return feeder.PhaseTensionAdjust
		}
	case feeder.PhaseTensionAdjust:
		if sample <= p.SlackThreshold {
			return feeder.PhaseDone
		}
	case feeder.PhaseDone:
		return feeder.PhaseDone
	default:
		return feeder.PhaseUnknown
	}
	return ph
}

func (p Profile) pulse(ph feeder.Phase) Pulse {
	if ph == feeder.PhaseSeekBelowT1 {
		return p.Seek
	}
	return p.Pulse
}

// Validate checks that the levels agree with the direction and thresholds are on the sample scale
func (p Profile) Validate() error {
	for _, t := range []uint16{p.T1, p.T2, p.T3, p.SlackThreshold} {
		if t > feeder.SampleMax {
			return errors.New("threshold out of range: " + p.Direction.String())
		}
	}
	sign := p.Direction.Sign()
	if p.Seek.Level*sign <= 0 || p.Pulse.Level*sign <= 0 {
		return errors.New("pulse level does not match direction: " + p.Direction.String())
	}
	if p.TensionLevel <= 0 {
		return errors.New("tension level must spool film")
	}
	if p.SlackThreshold >= feeder.SampleMax && p.TensionSwitch {
		return errors.New("switch tension needs a slack threshold below full scale")
	}
	if p.MaxAttempts < 0 {
		return errors.New("invalid MaxAttempts")
	}
	return nil
}
