package indexer

import (
	"errors"
	"strconv"

	"github.com/calvinmclean/indexfeeder"
)

var (
	ErrInvalidTicks = errors.New("tick count must be at least 1")
	ErrStall        = errors.New("stalled waiting for sensor")
)

// StallError is returned when a phase used up Profile.MaxAttempts without seeing its sensor transition.
// It usually means a jam, a stalled motor or a disconnected sensor. Nothing is retried.
type StallError struct {
	Direction feeder.Direction
	Phase     feeder.Phase
	Attempts  int
}

func (e *StallError) Error() string {
	return "indexer: " + e.Direction.String() + " tick stalled in " + e.Phase.String() +
		" after " + strconv.Itoa(e.Attempts) + " attempts"
}

func (e *StallError) Unwrap() error {
	return ErrStall
}

// Indexer moves tape by whole pitches. It owns the actuators for the duration of a run and blocks until the
// run is finished.
type Indexer struct {
	actuators feeder.Actuators
	sensors   feeder.Sensors
	clock     feeder.Clock

	forward  Profile
	backward Profile

	onPhase func(feeder.Direction, feeder.Phase)
}

// Option configures an Indexer
type Option func(*Indexer)

// WithProfiles replaces the default tuning
func WithProfiles(forward, backward Profile) Option {
	return func(ix *Indexer) {
		ix.forward = forward
		ix.backward = backward
	}
}

// WithMaxAttempts bounds every phase in both directions
func WithMaxAttempts(n int) Option {
	return func(ix *Indexer) {
		ix.forward.MaxAttempts = n
		ix.backward.MaxAttempts = n
	}
}

// WithPhaseHook is called each time a phase is entered, and with PhaseDone at the end of a tick
func WithPhaseHook(f func(feeder.Direction, feeder.Phase)) Option {
	return func(ix *Indexer) {
		ix.onPhase = f
	}
}

// New creates an Indexer using the default profiles unless overridden
func New(actuators feeder.Actuators, sensors feeder.Sensors, clock feeder.Clock, opts ...Option) (*Indexer, error) {
	ix := &Indexer{
		actuators: actuators,
		sensors:   sensors,
		clock:     clock,
		forward:   DefaultForward,
		backward:  DefaultBackward,
	}
	for _, opt := range opts {
		opt(ix)
	}

	if ix.forward.Direction != feeder.Forward || ix.backward.Direction != feeder.Backward {
		return nil, errors.New("profile direction mismatch")
	}
	if err := ix.forward.Validate(); err != nil {
		return nil, errors.New("invalid forward profile: " + err.Error())
	}
	if err := ix.backward.Validate(); err != nil {
		return nil, errors.New("invalid backward profile: " + err.Error())
	}

	return ix, nil
}

// Profile returns the tuning used for a direction
func (ix *Indexer) Profile(dir feeder.Direction) Profile {
	if dir == feeder.Backward {
		return ix.backward
	}
	return ix.forward
}

// Index moves the tape by ticks pitches. Every output is off when it returns, including on error.
func (ix *Indexer) Index(ticks int, dir feeder.Direction) error {
	if ticks < 1 {
		return ErrInvalidTicks
	}

	p := ix.Profile(dir)
	for range ticks {
		err := ix.tick(p)
		if err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) tick(p Profile) error {
	defer ix.stop()
	ix.actuators.SetDrive(feeder.ChannelIndicator, feeder.LevelMax)

	ph := p.First()
	for ph != feeder.PhaseDone {
		ix.observe(p.Direction, ph)

		next, err := ix.run(p, ph)
		if err != nil {
			return err
		}
		ph = next
	}

	ix.observe(p.Direction, feeder.PhaseDone)
	return nil
}

// run drives ph until its exit condition holds and returns the phase that follows
func (ix *Indexer) run(p Profile, ph feeder.Phase) (feeder.Phase, error) {
	defer ix.motorsOff()

	if ph == feeder.PhasePreSlack {
		ix.actuators.SetDrive(feeder.ChannelPeel, p.PreSlackLevel)
		ix.clock.Sleep(p.PreSlackTime)
		return p.Next(ph, 0), nil
	}

	for attempts := 0; ; attempts++ {
		next := p.Next(ph, ix.sample(p, ph))
		if next == feeder.PhaseUnknown {
			return next, errors.New("indexer: unknown phase")
		}
		if next != ph {
			return next, nil
		}
		if p.MaxAttempts > 0 && attempts >= p.MaxAttempts {
			return ph, &StallError{Direction: p.Direction, Phase: ph, Attempts: attempts}
		}
		ix.drive(p, ph)
	}
}

func (ix *Indexer) sample(p Profile, ph feeder.Phase) uint16 {
	if ph != feeder.PhaseTensionAdjust {
		return ix.sensors.Optical()
	}
	if p.TensionSwitch {
		return switchSample(ix.sensors.TensionSwitch())
	}
	return ix.sensors.Tension()
}

func (ix *Indexer) drive(p Profile, ph feeder.Phase) {
	if ph == feeder.PhaseTensionAdjust {
		// the peel motor runs continuously while polling
		ix.actuators.SetDrive(feeder.ChannelPeel, p.TensionLevel)
		ix.clock.Sleep(p.TensionPoll)
		return
	}

	pulse := p.pulse(ph)
	ix.actuators.SetDrive(feeder.ChannelAdvance, pulse.Level)
	ix.clock.Sleep(pulse.On)
	ix.actuators.SetDrive(feeder.ChannelAdvance, feeder.LevelOff)
	ix.clock.Sleep(pulse.Off)
}

func (ix *Indexer) motorsOff() {
	ix.actuators.SetDrive(feeder.ChannelAdvance, feeder.LevelOff)
	ix.actuators.SetDrive(feeder.ChannelPeel, feeder.LevelOff)
}

func (ix *Indexer) stop() {
	ix.motorsOff()
	ix.actuators.SetDrive(feeder.ChannelIndicator, feeder.LevelOff)
}

func (ix *Indexer) observe(dir feeder.Direction, ph feeder.Phase) {
	if ix.onPhase != nil {
		ix.onPhase(dir, ph)
	}
}
