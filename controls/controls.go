package controls

import (
	"errors"
	"time"

	"github.com/calvinmclean/indexfeeder"
)

const (
	defaultLongPress = 500 * time.Millisecond
	releasePoll      = 5 * time.Millisecond
)

// Indexer moves tape by whole pitches
type Indexer interface {
	Index(ticks int, dir feeder.Direction) error
}

// Config has the two manual buttons. Either may be nil
type Config struct {
	Forward   feeder.Button
	Backward  feeder.Button
	Actuators feeder.Actuators
	Clock     feeder.Clock

	// LongPress is how long a button must be held to run the tape continuously
	LongPress time.Duration
}

// Panel handles the manual buttons. A short press indexes one tick, a long press drives the tape
// at full speed until the button is released.
type Panel struct {
	forward   feeder.Button
	backward  feeder.Button
	actuators feeder.Actuators
	clock     feeder.Clock
	longPress time.Duration

	indexer Indexer
}

func New(cfg Config, ix Indexer) (*Panel, error) {
	if cfg.Actuators == nil || cfg.Clock == nil {
		return nil, errors.New("actuators and clock are required")
	}
	if ix == nil {
		return nil, errors.New("indexer is required")
	}
	if cfg.LongPress == 0 {
		cfg.LongPress = defaultLongPress
	}

	return &Panel{
		forward:   cfg.Forward,
		backward:  cfg.Backward,
		actuators: cfg.Actuators,
		clock:     cfg.Clock,
		longPress: cfg.LongPress,
		indexer:   ix,
	}, nil
}

// Poll checks the forward button, then the backward button
func (p *Panel) Poll() error {
	err := p.check(p.forward, feeder.Forward)
	if err != nil {
		return err
	}
	return p.check(p.backward, feeder.Backward)
}

// Held reports if both buttons are pressed right now
func (p *Panel) Held() bool {
	return p.forward != nil && p.backward != nil && p.forward.Pressed() && p.backward.Pressed()
}

func (p *Panel) check(b feeder.Button, dir feeder.Direction) error {
	if b == nil || !b.Pressed() {
		return nil
	}

	p.clock.Sleep(p.longPress)
	if !b.Pressed() {
		return p.indexer.Index(1, dir)
	}

	p.run(b, dir)
	return nil
}

// run drives the advance motor until b is released. No tension regulation happens here.
func (p *Panel) run(b feeder.Button, dir feeder.Direction) {
	p.actuators.SetDrive(feeder.ChannelAdvance, feeder.LevelMax*dir.Sign())
	defer p.actuators.SetDrive(feeder.ChannelAdvance, feeder.LevelOff)

	for b.Pressed() {
		p.clock.Sleep(releasePoll)
	}
}
