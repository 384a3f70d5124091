// Package feedertest has scripted and recording implementations of the feeder hardware interfaces for tests.
package feedertest

import (
	"sync"
	"time"

	"github.com/calvinmclean/indexfeeder"
)

// Drive is one recorded SetDrive call
type Drive struct {
	Channel feeder.Channel
	Level   feeder.Level
}

// Actuators records every SetDrive call and the current level of each channel
type Actuators struct {
	mu     sync.Mutex
	Drives []Drive
	levels map[feeder.Channel]feeder.Level
}

var _ feeder.Actuators = &Actuators{}

func (a *Actuators) SetDrive(ch feeder.Channel, level feeder.Level) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.levels == nil {
		a.levels = map[feeder.Channel]feeder.Level{}
	}
	a.levels[ch] = level
	a.Drives = append(a.Drives, Drive{ch, level})
}

// Level is the last level set on ch
func (a *Actuators) Level(ch feeder.Channel) feeder.Level {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.levels[ch]
}

// AllOff reports if every channel is at zero
func (a *Actuators) AllOff() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range a.levels {
		if l != feeder.LevelOff {
			return false
		}
	}
	return true
}

// Count returns how many times ch was set to level
func (a *Actuators) Count(ch feeder.Channel, level feeder.Level) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, d := range a.Drives {
		if d.Channel == ch && d.Level == level {
			n++
		}
	}
	return n
}

// Active reports if any motor was ever driven with a nonzero level
func (a *Actuators) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range a.Drives {
		if d.Channel != feeder.ChannelIndicator && d.Level != feeder.LevelOff {
			return true
		}
	}
	return false
}

// Sensors returns scripted samples in order. When a script runs out its last value repeats.
type Sensors struct {
	OpticalScript []uint16
	TensionScript []uint16
	SwitchScript  []bool

	OpticalReads int
	TensionReads int
	SwitchReads  int
}

var _ feeder.Sensors = &Sensors{}

func next[T any](script []T, i int) T {
	var zero T
	if len(script) == 0 {
		return zero
	}
	if i >= len(script) {
		return script[len(script)-1]
	}
	return script[i]
}

func (s *Sensors) Optical() uint16 {
	v := next(s.OpticalScript, s.OpticalReads)
	s.OpticalReads++
	return v
}

func (s *Sensors) Tension() uint16 {
	v := next(s.TensionScript, s.TensionReads)
	s.TensionReads++
	return v
}

func (s *Sensors) TensionSwitch() bool {
	v := next(s.SwitchScript, s.SwitchReads)
	s.SwitchReads++
	return v
}

// Clock adds up requested sleeps without waiting
type Clock struct {
	Elapsed time.Duration
	Sleeps  int
}

var _ feeder.Clock = &Clock{}

func (c *Clock) Sleep(d time.Duration) {
	c.Elapsed += d
	c.Sleeps++
}

// Pin records the last value set
type Pin struct {
	Value   bool
	History []bool
}

var _ feeder.OutputPin = &Pin{}

func (p *Pin) Set(v bool) {
	p.Value = v
	p.History = append(p.History, v)
}

// Button is pressed for the next Presses calls to Pressed
type Button struct {
	Presses int
	Reads   int
}

var _ feeder.Button = &Button{}

func (b *Button) Pressed() bool {
	b.Reads++
	if b.Presses > 0 {
		b.Presses--
		return true
	}
	return false
}
