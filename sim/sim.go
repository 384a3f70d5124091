// Package sim models the mechanics of a feeder well enough to run the indexing sequence without hardware.
// Time is virtual: it only passes when Sleep is called.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/calvinmclean/indexfeeder"
)

// Pitch is the spacing of sprocket holes on component tape, in µm
const Pitch = 4000.0

// Config has the mechanical constants of the model
type Config struct {
	// TapeSpeed and PeelSpeed are µm per ms at full drive
	TapeSpeed float64
	PeelSpeed float64

	// Occlusion seen by the optical sensor over a hole and over the tape web between holes
	Clear   uint16
	Blocked uint16

	// WebStart and WebEnd bound the fully blocked part of a pitch, as fractions. Edge is the width of
	// each ramp on either side
	WebStart float64
	WebEnd   float64
	Edge     float64

	// Tension reading is TautReading plus SlackGain per µm of loose film
	TautReading uint16
	SlackGain   float64

	// RipAt is how far past taut the film can be pulled before it tears, in µm
	RipAt float64
}

var DefaultConfig = Config{
	TapeSpeed:   10,
	PeelSpeed:   20,
	Clear:       100,
	Blocked:     950,
	WebStart:    0.45,
	WebEnd:      0.55,
	Edge:        0.05,
	TautReading: 150,
	SlackGain:   0.2,
	RipAt:       500,
}

// Feeder is a simulated feeder. It implements feeder.Actuators, feeder.Sensors and feeder.Clock
type Feeder struct {
	mu  sync.Mutex
	cfg Config

	now      time.Duration
	position float64
	slack    float64
	ripped   bool
	jammed   bool

	levels map[feeder.Channel]feeder.Level
}

var (
	_ feeder.Actuators = &Feeder{}
	_ feeder.Sensors   = &Feeder{}
	_ feeder.Clock     = &Feeder{}
)

// New creates a Feeder with the tape at the start of a pitch and the film taut
func New(cfg Config) *Feeder {
	return &Feeder{
		cfg:    cfg,
		levels: map[feeder.Channel]feeder.Level{},
	}
}

func (f *Feeder) SetDrive(ch feeder.Channel, level feeder.Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[ch] = level
}

// Sleep advances virtual time, moving tape and film according to the current drive levels
func (f *Feeder) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ms := float64(d) / float64(time.Millisecond)
	f.now += d

	var moved float64
	if !f.jammed {
		moved = fraction(f.levels[feeder.ChannelAdvance]) * f.cfg.TapeSpeed * ms
	}
	f.position += moved

	// film is peeled off as tape moves forward and pulled back when it retracts
	f.slack += moved
	f.slack -= fraction(f.levels[feeder.ChannelPeel]) * f.cfg.PeelSpeed * ms

	if f.slack < -f.cfg.RipAt {
		f.ripped = true
	}
}

func (f *Feeder) Optical() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := math.Mod(f.position, Pitch) / Pitch
	if p < 0 {
		p++
	}

	var cover float64
	switch {
	case p >= f.cfg.WebStart && p <= f.cfg.WebEnd:
		cover = 1
	case p > f.cfg.WebStart-f.cfg.Edge && p < f.cfg.WebStart:
		cover = (p - (f.cfg.WebStart - f.cfg.Edge)) / f.cfg.Edge
	case p > f.cfg.WebEnd && p < f.cfg.WebEnd+f.cfg.Edge:
		cover = (f.cfg.WebEnd + f.cfg.Edge - p) / f.cfg.Edge
	}

	return f.cfg.Clear + uint16(cover*float64(f.cfg.Blocked-f.cfg.Clear))
}

func (f *Feeder) Tension() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.slack <= 0 {
		return f.cfg.TautReading
	}
	reading := float64(f.cfg.TautReading) + f.slack*f.cfg.SlackGain
	return uint16(math.Min(reading, float64(feeder.SampleMax)))
}

func (f *Feeder) TensionSwitch() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slack <= 0
}

// Jam stops the tape from moving, as if a component or the cover film got caught
func (f *Feeder) Jam(jammed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jammed = jammed
}

// SetPosition moves the tape, in µm
func (f *Feeder) SetPosition(position float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = position
}

// Position is how far the tape has moved in µm
func (f *Feeder) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

// Slack is the length of loose film in µm. Negative means it is being stretched
func (f *Feeder) Slack() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slack
}

// Ripped reports if the film was ever pulled hard enough to tear
func (f *Feeder) Ripped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ripped
}

// Now is the virtual time since the Feeder was created
func (f *Feeder) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Level is the current drive level of ch
func (f *Feeder) Level(ch feeder.Channel) feeder.Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[ch]
}

func fraction(l feeder.Level) float64 {
	return float64(l) / float64(feeder.LevelMax)
}
