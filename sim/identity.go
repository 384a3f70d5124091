package sim

import (
	"time"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/identity"
)

// Identity stands in for the identity chip. Code is the raw byte the chip would return
type Identity struct {
	Code byte
}

func (i *Identity) ReadAddress() (feeder.Address, error) {
	return identity.Resolve(i.Code)
}

func (i *Identity) Program(value byte) byte {
	i.Code = value
	return value
}

// RealTime is a clock that advances the simulation and also waits for real, so a simulated unit on a serial
// port keeps the timing of a real one
func (f *Feeder) RealTime() feeder.Clock {
	return realTime{f}
}

type realTime struct {
	f *Feeder
}

func (c realTime) Sleep(d time.Duration) {
	c.f.Sleep(d)
	time.Sleep(d)
}
