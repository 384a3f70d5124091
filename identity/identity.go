// Package identity reads this unit's bus address from the DS2431 1-Wire EEPROM on the feeder floor,
// and can provision a blank one.
package identity

import (
	"errors"
	"time"

	"github.com/calvinmclean/indexfeeder"
)

// Codes returned by ReadCode. Anything else is an address
const (
	CodeAbsent       byte = 0xFF
	CodeUnprogrammed byte = 0x00
)

const (
	// AddressOffset is where the address byte lives in EEPROM
	AddressOffset uint16 = 0
	// DefaultProvisionValue is written by Program when provisioning a floor
	DefaultProvisionValue byte = 1
)

// DS2431 commands
const (
	cmdSkipROM         = 0xCC
	cmdReadMemory      = 0xF0
	cmdWriteScratchpad = 0x0F
	cmdReadScratchpad  = 0xAA
	cmdCopyScratchpad  = 0x55

	copySuccess = 0xAA
	rowSize     = 8
	programTime = 10 * time.Millisecond
)

var (
	ErrAbsent       = errors.New("no identity chip on the 1-Wire bus")
	ErrUnprogrammed = errors.New("identity chip is not programmed")
	ErrWriteFailed  = errors.New("identity chip write failed")
)

// OneWire is the bus the chip is on. tinygo.org/x/drivers/onewire implements it
type OneWire interface {
	Reset() error
	Write(uint8)
	Read() uint8
}

// DS2431 is a 1024-bit 1-Wire EEPROM. It is assumed to be the only device on the bus, so ROM selection is skipped.
type DS2431 struct {
	bus   OneWire
	clock feeder.Clock
}

func NewDS2431(bus OneWire, clock feeder.Clock) *DS2431 {
	return &DS2431{bus: bus, clock: clock}
}

// Resolve turns a code from ReadCode into an address
func Resolve(code byte) (feeder.Address, error) {
	switch code {
	case CodeAbsent:
		return feeder.AddressUnassigned, ErrAbsent
	case CodeUnprogrammed:
		return feeder.AddressUnassigned, ErrUnprogrammed
	default:
		return feeder.Address(code), nil
	}
}

// ReadCode returns the address byte, or CodeAbsent when nothing answers the reset pulse
func (d *DS2431) ReadCode() byte {
	var b [1]byte
	err := d.ReadMemory(AddressOffset, b[:])
	if err != nil {
		return CodeAbsent
	}
	return b[0]
}

// ReadAddress reads and resolves the address
func (d *DS2431) ReadAddress() (feeder.Address, error) {
	return Resolve(d.ReadCode())
}

// ReadMemory fills buf starting at offset
func (d *DS2431) ReadMemory(offset uint16, buf []byte) error {
	if err := d.command(cmdReadMemory); err != nil {
		return err
	}
	d.bus.Write(uint8(offset))
	d.bus.Write(uint8(offset >> 8))

	for i := range buf {
		buf[i] = d.bus.Read()
	}
	return nil
}

// WriteRow writes one 8-byte row through the scratchpad. offset must be row aligned.
func (d *DS2431) WriteRow(offset uint16, row [rowSize]byte) error {
	if offset%rowSize != 0 {
		return errors.New("offset is not row aligned")
	}

	if err := d.command(cmdWriteScratchpad); err != nil {
		return err
	}
	d.bus.Write(uint8(offset))
	d.bus.Write(uint8(offset >> 8))
	for _, b := range row {
		d.bus.Write(b)
	}

	// read back to check the data and get the authorization bytes for the copy
	if err := d.command(cmdReadScratchpad); err != nil {
		return err
	}
	ta1, ta2, es := d.bus.Read(), d.bus.Read(), d.bus.Read()
	if ta1 != uint8(offset) || ta2 != uint8(offset>>8) {
		return errors.New("scratchpad target address mismatch")
	}
	for _, b := range row {
		if d.bus.Read() != b {
			return errors.New("scratchpad data mismatch")
		}
	}

	if err := d.command(cmdCopyScratchpad); err != nil {
		return err
	}
	d.bus.Write(ta1)
	d.bus.Write(ta2)
	d.bus.Write(es)
	d.clock.Sleep(programTime)

	if d.bus.Read() != copySuccess {
		return ErrWriteFailed
	}
	return nil
}

// Program writes value as the address and returns it, or CodeUnprogrammed if anything failed.
// The rest of the row is preserved.
func (d *DS2431) Program(value byte) byte {
	rowStart := AddressOffset - AddressOffset%rowSize

	var row [rowSize]byte
	if err := d.ReadMemory(rowStart, row[:]); err != nil {
		return CodeUnprogrammed
	}
	row[AddressOffset-rowStart] = value

	if err := d.WriteRow(rowStart, row); err != nil {
		return CodeUnprogrammed
	}

	if d.ReadCode() != value {
		return CodeUnprogrammed
	}
	return value
}

func (d *DS2431) command(cmd uint8) error {
	if err := d.bus.Reset(); err != nil {
		return ErrAbsent
	}
	d.bus.Write(cmdSkipROM)
	d.bus.Write(cmd)
	return nil
}
