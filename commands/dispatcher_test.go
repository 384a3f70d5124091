package commands

import (
	"errors"
	"testing"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/feedertest"
)

type fakeBus struct {
	rx []byte
	tx []byte

	de, re *feedertest.Pin
	// pin states seen at each write
	deAtWrite, reAtWrite []bool

	writeErr error
	flushes  int
}

func (b *fakeBus) Buffered() int {
	return len(b.rx)
}

func (b *fakeBus) ReadByte() (byte, error) {
	if len(b.rx) == 0 {
		return 0, errors.New("buffer empty")
	}
	c := b.rx[0]
	b.rx = b.rx[1:]
	return c, nil
}

func (b *fakeBus) WriteByte(c byte) error {
	b.deAtWrite = append(b.deAtWrite, b.de.Value)
	b.reAtWrite = append(b.reAtWrite, b.re.Value)
	if b.writeErr != nil {
		return b.writeErr
	}
	b.tx = append(b.tx, c)
	return nil
}

func (b *fakeBus) Flush() error {
	b.flushes++
	return nil
}

type indexCall struct {
	ticks int
	dir   feeder.Direction
}

type fakeIndexer struct {
	calls []indexCall
	err   error
}

func (f *fakeIndexer) Index(ticks int, dir feeder.Direction) error {
	f.calls = append(f.calls, indexCall{ticks, dir})
	return f.err
}

func newTestDispatcher(t *testing.T, addr feeder.Address, rx ...byte) (*Dispatcher, *fakeBus, *fakeIndexer) {
	t.Helper()
	bus := &fakeBus{rx: rx, de: &feedertest.Pin{}, re: &feedertest.Pin{}}
	ix := &fakeIndexer{}

	d, err := NewDispatcher(Config{
		Address:        addr,
		Bus:            bus,
		DriverEnable:   bus.de,
		ReceiverEnable: bus.re,
		Clock:          &feedertest.Clock{},
	}, ix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d, bus, ix
}

func TestPoll(t *testing.T) {
	tests := []struct {
		name          string
		address       feeder.Address
		rx            []byte
		expectedTX    []byte
		expectedCalls []indexCall
	}{
		{
			"IndexForward",
			5,
			[]byte{5, feeder.CommandIndexForward},
			[]byte{feeder.CommandIndexForward},
			[]indexCall{{1, feeder.Forward}},
		},
		{
			"IndexBackward",
			5,
			[]byte{5, feeder.CommandIndexBackward},
			[]byte{feeder.CommandIndexBackward},
			[]indexCall{{1, feeder.Backward}},
		},
		{
			"UnknownCommandIsEchoedAndIgnored",
			5,
			[]byte{5, 0x00},
			[]byte{0x00},
			nil,
		},
		{
			"OtherAddress",
			5,
			[]byte{6, feeder.CommandIndexForward},
			nil,
			nil,
		},
		{
			"UnassignedNeverMatches",
			feeder.AddressUnassigned,
			[]byte{0, feeder.CommandIndexForward},
			nil,
			nil,
		},
		{
			"AbsentSentinelNeverMatches",
			feeder.AddressUnassigned,
			[]byte{0xFF, feeder.CommandIndexForward},
			nil,
			nil,
		},
		{
			"Empty",
			5,
			nil,
			nil,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bus, ix := newTestDispatcher(t, tt.address, tt.rx...)

			err := d.Poll()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if string(bus.tx) != string(tt.expectedTX) {
				t.Errorf("expected tx=%v, got=%v", tt.expectedTX, bus.tx)
			}
			if len(ix.calls) != len(tt.expectedCalls) {
				t.Fatalf("expected calls=%v, got=%v", tt.expectedCalls, ix.calls)
			}
			for i := range ix.calls {
				if ix.calls[i] != tt.expectedCalls[i] {
					t.Errorf("expected call=%v, got=%v", tt.expectedCalls[i], ix.calls[i])
				}
			}
			if len(bus.rx) != 0 {
				t.Errorf("expected whole frame consumed, %d bytes left", len(bus.rx))
			}
		})
	}
}

func TestPollMismatchedFrameIsFlushed(t *testing.T) {
	// the command byte of a foreign frame equals this unit's address
	d, bus, ix := newTestDispatcher(t, 0x46, 7, 0x46, 0x46, feeder.CommandIndexBackward)

	if err := d.Poll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ix.calls) != 0 || len(bus.tx) != 0 {
		t.Fatal("foreign frame must not be answered")
	}

	if err := d.Poll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ix.calls) != 1 || ix.calls[0].dir != feeder.Backward {
		t.Errorf("expected one backward index, got %v", ix.calls)
	}
}

func TestPollTransmitGuard(t *testing.T) {
	d, bus, _ := newTestDispatcher(t, 5, 5, feeder.CommandIndexForward)

	if bus.de.Value || !bus.re.Value {
		t.Fatal("expected listen mode after creation")
	}

	if err := d.Poll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bus.deAtWrite) != 1 || !bus.deAtWrite[0] || bus.reAtWrite[0] {
		t.Errorf("expected driver enabled and receiver disabled while writing, got de=%v re=%v", bus.deAtWrite, bus.reAtWrite)
	}
	if bus.de.Value || !bus.re.Value {
		t.Error("expected listen mode after writing")
	}
	if bus.flushes != 1 {
		t.Errorf("expected echo to be flushed before releasing the bus, got %d", bus.flushes)
	}
}

func TestPollWriteErrorRestoresListenMode(t *testing.T) {
	d, bus, ix := newTestDispatcher(t, 5, 5, feeder.CommandIndexForward)
	bus.writeErr = errors.New("uart busy")

	err := d.Poll()
	if err == nil {
		t.Fatal("expected error")
	}
	if bus.de.Value || !bus.re.Value {
		t.Error("expected listen mode after failed write")
	}
	if len(ix.calls) != 0 {
		t.Error("expected no index when the echo fails")
	}
}

func TestPollFrameTimeout(t *testing.T) {
	d, bus, ix := newTestDispatcher(t, 5, 5)

	err := d.Poll()
	if !errors.Is(err, ErrFrameTimeout) {
		t.Errorf("expected ErrFrameTimeout, got %v", err)
	}
	if len(bus.tx) != 0 || len(ix.calls) != 0 {
		t.Error("expected truncated frame to be dropped")
	}
}

func TestPollTruncatedForeignFrame(t *testing.T) {
	d, _, _ := newTestDispatcher(t, 5, 6)

	if err := d.Poll(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPollIndexError(t *testing.T) {
	d, bus, ix := newTestDispatcher(t, 5, 5, feeder.CommandIndexForward)
	ix.err = errors.New("stalled")

	err := d.Poll()
	if err == nil {
		t.Fatal("expected error")
	}
	if len(bus.tx) != 1 {
		t.Error("expected echo before indexing")
	}
}

func TestNewDispatcherRequiresBus(t *testing.T) {
	_, err := NewDispatcher(Config{}, &fakeIndexer{})
	if err == nil {
		t.Error("expected error")
	}
}

func TestHelp(t *testing.T) {
	lines := Help()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "0x46: Index tape forward one pitch." {
		t.Errorf("unexpected help line: %q", lines[0])
	}
	if _, ok := Lookup(0x42); !ok {
		t.Error("expected backward command")
	}
	if _, ok := Lookup(0x10); ok {
		t.Error("expected no command for 0x10")
	}
}
