package controls

import (
	"testing"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/feedertest"
)

type fakeIndexer struct {
	dirs []feeder.Direction
}

func (f *fakeIndexer) Index(ticks int, dir feeder.Direction) error {
	for range ticks {
		f.dirs = append(f.dirs, dir)
	}
	return nil
}

func TestPoll(t *testing.T) {
	tests := []struct {
		name             string
		forwardPresses   int
		backwardPresses  int
		expectedIndexes  []feeder.Direction
		expectedRunLevel feeder.Level
	}{
		{"Idle", 0, 0, nil, 0},
		{"ShortForward", 1, 0, []feeder.Direction{feeder.Forward}, 0},
		{"ShortBackward", 0, 1, []feeder.Direction{feeder.Backward}, 0},
		{"LongForward", 5, 0, nil, feeder.LevelMax},
		{"LongBackward", 0, 5, nil, -feeder.LevelMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := &feedertest.Button{Presses: tt.forwardPresses}
			back := &feedertest.Button{Presses: tt.backwardPresses}
			a := &feedertest.Actuators{}
			ix := &fakeIndexer{}

			p, err := New(Config{
				Forward:   fwd,
				Backward:  back,
				Actuators: a,
				Clock:     &feedertest.Clock{},
			}, ix)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if err := p.Poll(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(ix.dirs) != len(tt.expectedIndexes) {
				t.Fatalf("expected indexes=%v, got=%v", tt.expectedIndexes, ix.dirs)
			}
			for i := range ix.dirs {
				if ix.dirs[i] != tt.expectedIndexes[i] {
					t.Errorf("expected=%s, got=%s", tt.expectedIndexes[i], ix.dirs[i])
				}
			}

			if tt.expectedRunLevel != 0 && a.Count(feeder.ChannelAdvance, tt.expectedRunLevel) != 1 {
				t.Errorf("expected continuous drive at %d, got %v", tt.expectedRunLevel, a.Drives)
			}
			if a.Level(feeder.ChannelAdvance) != feeder.LevelOff {
				t.Error("expected motor off after release")
			}
			if fwd.Presses != 0 || back.Presses != 0 {
				t.Error("expected Poll to wait for release")
			}
		})
	}
}

func TestHeld(t *testing.T) {
	p, err := New(Config{
		Forward:   &feedertest.Button{Presses: 1},
		Backward:  &feedertest.Button{Presses: 1},
		Actuators: &feedertest.Actuators{},
		Clock:     &feedertest.Clock{},
	}, &fakeIndexer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Held() {
		t.Error("expected both buttons held")
	}
	if p.Held() {
		t.Error("expected buttons released")
	}
}

func TestNilButtons(t *testing.T) {
	p, err := New(Config{Actuators: &feedertest.Actuators{}, Clock: &feedertest.Clock{}}, &fakeIndexer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Poll(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if p.Held() {
		t.Error("expected not held without buttons")
	}
}
