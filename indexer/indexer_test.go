package indexer

import (
	"errors"
	"testing"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/feedertest"
)

type phaseLog []feeder.Phase

func (l *phaseLog) hook(_ feeder.Direction, ph feeder.Phase) {
	*l = append(*l, ph)
}

func newTestIndexer(t *testing.T, s *feedertest.Sensors, opts ...Option) (*Indexer, *feedertest.Actuators, *feedertest.Clock, *phaseLog) {
	t.Helper()
	a := &feedertest.Actuators{}
	c := &feedertest.Clock{}
	phases := &phaseLog{}

	ix, err := New(a, s, c, append([]Option{WithPhaseHook(phases.hook)}, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error creating indexer: %v", err)
	}
	return ix, a, c, phases
}

func equalPhases(a, b []feeder.Phase) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIndexForward(t *testing.T) {
	s := &feedertest.Sensors{
		// 2 seek pulses, 1 pulse for T2, 1 pulse for T3
		OpticalScript: []uint16{900, 900, 500, 500, 900, 900, 300},
		TensionScript: []uint16{700, 700, 400},
	}
	ix, a, c, phases := newTestIndexer(t, s)

	err := ix.Index(1, feeder.Forward)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []feeder.Phase{
		feeder.PhaseSeekBelowT1,
		feeder.PhaseSeekAboveT2,
		feeder.PhaseConfirmBelowT3,
		feeder.PhaseTensionAdjust,
		feeder.PhaseDone,
	}
	if !equalPhases(*phases, expected) {
		t.Errorf("expected phases %v, got %v", expected, *phases)
	}

	if n := a.Count(feeder.ChannelAdvance, 150); n != 2 {
		t.Errorf("expected 2 seek pulses, got %d", n)
	}
	if n := a.Count(feeder.ChannelAdvance, 200); n != 2 {
		t.Errorf("expected 2 pulses, got %d", n)
	}
	if n := a.Count(feeder.ChannelPeel, 100); n != 2 {
		t.Errorf("expected 2 tension polls, got %d", n)
	}
	if a.Count(feeder.ChannelPeel, -100) != 0 {
		t.Error("forward tick must not unspool film")
	}
	if !a.AllOff() {
		t.Error("expected all outputs off after tick")
	}

	p := DefaultForward
	pulseTime := p.Seek.On + p.Seek.Off
	expectedTime := 4*pulseTime + 2*p.TensionPoll
	if c.Elapsed != expectedTime {
		t.Errorf("expected elapsed=%s, got=%s", expectedTime, c.Elapsed)
	}
}

func TestIndexBackward(t *testing.T) {
	s := &feedertest.Sensors{
		OpticalScript: []uint16{800, 700, 700, 900, 800, 700},
		SwitchScript:  []bool{false, false, false, true},
	}
	ix, a, _, phases := newTestIndexer(t, s)

	err := ix.Index(1, feeder.Backward)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []feeder.Phase{
		feeder.PhasePreSlack,
		feeder.PhaseSeekBelowT1,
		feeder.PhaseSeekAboveT2,
		feeder.PhaseConfirmBelowT3,
		feeder.PhaseTensionAdjust,
		feeder.PhaseDone,
	}
	if !equalPhases(*phases, expected) {
		t.Errorf("expected phases %v, got %v", expected, *phases)
	}

	// pre-slack must come before any tape movement
	unspoolAt, firstAdvanceAt := -1, -1
	for i, d := range a.Drives {
		if unspoolAt < 0 && d.Channel == feeder.ChannelPeel && d.Level == -100 {
			unspoolAt = i
		}
		if firstAdvanceAt < 0 && d.Channel == feeder.ChannelAdvance && d.Level != feeder.LevelOff {
			firstAdvanceAt = i
		}
	}
	if unspoolAt < 0 || firstAdvanceAt < 0 || unspoolAt > firstAdvanceAt {
		t.Errorf("expected unspool before advance, got unspool=%d advance=%d", unspoolAt, firstAdvanceAt)
	}

	if n := a.Count(feeder.ChannelAdvance, -200); n != 3 {
		t.Errorf("expected 3 backward pulses, got %d", n)
	}
	if n := a.Count(feeder.ChannelPeel, 100); n != 3 {
		t.Errorf("expected 3 re-tension polls, got %d", n)
	}
	if s.TensionReads != 0 {
		t.Error("backward tensioning should use the switch, not the analog reading")
	}
	if !a.AllOff() {
		t.Error("expected all outputs off after tick")
	}
}

func TestIndexForwardTensionBoundary(t *testing.T) {
	s := &feedertest.Sensors{
		OpticalScript: []uint16{300, 900, 300},
		TensionScript: []uint16{501, 501, 501, 501, 501, 500, 100},
	}
	ix, a, _, _ := newTestIndexer(t, s)

	err := ix.Index(1, feeder.Forward)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := a.Count(feeder.ChannelPeel, 100); n != 5 {
		t.Errorf("expected tensioning to continue while above threshold, got %d polls", n)
	}
	if s.TensionReads != 6 {
		t.Errorf("expected tensioning to stop at the threshold, got %d reads", s.TensionReads)
	}
}

func TestIndexMultipleTicks(t *testing.T) {
	s := &feedertest.Sensors{
		OpticalScript: []uint16{300, 900, 300, 300, 900, 300, 300, 900, 300},
		TensionScript: []uint16{100},
	}
	ix, a, _, phases := newTestIndexer(t, s)

	err := ix.Index(3, feeder.Forward)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := 0
	for _, ph := range *phases {
		if ph == feeder.PhaseDone {
			done++
		}
	}
	if done != 3 {
		t.Errorf("expected 3 ticks, got %d", done)
	}
	if !a.AllOff() {
		t.Error("expected all outputs off")
	}
}

func TestIndexInvalidTicks(t *testing.T) {
	ix, a, _, _ := newTestIndexer(t, &feedertest.Sensors{})

	err := ix.Index(0, feeder.Forward)
	if !errors.Is(err, ErrInvalidTicks) {
		t.Errorf("expected ErrInvalidTicks, got %v", err)
	}
	if len(a.Drives) != 0 {
		t.Error("expected no actuator activity")
	}
}

func TestIndexStall(t *testing.T) {
	tests := []struct {
		name    string
		sensors *feedertest.Sensors
		dir     feeder.Direction
		phase   feeder.Phase
	}{
		{
			"OpticalNeverDrops",
			&feedertest.Sensors{OpticalScript: []uint16{1000}},
			feeder.Forward,
			feeder.PhaseSeekBelowT1,
		},
		{
			"NoSprocketEdge",
			&feedertest.Sensors{OpticalScript: []uint16{100}},
			feeder.Forward,
			feeder.PhaseSeekAboveT2,
		},
		{
			"FilmNeverTight",
			&feedertest.Sensors{OpticalScript: []uint16{300, 900, 300}, TensionScript: []uint16{1000}},
			feeder.Forward,
			feeder.PhaseTensionAdjust,
		},
		{
			"SwitchDisconnected",
			&feedertest.Sensors{OpticalScript: []uint16{300, 900, 300}, SwitchScript: []bool{false}},
			feeder.Backward,
			feeder.PhaseTensionAdjust,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, a, _, _ := newTestIndexer(t, tt.sensors, WithMaxAttempts(5))

			err := ix.Index(1, tt.dir)
			if !errors.Is(err, ErrStall) {
				t.Fatalf("expected ErrStall, got %v", err)
			}

			var stall *StallError
			if !errors.As(err, &stall) {
				t.Fatalf("expected *StallError, got %T", err)
			}
			if stall.Phase != tt.phase {
				t.Errorf("expected stall in %s, got %s", tt.phase, stall.Phase)
			}
			if stall.Attempts != 5 {
				t.Errorf("expected 5 attempts, got %d", stall.Attempts)
			}
			if !a.AllOff() {
				t.Error("expected all outputs off after stall")
			}
		})
	}
}

func TestNewInvalidProfile(t *testing.T) {
	bad := DefaultForward
	bad.Seek.Level = -150

	_, err := New(&feedertest.Actuators{}, &feedertest.Sensors{}, &feedertest.Clock{}, WithProfiles(bad, DefaultBackward))
	if err == nil {
		t.Error("expected error")
	}

	_, err = New(&feedertest.Actuators{}, &feedertest.Sensors{}, &feedertest.Clock{}, WithProfiles(DefaultBackward, DefaultForward))
	if err == nil {
		t.Error("expected error for swapped profiles")
	}
}

func TestIndexIndicator(t *testing.T) {
	s := &feedertest.Sensors{OpticalScript: []uint16{300, 900, 300}, TensionScript: []uint16{100}}
	ix, a, _, _ := newTestIndexer(t, s, WithProfiles(DefaultForward, DefaultBackward))

	if err := ix.Index(1, feeder.Forward); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Count(feeder.ChannelIndicator, feeder.LevelMax) != 1 {
		t.Error("expected indicator on during tick")
	}
	if a.Level(feeder.ChannelIndicator) != feeder.LevelOff {
		t.Error("expected indicator off after tick")
	}
}
