package commands

import (
	"github.com/calvinmclean/indexfeeder"
)

// Command is run when a frame addressed to this unit carries its Flag
type Command struct {
	Flag        byte
	Run         func(Indexer) error
	Description string
}

// Indexer moves tape. It is implemented by indexer.Indexer
type Indexer interface {
	Index(ticks int, dir feeder.Direction) error
}

var (
	IndexForwardCommand = &Command{
		Flag: feeder.CommandIndexForward,
		Run: func(ix Indexer) error {
			return ix.Index(1, feeder.Forward)
		},
		Description: "Index tape forward one pitch.",
	}
	IndexBackwardCommand = &Command{
		Flag: feeder.CommandIndexBackward,
		Run: func(ix Indexer) error {
			return ix.Index(1, feeder.Backward)
		},
		Description: "Index tape backward one pitch.",
	}
)

var commands = []*Command{
	IndexForwardCommand,
	IndexBackwardCommand,
}

// Lookup finds the command for a command byte
func Lookup(flag byte) (*Command, bool) {
	for _, cmd := range commands {
		if cmd.Flag == flag {
			return cmd, true
		}
	}
	return nil, false
}

// Help returns one line per command, like "0x46: Index tape forward one pitch."
func Help() []string {
	lines := make([]string, 0, len(commands))
	for _, cmd := range commands {
		lines = append(lines, hexByte(cmd.Flag)+": "+cmd.Description)
	}
	return lines
}

func hexByte(b byte) string {
	const digits = "0123456789ABCDEF"
	return "0x" + string(digits[(b>>4)&0xF]) + string(digits[b&0xF])
}
