package ui

import (
	"fmt"
	"io"

	"github.com/calvinmclean/indexfeeder"
)

// pendingLines is how many button presses can wait while the console runs a command
const pendingLines = 32

// controllerWrapper turns button presses into console lines for controller.Run.
// Lines are queued so a long run never blocks the UI thread.
type controllerWrapper struct {
	lines chan string
}

func newControllerWrapper(w io.Writer) *controllerWrapper {
	c := &controllerWrapper{lines: make(chan string, pendingLines)}
	go func() {
		for line := range c.lines {
			_, _ = io.WriteString(w, line)
		}
	}()
	return c
}

func (c *controllerWrapper) Index(name string, dir feeder.Direction, ticks int) {
	if name == "" || ticks < 1 {
		return
	}
	c.send(fmt.Sprintf("%s %s %d\n", dir.String()[:1], name, ticks))
}

func (c *controllerWrapper) Raw(name string, cmd byte) {
	if name == "" {
		return
	}
	c.send(fmt.Sprintf("X %s 0x%02X\n", name, cmd))
}

// send drops the press when the queue is full
func (c *controllerWrapper) send(line string) {
	select {
	case c.lines <- line:
	default:
	}
}

// Close stops the writer goroutine once queued lines are written
func (c *controllerWrapper) Close() {
	close(c.lines)
}
