package controller

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/calvinmclean/indexfeeder"
)

const consoleHelp = `F <feeder> [ticks]: index forward
B <feeder> [ticks]: index backward
X <feeder> <byte>: send a raw command byte
L: list configured feeders
H: help
`

// Run reads console commands, one per line, until in is exhausted or ctx is done. Results are written to out.
// A failed command is reported and does not stop the console.
func (c *Controller) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			err := c.runLine(ctx, line, out)
			if err != nil {
				c.logger.Error("command failed", "line", line, "error", err)
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

func (c *Controller) runLine(ctx context.Context, line string, out io.Writer) error {
	fields := strings.Fields(line)
	flag := strings.ToUpper(fields[0])
	args := fields[1:]

	switch flag {
	case "H":
		_, err := io.WriteString(out, consoleHelp)
		return err
	case "L":
		for _, f := range c.cfg.Feeders {
			fmt.Fprintf(out, "%s=%d\n", f.Name, f.Address)
		}
		return nil
	case "F", "B":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: %s <feeder> [ticks]", flag)
		}
		dir, _ := feeder.ParseDirection(flag)

		addr, err := c.cfg.Lookup(args[0])
		if err != nil {
			return err
		}

		ticks := 1
		if len(args) == 2 {
			ticks, err = strconv.Atoi(args[1])
			if err != nil || ticks < 1 {
				return fmt.Errorf("invalid ticks %q", args[1])
			}
		}

		for i := range ticks {
			if i > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.cfg.tickTime()):
				}
			}

			err = c.Index(ctx, addr, dir)
			if err != nil {
				return fmt.Errorf("tick %d of %d: %w", i+1, ticks, err)
			}
			fmt.Fprintf(out, "%s %d: %s %d/%d\n", time.Now().Format(time.TimeOnly), addr, dir, i+1, ticks)
		}
		return nil
	case "X":
		if len(args) != 2 {
			return fmt.Errorf("usage: X <feeder> <byte>")
		}

		addr, err := c.cfg.Lookup(args[0])
		if err != nil {
			return err
		}

		cmd, err := strconv.ParseUint(args[1], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid byte %q: %w", args[1], err)
		}

		err = c.Send(ctx, addr, byte(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %d: 0x%02X echoed\n", time.Now().Format(time.TimeOnly), addr, cmd)
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}
