//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/calvinmclean/indexfeeder/firmware/board"
)

func main() {
	cfg := board.Config{
		Advance: board.MotorConfig{
			PWM:  machine.PWM1,
			PinA: machine.GP2,
			PinB: machine.GP3,
		},
		Peel: board.MotorConfig{
			PWM:  machine.PWM2,
			PinA: machine.GP4,
			PinB: machine.GP5,
		},
		Sensors: board.SensorConfig{
			Optical: machine.ADC0,
			Tension: machine.ADC1,
		},
		Bus: board.BusConfig{
			UART:     machine.UART0,
			TX:       machine.UART0_TX_PIN,
			RX:       machine.UART0_RX_PIN,
			BaudRate: 115200,
			DE:       machine.GP6,
			NotRE:    machine.GP7,
		},
		Panel: board.PanelConfig{
			Forward:   machine.GP10,
			Backward:  machine.GP11,
			Indicator: machine.GP25,
			LongPress: 500 * time.Millisecond,
		},
		OneWire: machine.GP15,
	}

	d, err := board.New(cfg)
	if err != nil {
		panic(err)
	}

	d.Blink()
	d.Run()
}
