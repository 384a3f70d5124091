package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/calvinmclean/indexfeeder/controller"
)

type ConfigWindow struct {
	app      fyne.App
	OnSubmit func()
}

func NewConfigWindow(app fyne.App) *ConfigWindow {
	return &ConfigWindow{
		app: app,
	}
}

func (cw *ConfigWindow) loadConfigFromPreferences(cfg *controller.Config) string {
	prefs := cw.app.Preferences()
	if cfg.SerialPort == "" {
		cfg.SerialPort = prefs.StringWithFallback("serialPort", "")
	}
	if cfg.BaudRate == "" {
		cfg.BaudRate = prefs.StringWithFallback("baudRate", "115200")
	}
	if !cfg.RTSDirection {
		cfg.RTSDirection = prefs.BoolWithFallback("rtsDirection", false)
	}
	if len(cfg.Feeders) > 0 {
		return formatFeeders(cfg.Feeders)
	}
	return prefs.StringWithFallback("feeders", "")
}

func (cw *ConfigWindow) saveConfigToPreferences(cfg *controller.Config, feeders string) {
	prefs := cw.app.Preferences()
	prefs.SetString("serialPort", cfg.SerialPort)
	prefs.SetString("baudRate", cfg.BaudRate)
	prefs.SetBool("rtsDirection", cfg.RTSDirection)
	prefs.SetString("feeders", feeders)
}

func (cw *ConfigWindow) Show(cfg *controller.Config) {
	window := cw.app.NewWindow("Index Feeder - Configuration")
	window.Resize(fyne.NewSize(400, 220))
	window.SetCloseIntercept(func() {
		// Treat window close as cancel
		window.Close()
		cw.app.Quit()
	})
	window.Show()

	feedersInput := cw.loadConfigFromPreferences(cfg)

	serialPorts, err := controller.GetSerialPorts()
	if err != nil && !errors.Is(err, controller.ErrNoUSBSerial) {
		showError(cw.app, window, fmt.Errorf("error getting serial ports: %w", err))
		return
	}

	serialPorts = append(serialPorts, controller.SerialPortNone)

	serialEntry := widget.NewSelect(serialPorts, nil)
	if cfg.SerialPort == "" {
		cfg.SerialPort = serialPorts[0]
	}
	serialEntry.Bind(binding.BindString(&cfg.SerialPort))

	baudRateEntry := widget.NewEntry()
	baudRateEntry.Bind(binding.BindString(&cfg.BaudRate))

	rtsCheck := widget.NewCheck("Drive direction with RTS", nil)
	rtsCheck.Bind(binding.BindBool(&cfg.RTSDirection))

	feedersEntry := widget.NewEntry()
	feedersEntry.SetPlaceHolder("resistors=1,capacitors=2")
	feedersEntry.Bind(binding.BindString(&feedersInput))

	submitButton := widget.NewButton("Submit", func() {
		feeders, err := controller.ParseFeeders(feedersInput)
		if feedersInput != "" && err != nil {
			dialog.ShowError(err, window)
			return
		}
		cfg.Feeders = feeders

		cw.saveConfigToPreferences(cfg, feedersInput)
		cw.OnSubmit()
		window.Close()
	})
	submitButton.Disable()

	validateForm := func() {
		_, err := strconv.Atoi(cfg.BaudRate)
		if cfg.SerialPort != "" && err == nil {
			submitButton.Enable()
		} else {
			submitButton.Disable()
		}
	}

	serialEntry.OnChanged = func(_ string) { validateForm() }
	baudRateEntry.OnChanged = func(_ string) { validateForm() }

	validateForm()

	form := container.NewVBox(
		widget.NewCard("Configuration", "", container.NewVBox(
			container.NewGridWithColumns(2,
				widget.NewLabel("Serial Port:"),
				serialEntry,
			),
			container.NewGridWithColumns(2,
				widget.NewLabel("Baud Rate:"),
				baudRateEntry,
			),
			rtsCheck,
			container.NewGridWithColumns(2,
				widget.NewLabel("Feeders:"),
				feedersEntry,
			),
		)),
		container.NewHBox(
			widget.NewButton("Cancel", func() {
				window.Close()
				cw.app.Quit()
			}),
			submitButton,
		),
	)

	window.SetContent(form)
}

func formatFeeders(feeders []controller.FeederConfig) string {
	entries := make([]string, 0, len(feeders))
	for _, f := range feeders {
		entries = append(entries, f.Name+"="+strconv.Itoa(int(f.Address)))
	}
	return strings.Join(entries, ",")
}

func showError(app fyne.App, window fyne.Window, err error) {
	d := dialog.NewError(err, window)
	d.SetOnClosed(func() {
		app.Quit()
	})
	d.Show()
}
