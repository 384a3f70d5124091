package ui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/controller"
)

const (
	maxTicks    = 20
	maxLogLines = 200
)

// FeederUI is a jog panel for feeders on one bus. Commands are written as console lines and everything written to
// the FeederUI shows up in its log
type FeederUI struct {
	app fyne.App

	mtx     sync.Mutex
	lines   []string
	logText *widget.Label
}

func NewFeederUI() *FeederUI {
	return &FeederUI{
		app: app.NewWithID("com.calvinmclean.indexfeeder"),
	}
}

// Write appends controller output to the log
func (ui *FeederUI) Write(p []byte) (int, error) {
	ui.mtx.Lock()
	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		ui.lines = append(ui.lines, line)
	}
	if len(ui.lines) > maxLogLines {
		ui.lines = ui.lines[len(ui.lines)-maxLogLines:]
	}
	text := strings.Join(ui.lines, "\n")
	label := ui.logText
	ui.mtx.Unlock()

	if label != nil {
		fyne.Do(func() {
			label.SetText(text)
		})
	}
	return len(p), nil
}

// Configure shows the configuration window and calls onSubmit with the result
func (ui *FeederUI) Configure(cfg *controller.Config, onSubmit func()) {
	cw := NewConfigWindow(ui.app)
	cw.OnSubmit = onSubmit
	cw.Show(cfg)
}

// Run runs the application until it quits or ctx is done
func (ui *FeederUI) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		fyne.Do(func() {
			ui.app.Quit()
		})
	}()

	ui.app.Run()
}

// ShowPanel opens the jog panel. Closing it quits the application
func (ui *FeederUI) ShowPanel(w io.Writer, feeders []controller.FeederConfig) {
	c := newControllerWrapper(w)

	window := ui.app.NewWindow("Index Feeder")

	names := make([]string, 0, len(feeders))
	for _, f := range feeders {
		names = append(names, f.Name)
	}

	feederSelect := widget.NewSelectEntry(names)
	feederSelect.SetPlaceHolder("name or address")
	if len(names) > 0 {
		feederSelect.SetText(names[0])
	}

	ticks := 1
	ticksLabel := widget.NewLabel("1")
	ticksSlider := widget.NewSlider(1, maxTicks)
	ticksSlider.Step = 1
	ticksSlider.SetValue(1)
	ticksSlider.OnChanged = func(v float64) {
		ticks = int(v)
		ticksLabel.SetText(strconv.Itoa(ticks))
	}

	jog := func(dir feeder.Direction) func() {
		return func() {
			c.Index(feederSelect.Text, dir, ticks)
		}
	}

	rawEntry := widget.NewEntry()
	rawEntry.SetPlaceHolder("0x46")
	rawEntry.OnSubmitted = func(s string) {
		rawEntry.SetText("")
		cmd, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			fmt.Fprintf(ui, "invalid command byte %q\n", s)
			return
		}
		c.Raw(feederSelect.Text, byte(cmd))
	}

	ui.mtx.Lock()
	ui.logText = widget.NewLabel(strings.Join(ui.lines, "\n"))
	ui.mtx.Unlock()
	logScroll := container.NewVScroll(ui.logText)
	logScroll.SetMinSize(fyne.NewSize(300, 120))

	content := container.NewVBox(
		container.NewGridWithColumns(2,
			widget.NewLabel("Feeder:"),
			feederSelect,
		),
		container.NewGridWithColumns(2,
			widget.NewLabel("Ticks:"),
			ticksLabel,
		),
		ticksSlider,
		container.NewGridWithColumns(2,
			widget.NewButton("Backward", jog(feeder.Backward)),
			widget.NewButton("Forward", jog(feeder.Forward)),
		),
		container.NewGridWithColumns(2,
			widget.NewLabel("Raw command:"),
			rawEntry,
		),
		widget.NewAccordion(widget.NewAccordionItem("Log", logScroll)),
	)

	window.SetContent(content)
	window.SetOnClosed(c.Close)
	window.Resize(fyne.NewSize(360, 300))
	window.SetMaster()
	window.Show()
}
