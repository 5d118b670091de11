package components

import (
	"fmt"
	"strconv"

	"aca-console/internal/config"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ControlsPanel holds the manual knobs and the session parameters.
type ControlsPanel struct {
	container *fyne.Container

	gainSlider  *widget.Slider
	gainLabel   *widget.Label
	blackSlider *widget.Slider
	blackLabel  *widget.Label
	applyButton *widget.Button
	capture     *widget.Button
	targetEntry *widget.Entry
	tolEntry    *widget.Entry
	iterEntry   *widget.Entry
	startButton *widget.Button

	gainHandler    func(float64)
	blackHandler   func(float64)
	applyHandler   func()
	captureHandler func()
	startHandler   func(target, tolerance float64, maxIterations int)
}

func NewControlsPanel(knobs config.Knobs) *ControlsPanel {
	cp := &ControlsPanel{}
	cp.setupControls(knobs)
	return cp
}

func (cp *ControlsPanel) setupControls(knobs config.Knobs) {
	cp.gainSlider = widget.NewSlider(0, 24)
	cp.gainSlider.Step = 0.1
	cp.gainSlider.SetValue(knobs.Gain)
	cp.gainLabel = widget.NewLabel(fmt.Sprintf("%.2f", knobs.Gain))
	cp.gainSlider.OnChanged = func(v float64) {
		cp.gainLabel.SetText(fmt.Sprintf("%.2f", v))
		if cp.gainHandler != nil {
			cp.gainHandler(v)
		}
	}

	cp.blackSlider = widget.NewSlider(0, 255)
	cp.blackSlider.Step = 1
	cp.blackSlider.SetValue(knobs.BlackLevel)
	cp.blackLabel = widget.NewLabel(strconv.Itoa(int(knobs.BlackLevel)))
	cp.blackSlider.OnChanged = func(v float64) {
		cp.blackLabel.SetText(strconv.Itoa(int(v)))
		if cp.blackHandler != nil {
			cp.blackHandler(v)
		}
	}

	cp.applyButton = widget.NewButton("Apply Manual Params", func() {
		if cp.applyHandler != nil {
			cp.applyHandler()
		}
	})
	cp.capture = widget.NewButton("Capture", func() {
		if cp.captureHandler != nil {
			cp.captureHandler()
		}
	})

	cp.targetEntry = numberEntry(strconv.FormatFloat(knobs.TargetGV, 'f', -1, 64))
	cp.tolEntry = numberEntry(strconv.FormatFloat(knobs.Tolerance, 'f', -1, 64))
	cp.iterEntry = numberEntry(strconv.Itoa(knobs.MaxIterations))

	cp.startButton = widget.NewButton("Auto-Calibration Start", cp.onStart)
	cp.startButton.Importance = widget.SuccessImportance

	cp.container = container.NewVBox(
		widget.NewLabel("Gain"),
		cp.gainSlider,
		cp.gainLabel,
		widget.NewLabel("Black Level"),
		cp.blackSlider,
		cp.blackLabel,
		cp.applyButton,
		cp.capture,
		widget.NewSeparator(),
		widget.NewLabel("Target GV"),
		cp.targetEntry,
		widget.NewLabel("Tolerance"),
		cp.tolEntry,
		widget.NewLabel("Max Iterations"),
		cp.iterEntry,
		cp.startButton,
	)
}

func numberEntry(text string) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(text)
	return e
}

// onStart ignores the click while any field fails to parse.
func (cp *ControlsPanel) onStart() {
	if cp.startHandler == nil {
		return
	}
	target, errT := strconv.ParseFloat(cp.targetEntry.Text, 64)
	tolerance, errTol := strconv.ParseFloat(cp.tolEntry.Text, 64)
	iterations, errIter := strconv.Atoi(cp.iterEntry.Text)
	if errT != nil || errTol != nil || errIter != nil || iterations <= 0 {
		return
	}
	cp.startHandler(target, tolerance, iterations)
}

func (cp *ControlsPanel) GetContainer() *fyne.Container {
	return cp.container
}

func (cp *ControlsPanel) SetGainHandler(handler func(float64)) {
	cp.gainHandler = handler
}

func (cp *ControlsPanel) SetBlackLevelHandler(handler func(float64)) {
	cp.blackHandler = handler
}

func (cp *ControlsPanel) SetApplyHandler(handler func()) {
	cp.applyHandler = handler
}

func (cp *ControlsPanel) SetCaptureHandler(handler func()) {
	cp.captureHandler = handler
}

func (cp *ControlsPanel) SetStartHandler(handler func(target, tolerance float64, maxIterations int)) {
	cp.startHandler = handler
}

// SetRunning locks the manual controls while a session streams.
func (cp *ControlsPanel) SetRunning(running bool) {
	for _, w := range []fyne.Disableable{cp.gainSlider, cp.blackSlider, cp.applyButton, cp.capture} {
		if running {
			w.Disable()
		} else {
			w.Enable()
		}
	}
}
