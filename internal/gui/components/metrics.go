package components

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	ChartWidth  = 320
	ChartHeight = 160
)

// MetricsCard shows the convergence chart, the iteration progress and the step log.
type MetricsCard struct {
	container *fyne.Container
	chart     *canvas.Image
	progress  *widget.ProgressBar
	iteration *widget.Label
	logs      *widget.List
	empty     *widget.Label
	lines     []string
}

func NewMetricsCard() *MetricsCard {
	mc := &MetricsCard{}

	mc.chart = canvas.NewImageFromImage(nil)
	mc.chart.FillMode = canvas.ImageFillContain
	mc.chart.SetMinSize(fyne.NewSize(ChartWidth, ChartHeight))

	mc.progress = widget.NewProgressBar()
	mc.iteration = widget.NewLabel("Iteration: 0 / 0")

	mc.logs = widget.NewList(
		func() int { return len(mc.lines) },
		func() fyne.CanvasObject {
			l := widget.NewLabel("")
			l.TextStyle = fyne.TextStyle{Monospace: true}
			return l
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(mc.lines[id])
		},
	)
	mc.empty = widget.NewLabel("No logs yet")

	logsArea := container.NewStack(mc.logs, mc.empty)
	logsArea.Resize(fyne.NewSize(ChartWidth, 200))

	mc.container = container.NewBorder(
		container.NewVBox(
			widget.NewLabelWithStyle("METRICS", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			mc.chart,
			mc.iteration,
			mc.progress,
			widget.NewLabelWithStyle("LOGS", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		),
		nil, nil, nil,
		logsArea,
	)
	return mc
}

func (mc *MetricsCard) GetContainer() *fyne.Container {
	return mc.container
}

func (mc *MetricsCard) SetChart(img image.Image) {
	mc.chart.Image = img
	mc.chart.Refresh()
}

func (mc *MetricsCard) SetProgress(label string, fraction float64) {
	mc.iteration.SetText(label)
	mc.progress.SetValue(fraction)
}

// SetLogLines replaces the log and keeps the newest line in view.
func (mc *MetricsCard) SetLogLines(lines []string) {
	mc.lines = lines
	if len(lines) == 0 {
		mc.empty.Show()
	} else {
		mc.empty.Hide()
	}
	mc.logs.Refresh()
	if len(lines) > 0 {
		mc.logs.ScrollToBottom()
	}
}
