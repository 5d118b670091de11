// Package gui builds the console window on top of the app controller.
package gui

import (
	"context"
	"strconv"
	"sync"

	"aca-console/internal/app"
	"aca-console/internal/chart"
	"aca-console/internal/events"
	"aca-console/internal/gui/components"
	guilayout "aca-console/internal/gui/layout"
	"aca-console/internal/layout"
	"aca-console/internal/logger"
	"aca-console/internal/models"
	"aca-console/internal/viewport"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	panelControls = iota
	panelViewer
	panelRight
)

type Manager struct {
	window  fyne.Window
	console *app.Console
	vp      *viewport.Viewport
	layouts *layout.Store
	logger  logger.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	isShutdown bool

	banner   *components.BannerBar
	controls *components.ControlsPanel
	viewer   *components.Viewer
	metrics  *components.MetricsCard
	dataset  *components.DatasetCard
	notice   *widget.Label
	selected *widget.Label

	placement   *guilayout.Absolute
	panelArea   *fyne.Container
	panels      []*components.Panel
	editing     bool
	editButton  *widget.Button
	unsubscribe []func()
}

func NewManager(window fyne.Window, console *app.Console, vp *viewport.Viewport, bus *events.Bus, layouts *layout.Store, datasetLimit int, log logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		window:  window,
		console: console,
		vp:      vp,
		layouts: layouts,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}

	view := console.View()
	m.banner = components.NewBannerBar(console.DismissBanner)
	m.controls = components.NewControlsPanel(view.Knobs)
	m.viewer = components.NewViewer(vp)
	m.metrics = components.NewMetricsCard()
	m.dataset = components.NewDatasetCard(datasetLimit)
	m.notice = widget.NewLabel("Dataset preview active. Clear to see live/manual capture.")
	m.notice.Hide()
	m.selected = widget.NewLabel("")
	m.selected.Hide()

	m.wireHandlers()
	m.buildPanels()

	for _, topic := range []events.Topic{
		events.SessionChanged, events.DisplayChanged, events.BannerChanged,
		events.KnobsChanged, events.DatasetChanged,
	} {
		m.unsubscribe = append(m.unsubscribe, bus.Subscribe(topic, m.onEvent))
	}
	vp.SetOnChange(func() {
		fyne.Do(m.viewer.Refresh)
	})

	m.refresh()

	log.Info("GUIManager", "initialized", map[string]interface{}{
		"controls": m.placement.Rect(panelControls),
		"viewer":   m.placement.Rect(panelViewer),
		"right":    m.placement.Rect(panelRight),
	})
	return m
}

func (m *Manager) wireHandlers() {
	m.controls.SetGainHandler(m.console.SetGain)
	m.controls.SetBlackLevelHandler(m.console.SetBlackLevel)
	m.controls.SetApplyHandler(func() {
		m.background(func(ctx context.Context) { m.console.ApplyParams(ctx) })
	})
	m.controls.SetCaptureHandler(func() {
		m.background(func(ctx context.Context) { m.console.Capture(ctx) })
	})
	m.controls.SetStartHandler(func(target, tolerance float64, maxIterations int) {
		m.console.SetTarget(target, tolerance, maxIterations)
		m.background(func(ctx context.Context) { m.console.StartCalibration(ctx) })
	})

	m.dataset.SetLoadHandler(func(q models.DatasetQuery) {
		m.console.SetDatasetQuery(q)
		m.background(func(ctx context.Context) { m.console.LoadDataset(ctx) })
	})
	m.dataset.SetClearHandler(m.console.ClearPreview)
	m.dataset.SetPickHandler(m.console.PickDataset)
	m.dataset.SetOptionsHandler(m.console.SetSaveOptions)
	m.dataset.SetSaveHandler(func() {
		m.background(func(ctx context.Context) { m.console.SaveDataset(ctx) })
	})
}

// background runs rig calls off the UI goroutine; Shutdown cancels and waits for them.
func (m *Manager) background(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isShutdown {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(m.ctx)
	}()
}

func (m *Manager) buildPanels() {
	rects := layout.Default()
	if stored := m.layouts.Load(); stored != nil {
		rects = *stored
		m.logger.Debug("GUIManager", "restored panel layout", nil)
	}
	m.placement = guilayout.NewAbsolute(rects.Controls, rects.Viewer, rects.Right)

	viewerBody := container.NewBorder(nil, container.NewVBox(m.notice, m.selected), nil, nil, m.viewer)
	right := container.NewVScroll(container.NewVBox(m.metrics.GetContainer(), widget.NewSeparator(), m.dataset.GetContainer()))

	m.panels = []*components.Panel{
		components.NewPanel("Controls", container.NewVScroll(m.controls.GetContainer())),
		components.NewPanel("Viewer", viewerBody),
		components.NewPanel("Right Panel", right),
	}

	objects := make([]fyne.CanvasObject, len(m.panels))
	for i, p := range m.panels {
		p.SetOnMove(func(dx, dy float32) {
			m.updateRect(i, m.placement.Rect(i).Moved(float64(dx), float64(dy)))
		})
		p.SetOnResize(func(dw, dh float32) {
			m.updateRect(i, m.placement.Rect(i).Resized(float64(dw), float64(dh)))
		})
		objects[i] = p
	}
	m.panelArea = container.New(m.placement, objects...)

	m.editButton = widget.NewButton("Edit Layout", m.toggleEditing)
}

// updateRect applies and persists a panel change immediately.
func (m *Manager) updateRect(i int, r layout.Rect) {
	m.placement.SetRect(i, r)
	m.panelArea.Refresh()

	err := m.layouts.Save(
		m.placement.Rect(panelControls),
		m.placement.Rect(panelViewer),
		m.placement.Rect(panelRight),
	)
	if err != nil {
		m.logger.Error("GUIManager", err, map[string]interface{}{"operation": "save_layout"})
	}
}

func (m *Manager) toggleEditing() {
	m.editing = !m.editing
	for _, p := range m.panels {
		p.SetEditing(m.editing)
	}
	if m.editing {
		m.editButton.SetText("Done")
	} else {
		m.editButton.SetText("Edit Layout")
	}
}

func (m *Manager) GetMainContainer() fyne.CanvasObject {
	header := container.NewBorder(nil, nil,
		widget.NewLabelWithStyle("ACA: Auto-Calibration Agent", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		m.editButton,
	)
	return container.NewBorder(
		container.NewVBox(header, m.banner.GetContainer()),
		nil, nil, nil,
		container.NewScroll(m.panelArea),
	)
}

func (m *Manager) onEvent(events.Event) {
	fyne.Do(m.refresh)
}

// refresh redraws everything derived from the console view.
func (m *Manager) refresh() {
	view := m.console.View()

	m.banner.SetText(view.Banner)
	m.controls.SetRunning(view.ManualDisabled)

	if view.PreviewActive {
		m.notice.Show()
	} else {
		m.notice.Hide()
	}
	if view.HasSelection {
		m.selected.SetText("Selected dataset id: " + strconv.Itoa(view.SelectedID))
		m.selected.Show()
	} else {
		m.selected.Hide()
	}

	plot := chart.Build(view.Session.Steps, view.Knobs.TargetGV)
	img, err := chart.Render(plot, components.ChartWidth, components.ChartHeight)
	if err != nil {
		m.logger.Warning("GUIManager", "chart render failed", map[string]interface{}{"error": err.Error()})
		img = chart.Blank(components.ChartWidth, components.ChartHeight)
	}
	m.metrics.SetChart(img)
	m.metrics.SetProgress(view.ProgressLabel(), view.Progress)
	m.metrics.SetLogLines(view.LogLines)

	m.dataset.Update(view.Dataset.Images, view.Dataset.Filters, view.Dataset.Loading, view.Dataset.Err)
	m.viewer.Refresh()
}

func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.isShutdown {
		m.mu.Unlock()
		return
	}
	m.isShutdown = true
	m.mu.Unlock()

	for _, unsubscribe := range m.unsubscribe {
		unsubscribe()
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Info("GUIManager", "shutdown completed", nil)
}
