package components

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

var (
	panelBackground = color.NRGBA{R: 0x15, G: 0x19, B: 0x22, A: 0xff}
	panelBorder     = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x1a}
	editBorder      = color.NRGBA{R: 0x10, G: 0xb9, B: 0x81, A: 0xff}
)

// Panel is a titled card whose header moves it and whose corner grip resizes it
// while editing is on. Deltas are reported in fyne units.
type Panel struct {
	widget.BaseWidget

	title    *widget.Label
	content  fyne.CanvasObject
	frame    *canvas.Rectangle
	header   *dragHandle
	grip     *dragHandle
	editing  bool
	onMove   func(dx, dy float32)
	onResize func(dw, dh float32)
}

func NewPanel(title string, content fyne.CanvasObject) *Panel {
	p := &Panel{content: content}

	p.title = widget.NewLabelWithStyle(title, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	p.frame = canvas.NewRectangle(panelBackground)
	p.frame.StrokeColor = panelBorder
	p.frame.StrokeWidth = 1
	p.frame.CornerRadius = 6

	p.header = newDragHandle(p.title, func(dx, dy float32) {
		if p.editing && p.onMove != nil {
			p.onMove(dx, dy)
		}
	})
	p.grip = newDragHandle(widget.NewIcon(theme.MoreHorizontalIcon()), func(dx, dy float32) {
		if p.editing && p.onResize != nil {
			p.onResize(dx, dy)
		}
	})
	p.grip.Hide()

	p.ExtendBaseWidget(p)
	return p
}

func (p *Panel) SetOnMove(fn func(dx, dy float32)) {
	p.onMove = fn
}

func (p *Panel) SetOnResize(fn func(dw, dh float32)) {
	p.onResize = fn
}

func (p *Panel) SetEditing(editing bool) {
	p.editing = editing
	if editing {
		p.grip.Show()
		p.frame.StrokeColor = editBorder
	} else {
		p.grip.Hide()
		p.frame.StrokeColor = panelBorder
	}
	p.frame.Refresh()
}

func (p *Panel) CreateRenderer() fyne.WidgetRenderer {
	body := container.NewBorder(p.header, nil, nil, nil, p.content)
	gripCorner := container.NewVBox(layout.NewSpacer(), container.NewHBox(layout.NewSpacer(), p.grip))
	return widget.NewSimpleRenderer(container.NewStack(p.frame, container.NewPadded(body), gripCorner))
}

type dragHandle struct {
	widget.BaseWidget
	obj    fyne.CanvasObject
	onDrag func(dx, dy float32)
}

func newDragHandle(obj fyne.CanvasObject, onDrag func(dx, dy float32)) *dragHandle {
	h := &dragHandle{obj: obj, onDrag: onDrag}
	h.ExtendBaseWidget(h)
	return h
}

func (h *dragHandle) Dragged(ev *fyne.DragEvent) {
	h.onDrag(ev.Dragged.DX, ev.Dragged.DY)
}

func (h *dragHandle) DragEnd() {}

func (h *dragHandle) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(h.obj)
}
