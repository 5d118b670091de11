package components

import (
	"fmt"
	"image"
	"image/color"

	"aca-console/internal/viewport"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

var probeBackground = color.NRGBA{A: 170}

// Viewer draws a Viewport into a raster: drag pans, the wheel zooms, hover probes.
type Viewer struct {
	widget.BaseWidget

	vp     *viewport.Viewport
	raster *canvas.Raster

	empty      *widget.Label
	probe      *canvas.Text
	probeBG    *canvas.Rectangle
	probeLabel string
	hovering   bool
	mouse      fyne.Position

	// pixels per fyne unit, from the last raster draw
	pixelScale float32
}

func NewViewer(vp *viewport.Viewport) *Viewer {
	v := &Viewer{vp: vp, pixelScale: 1}

	v.raster = canvas.NewRaster(v.draw)
	v.raster.ScaleMode = canvas.ImageScalePixels
	v.raster.SetMinSize(fyne.NewSize(320, 240))

	v.empty = widget.NewLabel("No image yet")
	v.empty.Alignment = fyne.TextAlignCenter

	v.probe = canvas.NewText("", color.White)
	v.probe.TextSize = 11
	v.probe.TextStyle = fyne.TextStyle{Monospace: true}
	v.probeBG = canvas.NewRectangle(probeBackground)

	v.ExtendBaseWidget(v)
	return v
}

func (v *Viewer) draw(w, h int) image.Image {
	if size := v.Size(); size.Width > 0 {
		v.pixelScale = float32(w) / size.Width
	}
	v.vp.Resize(w, h)
	return v.vp.Render()
}

func (v *Viewer) CreateRenderer() fyne.WidgetRenderer {
	return &viewerRenderer{
		v:       v,
		objects: []fyne.CanvasObject{v.raster, container.NewCenter(v.empty), v.probeBG, v.probe},
	}
}

func (v *Viewer) toSurface(p fyne.Position) (float64, float64) {
	return float64(p.X * v.pixelScale), float64(p.Y * v.pixelScale)
}

func (v *Viewer) Dragged(ev *fyne.DragEvent) {
	v.vp.Pan(float64(ev.Dragged.DX*v.pixelScale), float64(ev.Dragged.DY*v.pixelScale))
}

func (v *Viewer) DragEnd() {}

func (v *Viewer) Scrolled(ev *fyne.ScrollEvent) {
	switch {
	case ev.Scrolled.DY > 0:
		v.vp.Zoom(1)
	case ev.Scrolled.DY < 0:
		v.vp.Zoom(-1)
	}
	v.updateProbe()
}

func (v *Viewer) MouseIn(ev *desktop.MouseEvent) {
	v.hovering = true
	v.mouse = ev.Position
	v.updateProbe()
}

func (v *Viewer) MouseMoved(ev *desktop.MouseEvent) {
	v.hovering = true
	v.mouse = ev.Position
	v.updateProbe()
}

func (v *Viewer) MouseOut() {
	v.hovering = false
	v.updateProbe()
}

func (v *Viewer) updateProbe() {
	label := ""
	if v.hovering {
		x, y := v.toSurface(v.mouse)
		if p, ok := v.vp.Probe(x, y); ok {
			label = fmt.Sprintf("(%d, %d) GV: %d RGB: %d, %d, %d", p.ImageX, p.ImageY, p.Gray, p.R, p.G, p.B)
		}
	}
	if label == v.probeLabel {
		return
	}
	v.probeLabel = label
	v.Refresh()
}

var _ desktop.Hoverable = (*Viewer)(nil)
var _ fyne.Draggable = (*Viewer)(nil)
var _ fyne.Scrollable = (*Viewer)(nil)

type viewerRenderer struct {
	v       *Viewer
	objects []fyne.CanvasObject
}

func (r *viewerRenderer) Layout(size fyne.Size) {
	r.objects[0].Resize(size)
	r.objects[1].Resize(size)

	r.v.probe.Text = r.v.probeLabel
	textSize := r.v.probe.MinSize()
	pos := fyne.NewPos(8, size.Height-textSize.Height-8)
	r.v.probe.Move(pos.AddXY(4, 2))
	r.v.probeBG.Move(pos)
	if r.v.probeLabel == "" {
		r.v.probeBG.Resize(fyne.NewSize(0, 0))
	} else {
		r.v.probeBG.Resize(textSize.AddWidthHeight(8, 4))
	}
}

func (r *viewerRenderer) MinSize() fyne.Size {
	return r.v.raster.MinSize()
}

func (r *viewerRenderer) Refresh() {
	if r.v.vp.Status().Empty {
		r.v.empty.Show()
	} else {
		r.v.empty.Hide()
	}
	r.Layout(r.v.Size())
	r.v.raster.Refresh()
	r.v.probe.Refresh()
	r.v.probeBG.Refresh()
}

func (r *viewerRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *viewerRenderer) Destroy() {}
